package gt

import "errors"

// ErrBadRunStream is returned by the Decode* functions when a run buffer's
// length isn't a multiple of its record size.
var ErrBadRunStream = errors.New("gt: run stream length mismatch")

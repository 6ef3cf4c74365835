package compress

import "errors"

var (
	// ErrNotSealed is returned when Apply is called on a container that
	// has not yet run UpdateContainer.
	ErrNotSealed = errors.New("compress: container not sealed")
	// ErrUnknownEncoder is returned by Decode for an unrecognized encoder tag.
	ErrUnknownEncoder = errors.New("compress: unknown encoder")
	// ErrUnalignedBuffer is returned by Transpose/Untranspose when the
	// input length is not a multiple of 32 bytes.
	ErrUnalignedBuffer = errors.New("compress: buffer length not a multiple of 32")
)

package common

import "errors"

// Shared error kinds (spec.md §7) used across packages that don't own a
// more specific sentinel of their own. Container-level invariants
// (ErrTypeMismatch, ErrStrideMismatch, ErrOverflow) live in package
// container; AES-GCM failures (ErrAuth) live in package crypt — both are
// checked entirely within those packages. The four below are shared across
// package boundaries (schema, block, index and archive wrap ErrFormat,
// ErrIntegrity or ErrIO; no package returns ErrOutOfRange) so they live
// here instead of being duplicated per package.
var (
	// ErrIO wraps any underlying read/write failure; fatal, propagated.
	ErrIO = errors.New("tachyon: i/o error")
	// ErrFormat covers magic mismatch, unsupported version, and structural
	// invariant violations; fatal for the archive.
	ErrFormat = errors.New("tachyon: format error")
	// ErrIntegrity is an MD5 mismatch on uncompressed data or strides;
	// fatal for the owning container only.
	ErrIntegrity = errors.New("tachyon: integrity error")
	// ErrOutOfRange is a position beyond a contig's declared length during
	// indexing; fatal for that record.
	ErrOutOfRange = errors.New("tachyon: position out of contig range")
)

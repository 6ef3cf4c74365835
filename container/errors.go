package container

import "errors"

var (
	// ErrTypeMismatch is returned when a caller appends a value whose
	// family doesn't match the container's already-established Type.
	ErrTypeMismatch = errors.New("container: type mismatch")
	// ErrStrideMismatch reports a stride that contradicts a fixed
	// (non-mixed) stride. No function in this package returns it: the
	// fixed-or-mixed decision is made only when UpdateContainer seals the
	// container, and AddStride on a sealed container returns ErrSealed.
	ErrStrideMismatch = errors.New("container: stride mismatch")
	// ErrOverflow is returned when a value cannot be narrowed to any
	// width without aliasing a reserved sentinel.
	ErrOverflow = errors.New("container: overflow narrowing integer")
	// ErrSealed is returned by mutating methods called after UpdateContainer.
	ErrSealed = errors.New("container: already sealed")
)

package datasets

import "errors"

var (
	// ErrConfiguration is returned by constructors given degenerate or
	// inconsistent parameters.
	ErrConfiguration = errors.New("invalid dataset configuration")

	// ErrIndexOutOfRange is returned for a flat index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrEmptyBatch is returned when converting a batch without items.
	ErrEmptyBatch = errors.New("empty batch")
)

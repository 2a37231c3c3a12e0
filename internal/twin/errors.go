package twin

import "errors"

var (
	// ErrUnknownVariant is returned when a model variant name or value is not
	// one of the supported set.
	ErrUnknownVariant = errors.New("twin: unknown model variant")

	// ErrInvalidInterval is returned when a scheduler interval is not positive.
	ErrInvalidInterval = errors.New("twin: interval must be positive")
)

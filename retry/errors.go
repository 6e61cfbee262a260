package retry

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidDelay is returned when InitialDelay is negative
	ErrInvalidDelay = errors.New("initial delay cannot be negative")

	// ErrInvalidMultiplier is returned when Multiplier is below 1
	ErrInvalidMultiplier = errors.New("multiplier must be at least 1")
)

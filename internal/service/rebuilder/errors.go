package rebuilder

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned when a command template expands to no program.
var ErrEmptyCommand = errors.New("command template expanded to nothing")

// RetryExhaustedError reports that dependency resolution failed on every attempt.
type RetryExhaustedError struct {
	// Attempts is the number of tries made.
	Attempts int
	// Err is the failure of the last try.
	Err error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("dependency resolution still failed after %d tries, giving up: %v", e.Attempts, e.Err)
}

// Unwrap returns the failure of the last try.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the API client, the session gate and the flow controller.
var (
	// Local errors, resolved before anything reaches the network
	ErrValidation        = errors.New("validation failed")
	ErrBusy              = errors.New("request already in flight")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrClosed            = errors.New("flow closed")

	// Remote errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("rejected by server")
	ErrTransport    = errors.New("transport failure")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers importing this package need not alias the stdlib one
func New(text string) error {
	return errors.New(text)
}

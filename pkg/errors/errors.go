package errors

import "errors"

// Sentinels for domain errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("service unavailable")
	// ErrCallState is returned by a network stack that refuses to dial in its current call state.
	ErrCallState = errors.New("call state error")
	// ErrProtocol marks a response protocol violation (double or missing reply).
	ErrProtocol = errors.New("response protocol violation")
)

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}

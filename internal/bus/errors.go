package bus

import (
	"errors"
)

// ErrMalformed is returned for message bodies that cannot be decoded
var ErrMalformed = errors.New("malformed message")

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient marks err as temporary: the message is requeued instead of being
// dropped.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err, or any error it wraps, was marked with
// Transient or reports itself as temporary.
func IsTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var temp interface{ Temporary() bool }
	return errors.As(err, &temp) && temp.Temporary()
}

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrInactivity means no chunk arrived within the watchdog window.
	ErrInactivity = errors.New("stream inactive")
	// ErrNoData means the stream completed without any text.
	ErrNoData = errors.New("no data received")
	// ErrAbandoned means the turn stopped being live before a retry.
	ErrAbandoned = errors.New("turn abandoned")
)

// BackendError is an explicit error object sent inside the stream.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return "backend error: " + e.Message
}

// ExhaustedError is returned once every attempt has failed. Err is the cause
// of the last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("stream failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/julienstroheker/tgc/internal/queue"
)

// FatalError ends a Supervisor. Everything else is recovered by reconnecting.
type FatalError struct {
	Endpoint string
	Err      error
}

// Error implements error
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal failure on %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error
func (e *FatalError) Unwrap() error {
	return e.Err
}

// PanicError reports a pump goroutine that terminated abnormally
type PanicError struct {
	Pump  string
	Value any
	Stack []byte
}

// Error implements error
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s pump panicked: %v", e.Pump, e.Value)
}

// IsFatal reports whether err must stop the relay instance
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// escalates reports whether a pump error breaks the relay instance rather
// than just the current connection
func escalates(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe) || errors.Is(err, queue.ErrClosed)
}

// isTeardown reports whether err only says the session was cancelled
func isTeardown(err error) bool {
	return errors.Is(err, context.Canceled)
}

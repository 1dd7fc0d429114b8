package panel

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound - requested entity does not exist on the panel
	ErrNotFound = errors.New("not found")
	// ErrConflict - entity with the same key already exists
	ErrConflict = errors.New("conflict")
	// ErrUnavailable - panel could not serve the request
	ErrUnavailable = errors.New("unavailable")
	// ErrValidation - panel rejected the request payload
	ErrValidation = errors.New("validation failed")
)

// Error describes a failed panel call.
type Error struct {
	Op  string
	Ref string
	Err error
}

// NewError wraps err for the call op on ref.
func NewError(op, ref string, err error) *Error {
	return &Error{Op: op, Ref: ref, Err: err}
}

func (e *Error) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("panel %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("panel %s %s: %s", e.Op, e.Ref, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports a duplicate entity.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsTimeout reports a call that ran out of time.
func IsTimeout(err error) bool { return errors.Is(err, context.DeadlineExceeded) }

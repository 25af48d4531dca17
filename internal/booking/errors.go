package booking

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/passmarket/internal/calendar"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrCalendarConflict means the pass calendar changed between read and
	// write. The caller may reload and try again.
	ErrCalendarConflict = errors.New("pass calendar was modified concurrently")
)

// PersistenceError wraps a failure of the storage collaborator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err unless it already carries a domain meaning.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrUnauthorized, ErrInvalidTransition, ErrInvalidInput, ErrCalendarConflict} {
		if errors.Is(err, known) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	var parseErr *calendar.ParseError
	if errors.As(err, &parseErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

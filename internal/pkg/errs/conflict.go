package errs

import (
	"errors"
	"fmt"
	"strings"
)

var ErrConflict = errors.New("operation conflicts with current state")

// ConflictError is returned by route mutations. Hard conflicts carry a single
// Detail and can never be overridden. Forcible conflicts list Reasons that the
// caller may accept by repeating the request with force enabled.
type ConflictError struct {
	Detail   string
	Reasons  []string
	Forcible bool
}

func NewConflictError(detail string) *ConflictError {
	return &ConflictError{Detail: detail}
}

func NewForcibleConflictError(reasons []string) *ConflictError {
	return &ConflictError{
		Detail:   "Operation can be forced",
		Reasons:  reasons,
		Forcible: true,
	}
}

func (e *ConflictError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("%s: %s", ErrConflict, e.Detail)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrConflict, e.Detail, strings.Join(e.Reasons, "; "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

package resource

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource: not found")
	ErrConflict = errors.New("resource: conflict")
)

// ValidationError is a client mistake in a request body or query.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

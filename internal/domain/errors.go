package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrLocked indicates another operation currently holds the entity.
	ErrLocked = errors.New("locked")
)

// ValidationError rejects one user-supplied field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

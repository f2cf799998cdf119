package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique-constraint conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence indicates an underlying storage failure.
	ErrPersistence = errors.New("persistence failure")
)

// UserSafeMessage maps internal errors to messages safe for presentation.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrDuplicate):
		return "A record with the same identifier already exists"
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrPersistence):
		return "The data store is temporarily unavailable"
	default:
		return "An internal error occurred"
	}
}

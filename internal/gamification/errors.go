package gamification

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation rejects a request before any write happens.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated means no acting user id was supplied.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotFound is returned when a target, author or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a compare-and-set lost too many times in a row.
	ErrConflict = errors.New("concurrent update conflict")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsTransient reports whether err is worth retrying by the caller, i.e. it is
// neither a validation, authentication nor not-found failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) &&
		!errors.Is(err, ErrUnauthenticated) &&
		!errors.Is(err, ErrNotFound)
}

package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid wraps input validation failures. The wrapped message is safe
	// to show to clients.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict is returned when a unique resource already exists.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned for bad credentials or expired secrets.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the actor does not own the resource.
	ErrForbidden = errors.New("forbidden")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

package service

import (
	"errors"

	"forest-fashion/internal/store"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrOutOfStock means a reservation could not be covered.
	ErrOutOfStock   = errors.New("out of stock")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// ValidationError rejects caller input. Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError is an ErrNotFound carrying a client-facing message.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(message string) error {
	return &NotFoundError{Message: message}
}

// orNotFound swaps a bare store miss for a NotFoundError with message.
func orNotFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(message)
	}
	return err
}

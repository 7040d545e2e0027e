// Package errs holds sentinel errors shared by repositories, services and handlers.
package errs

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or invalid session, password or cron secret.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is a business rule violation (e.g. deleting an active, unexpired customer).
	ErrConflict = errors.New("conflict")

	// ErrBusy means another operation holds the customer lock.
	ErrBusy = errors.New("customer is busy")
)

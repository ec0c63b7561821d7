package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrEmailAlreadyExists is returned on registration with a taken email.
	ErrEmailAlreadyExists = errors.New("an account with this email already exists")

	// ErrNotFound is returned when an entity ID does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor may not touch the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation wraps missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
)

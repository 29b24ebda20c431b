package app

import (
	"errors"

	"convertbox/pkg/store"
)

var (
	// ErrNotFound indicates a lookup by ID found nothing.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthenticated covers both unknown email and wrong password so the
	// caller cannot probe for account existence.
	ErrNotAuthenticated = errors.New("invalid credentials")
	// ErrValidation indicates malformed or missing input fields.
	ErrValidation = errors.New("invalid input")
	// ErrDuplicateKey re-exports the store sentinel for callers of this package.
	ErrDuplicateKey = store.ErrDuplicateKey
)

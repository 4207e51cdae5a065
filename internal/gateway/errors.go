package gateway

import "errors"

var (
	// ErrNotFound indicates no row matched the id for this user.
	ErrNotFound = errors.New("row not found")
	// ErrForeignKey indicates a todo referenced a project that does not
	// exist for this user.
	ErrForeignKey = errors.New("project does not exist")
	// ErrConstraint indicates a row was rejected by a column constraint.
	ErrConstraint = errors.New("row violates constraint")
	// ErrInvalidCredentials indicates the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailExists indicates sign-up with an already registered email.
	ErrEmailExists = errors.New("email already registered")
	// ErrWeakPassword indicates sign-up with a password the backend refuses.
	ErrWeakPassword = errors.New("password should be at least 6 characters")
	// ErrNoSession indicates the persisted session is missing or no longer valid.
	ErrNoSession = errors.New("no valid session")
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
)

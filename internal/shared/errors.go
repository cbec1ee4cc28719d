package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate record, such as an already registered email.
	ErrConflict = errors.New("conflict")
	// ErrUpdateNoOp indicates an update matched a row but modified nothing.
	ErrUpdateNoOp = errors.New("update changed nothing")
	// ErrUnauthenticated indicates no signed-in session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates the session role is insufficient.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstreamUnavailable indicates the generation service could not be reached.
	ErrUpstreamUnavailable = errors.New("generation service unavailable")
	// ErrValidation indicates the submitted input failed validation.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage converts an internal error into a message safe to render.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record does not exist."
	case errors.Is(err, ErrConflict):
		return "A record with the same identifier already exists."
	case errors.Is(err, ErrUpstreamUnavailable):
		return "The generation service is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrValidation):
		return "Please check the submitted fields and try again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	default:
		return "Something went wrong. Please try again."
	}
}

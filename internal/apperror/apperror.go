package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotRanked      = errors.New("not ranked")
	ErrValidation     = errors.New("Validation Error")
	ErrInvalidState   = errors.New("invalid oauth state")
	ErrExchangeFailed = errors.New("code exchange failed")
	ErrUnavailable    = errors.New("unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// UnknownID reports a participant the cache has never seen. This can mean the
// id genuinely does not exist, or simply that no sync pass has reached it yet.
func UnknownID(id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("ID %s not known — may not exist or may not be cached", id),
	}
}

// NotRanked is the softer variant of UnknownID, used when the caller explicitly
// expects the account to exist (e.g. right after logging in): the account is
// real but below the ranking floor or not yet cached.
func NotRanked(id string) *AppError {
	return &AppError{
		Err:     ErrNotRanked,
		Message: fmt.Sprintf("user %s is not ranked or may be uncached", id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidState covers every way an OAuth state token can be unusable: never
// issued, expired, or already consumed. The three cases are deliberately
// indistinguishable to the caller.
func InvalidState() *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Message: "invalid OAuth2 state",
	}
}

// ExchangeFailed reports an upstream rejection of the authorization code.
// The underlying cause is logged server-side, never shown to the client.
func ExchangeFailed() *AppError {
	return &AppError{
		Err:     ErrExchangeFailed,
		Message: "OAuth2 code exchange failed",
	}
}

// Unavailable reports a feature disabled by configuration (no webhook URL, no
// OAuth client). A valid degraded-but-running state, never a startup failure.
func Unavailable(feature string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s is not configured", feature),
	}
}

package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the JSON API has the same shape:
//   {"error": "not_found", "message": "ID 123 not known — may not exist or may not be cached"}
//
// This makes it easy for clients to parse errors — they always know what
// fields to expect, regardless of whether it's a 400, 404, or 502.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/levelboard/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status code must be set BEFORE writing the body — once Encode
// calls w.Write, the headers are sent and any later changes are silently
// ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// This is where domain errors (from the service layer) get translated to HTTP.
// The service layer returns apperror.ErrNotFound, apperror.ErrInvalidState,
// etc. — it should not know about status codes, because different consumers
// (the HTML page, the JSON API, the CLI) present the same errors differently.
//
// errors.Is walks the whole wrap chain, so a service error like
// fmt.Errorf("resolving %q: %w", id, apperror.UnknownID(id)) still maps.
func writeError(w http.ResponseWriter, err error) {
	status, errorType, message := classify(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: message,
	})
}

// classify maps a domain error to (status, machine-readable type, message).
// Shared by the JSON and HTML error paths.
func classify(err error) (int, string, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrNotRanked):
			status = http.StatusNotFound // 404, but a softer story
			errorType = "not_ranked"
		case errors.Is(err, apperror.ErrInvalidState):
			status = http.StatusBadRequest // 400
			errorType = "invalid_state"
		case errors.Is(err, apperror.ErrExchangeFailed):
			status = http.StatusBadGateway // 502 — the upstream rejected us
			errorType = "exchange_failed"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable // 503
			errorType = "unavailable"
		}

		return status, errorType, appErr.Message
	}

	// Unknown error — return a generic 500. Never expose internal error
	// details to the client; the raw message might contain SQL or file paths.
	return http.StatusInternalServerError, "internal_error", "An internal error occurred"
}

// Package handler is the HTTP layer: request parsing, response writing, and
// the translation of domain errors to status codes. Nothing below this
// package knows an HTTP status exists.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/atlas"
)

// ErrorResponse is the standard error shape returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code. Headers and
// status must be set before the body — json.Encode writes immediately.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to HTTP and sends it.
//
// Taxonomy: validation → 400, unauthorized → 401, not found → 404,
// conflict → 409, provider answered with a failure → its status passed
// through, provider unreachable → 503, anything else → 500 with a generic
// message only (never internal details).
func writeError(w http.ResponseWriter, err error) {
	// Provider failures first — they carry their own status codes.
	var upstream *atlas.UpstreamError
	if errors.As(err, &upstream) {
		msg := upstream.Body
		if msg == "" {
			msg = "identity provider request failed"
		}
		writeJSON(w, upstream.Status, ErrorResponse{
			Error:   "upstream_error",
			Message: msg,
		})
		return
	}
	if errors.Is(err, atlas.ErrUnreachable) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "provider_unavailable",
			Message: "identity provider is unreachable",
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/apperror"
)

// maxJSONBody bounds request bodies decoded by decodeJSON. It leaves room
// for a post at the content limit.
const maxJSONBody = 1 << 20

// ErrorResponse is the body of every API error:
//
//	{"error": "not_found", "message": "post 42 not found"}
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable type, see statusFor
	Message string `json:"message"` // safe to show to the user
}

// writeJSON writes data as a JSON body. Headers and status go out first;
// an encoding failure after that point can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", slog.String("error", err.Error()))
	}
}

// writeError turns a service error into an API error response.
//
// Only *apperror.AppError messages reach the client. Anything else is
// logged and answered with a generic 500, since raw errors may carry SQL
// or file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := statusFor(err)
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// statusFor maps a domain error to its HTTP status and error type.
// Authentication failures (401) are kept apart from validation (400).
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decodeJSON reads a JSON request body into dst. Malformed bodies are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// idParam parses a positive integer URL parameter such as {id}.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

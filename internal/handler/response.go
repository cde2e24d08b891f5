package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
)

// ErrorResponse is the error shape every API endpoint returns.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // human-readable, safe to show in the UI
	Field   string `json:"field,omitempty"` // the offending input field, when known
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already out, nothing left to do but log
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError translates a domain error into an HTTP response. The engine
// and stores speak apperror sentinels; this is the only place they become
// status codes.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			kind = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			kind = "not_found"
		case errors.Is(err, apperror.ErrReauthNeeded):
			// 401 like a bad session, but the distinct kind tells the
			// client to re-prompt for the password instead of signing out
			status = http.StatusUnauthorized
			kind = "reauth_required"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			kind = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			kind = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			kind = "conflict"
		case errors.Is(err, apperror.ErrRemoteFailure):
			status = http.StatusBadGateway
			kind = "remote_failure"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   kind,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// unknown error: never leak internals to the client
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

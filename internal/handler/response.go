// Package handler contains the HTTP layer. Handlers decode requests, call
// the services and encode responses; they never contain business rules.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lovelanguages/server/internal/apperror"
)

// ErrorResponse is the JSON body of every error the API returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a domain error to an HTTP status and the standard error
// body. Unknown errors become a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errorType := "internal_error"
	message := "An internal error occurred"
	code := ""

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		code = appErr.Code

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrRateLimited):
			status = http.StatusTooManyRequests
			errorType = "rate_limited"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadGateway
			errorType = "upstream_error"
		case errors.Is(err, apperror.ErrNotConfigured):
			// Config problems are the server's fault, not the client's, and
			// the body stays generic.
			status = http.StatusInternalServerError
			errorType = "internal_error"
		default:
			message = "An internal error occurred"
			code = ""
		}
	}

	writeJSON(w, status, ErrorResponse{Error: errorType, Message: message, Code: code})
}

// queryInt reads an integer query parameter, 0 when absent or malformed.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// decodeJSON parses the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON request body")
	}
	return nil
}

// Package apperror defines the domain error taxonomy shared by every layer.
//
// The API distinguishes two tiers of failure: expected business rejections
// (invalid input, missing auth, insufficient subscription, rate limits,
// not-found) which surface as 4xx with a short message and often a stable
// client code, and unexpected failures which surface as a generic 500 that
// never leaks internals. Services return these errors; the HTTP layer maps
// them to status codes in one place.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrUpstream      = errors.New("upstream failure")
	ErrNotConfigured = errors.New("server configuration error")
)

// AppError carries a human-readable message plus an optional machine-readable
// Code the client branches on (e.g. "ALREADY_FREE_TIER", "HAS_PROMO_ACCESS").
type AppError struct {
	Err     error  // sentinel classifying the failure
	Message string // human-readable error message
	Code    string // optional: stable code for client branching
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Rejected builds a 400-class error with a stable client code.
// Used for business rules like "already on the free tier".
func Rejected(code, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Code:    code,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// SubscriptionRequired is the 403 returned when no access grant (subscription,
// partner inheritance, promo, free tier) covers the requested feature.
func SubscriptionRequired(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
		Code:    "SUBSCRIPTION_REQUIRED",
	}
}

// Unauthorized is returned when the bearer token is missing, invalid or
// expired. Handlers map it to 401.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Authentication required",
	}
}

// RateLimited is returned when a usage quota is exhausted. Handlers map it
// to 429.
func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
		Code:    "RATE_LIMITED",
	}
}

// Upstream wraps a third-party provider failure (LLM, TTS, Apple).
// Retryable marks failures the client may usefully retry.
func Upstream(message string, retryable bool) *AppError {
	code := ""
	if retryable {
		code = "RETRYABLE"
	}
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Code:    code,
	}
}

// NotConfigured is returned when a required environment variable is absent.
// The handler maps it to a generic 500 without naming the variable.
func NotConfigured() *AppError {
	return &AppError{
		Err:     ErrNotConfigured,
		Message: "Server configuration error",
		Code:    "CONFIG",
	}
}

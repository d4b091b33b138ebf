package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes application errors. Handlers use these constants
// instead of hardcoded strings so the HTTP mapping stays in one place.
type ErrorCode string

const (
	// ErrCodeInvalidInput covers out-of-range coordinates, non-positive
	// radii or intervals, and malformed request bodies.
	ErrCodeInvalidInput ErrorCode = "invalid_input"

	// ErrCodeProviderUnavailable means an external weather/POI call failed
	// or timed out. Per-point failures are absorbed; this surfaces only
	// when a whole request depends on the failed call.
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"

	// ErrCodeWeatherUnavailable means every sampled point of a route
	// failed. Reporting no data must never look like reporting safe
	// conditions, so this propagates instead of a fabricated low risk.
	ErrCodeWeatherUnavailable ErrorCode = "weather_unavailable"

	// ErrCodeCacheWriteFailed is non-fatal: a lost cache write only costs
	// a future redundant provider call. Logged, never propagated.
	ErrCodeCacheWriteFailed ErrorCode = "cache_write_failed"

	// ErrCodeInternalUnexpected is the catch-all for everything else.
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected"
)

// HTTPStatus maps an ErrorCode to its HTTP status. Unrecognized codes map
// to 500 as a safe default.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeProviderUnavailable, ErrCodeWeatherUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the domain error carried across package boundaries. The
// wrapped cause is for logs only and is never exposed to clients.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewAppError builds an AppError wrapping an optional cause.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status for the error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// IsCode reports whether err is (or wraps) an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

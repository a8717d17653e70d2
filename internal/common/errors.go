package common

import (
	"errors"
	"net/http"
)

// Order validation and checkout failures. Packages wrap these with context and
// callers match them with errors.Is.
var (
	ErrUnknownProduct        = errors.New("product not supported")
	ErrUnsupportedQuantity   = errors.New("quantity not supported")
	ErrInvalidExtras         = errors.New("invalid extras")
	ErrAmountTooLow          = errors.New("amount below provider minimum")
	ErrAmountTooHigh         = errors.New("amount above provider maximum")
	ErrMissingConfiguration  = errors.New("missing configuration")
	ErrUpstreamFailure       = errors.New("payment provider failure")
	ErrUpstreamUnavailable   = errors.New("payment provider unavailable")
	ErrInvalidRequestPayload = errors.New("invalid request body")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// AsAppError maps err onto the checkout error taxonomy. Errors already carrying
// an AppError are returned unchanged; anything unrecognised becomes INTERNAL.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrInvalidRequestPayload):
		return NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrUnknownProduct):
		return NewAppError("UNKNOWN_PRODUCT", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrUnsupportedQuantity):
		return NewAppError("UNSUPPORTED_QUANTITY", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidExtras):
		return NewAppError("INVALID_EXTRAS", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrAmountTooLow):
		return NewAppError("AMOUNT_TOO_LOW", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrAmountTooHigh):
		return NewAppError("AMOUNT_TOO_HIGH", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrMissingConfiguration):
		return NewAppError("MISSING_CONFIGURATION", err.Error(), http.StatusInternalServerError, err)
	case errors.Is(err, ErrUpstreamUnavailable):
		return NewAppError("UPSTREAM_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable, err)
	case errors.Is(err, ErrUpstreamFailure):
		return NewAppError("UPSTREAM_FAILURE", err.Error(), http.StatusInternalServerError, err)
	default:
		return NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}

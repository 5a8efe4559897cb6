package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// UpstreamErrorMessage describes provider failures.
	UpstreamErrorMessage = "upstream provider request failed"
)

// ErrProviderMisconfigured is returned at construction time when a provider
// credential or identity is missing. It is never retried.
var ErrProviderMisconfigured = errors.New("provider misconfigured")

// Misconfigured wraps ErrProviderMisconfigured with the name of the missing setting.
func Misconfigured(provider, field string) error {
	return fmt.Errorf("%w: %s %s is not set", ErrProviderMisconfigured, provider, field)
}

// UpstreamError is a non-success HTTP response from a provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Body)
}

// AppError wraps an underlying error with an HTTP status, a stable code and a
// safe message.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, code, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// BadRequest reports invalid caller input.
func BadRequest(code, message string) *AppError {
	return New(nil, http.StatusBadRequest, code, message)
}

// WrapUpstream maps provider errors to a 502 with a consistent message.
func WrapUpstream(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:     err,
		Status:  http.StatusBadGateway,
		Code:    "UPSTREAM_ERROR",
		Message: UpstreamErrorMessage,
	}
}

package common

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows how it should be rendered over HTTP.
// Reason is a stable machine-readable code; two AppErrors with the same
// non-empty Reason match under errors.Is.
type AppError struct {
	Code      int    `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by reason code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if e.Reason == "" || t.Reason == "" {
		return e == t
	}
	return e.Reason == t.Reason
}

// WithCause returns a copy of e wrapping err.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// NewAppError creates an AppError with an explicit status and reason.
func NewAppError(code int, reason, message string) *AppError {
	return &AppError{Code: code, Reason: reason, Message: message}
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: "BAD_REQUEST", Message: message, Err: err}
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: http.StatusNotFound, Reason: "NOT_FOUND", Message: message, Err: err}
}

// NewConflictError creates a 409 error
func NewConflictError(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Reason: "CONFLICT", Message: message}
}

// NewForbiddenError creates a 403 error
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: http.StatusForbidden, Reason: "FORBIDDEN", Message: message}
}

// NewUnauthorizedError creates a 401 error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Reason: "UNAUTHORIZED", Message: message}
}

// NewInternalServerError creates a 500 error
func NewInternalServerError(message string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Reason: "INTERNAL", Message: message}
}

// NewInternalError creates a 500 error that keeps the underlying cause
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Reason: "INTERNAL", Message: message, Err: err}
}

// NewServiceUnavailableError creates a 503 error
func NewServiceUnavailableError(message string) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Reason: "UNAVAILABLE", Message: message, Retryable: true}
}

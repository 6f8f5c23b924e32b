// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeAlreadyProcessed    Code = "ALREADY_PROCESSED"
	CodeConflict            Code = "CONFLICT"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeRecallWindowExpired Code = "RECALL_WINDOW_EXPIRED"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeInternal            Code = "INTERNAL"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError carrying the same code, so callers can compare against the
// package-level sentinels with errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return other.Code == e.Code && other.Message == ""
	}
	return false
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func NotFound(msg string) error            { return New(CodeNotFound, msg) }
func Forbidden(msg string) error           { return New(CodeForbidden, msg) }
func AlreadyProcessed(msg string) error    { return New(CodeAlreadyProcessed, msg) }
func Conflict(msg string) error            { return New(CodeConflict, msg) }
func InvalidState(msg string) error        { return New(CodeInvalidState, msg) }
func RecallWindowExpired(msg string) error { return New(CodeRecallWindowExpired, msg) }
func Validation(msg string) error          { return New(CodeValidationFailed, msg) }
func Unauthorized(msg string) error        { return New(CodeUnauthorized, msg) }
func TokenExpired(msg string) error        { return New(CodeTokenExpired, msg) }

// Internal wraps a storage or infrastructure failure.
func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// Sentinels for errors.Is comparisons. They carry no message and match by code only.
var (
	ErrNotFound            = &AppError{Code: CodeNotFound}
	ErrForbidden           = &AppError{Code: CodeForbidden}
	ErrAlreadyProcessed    = &AppError{Code: CodeAlreadyProcessed}
	ErrConflict            = &AppError{Code: CodeConflict}
	ErrInvalidState        = &AppError{Code: CodeInvalidState}
	ErrRecallWindowExpired = &AppError{Code: CodeRecallWindowExpired}
	ErrValidation          = &AppError{Code: CodeValidationFailed}
	ErrUnauthorized        = &AppError{Code: CodeUnauthorized}
	ErrTokenExpired        = &AppError{Code: CodeTokenExpired}
	ErrInternal            = &AppError{Code: CodeInternal}
)

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code returned to API callers.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeAlreadyProcessed, CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeRecallWindowExpired:
		return http.StatusUnprocessableEntity
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides internal causes from API responses.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != CodeInternal && appErr.Message != "" {
		return appErr.Message
	}
	return "internal server error"
}

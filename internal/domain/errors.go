package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in the JSON "code" field.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeRateLimited  = "RATE_LIMITED"
	CodeParse        = "PARSE_ERROR"
	CodeMapping      = "MAPPING_ERROR"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError is an error with a stable code and HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: http.StatusNotFound}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: http.StatusConflict}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: http.StatusBadRequest}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: http.StatusUnauthorized}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: http.StatusForbidden}
}

func ErrTooManyRequests(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: http.StatusTooManyRequests}
}

// ErrParse rejects an export that could not be read. Nothing was persisted.
func ErrParse(msg string, cause error) *AppError {
	return &AppError{Code: CodeParse, Message: msg, Status: http.StatusUnprocessableEntity, Cause: cause}
}

// ErrMapping rejects an import whose author mapping could not be resolved.
// Any writes made before the failure were rolled back.
func ErrMapping(msg string, cause error) *AppError {
	return &AppError{Code: CodeMapping, Message: msg, Status: http.StatusUnprocessableEntity, Cause: cause}
}

func ErrUpstream(msg string, cause error) *AppError {
	return &AppError{Code: CodeUpstream, Message: msg, Status: http.StatusBadGateway, Cause: cause}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: http.StatusInternalServerError, Cause: cause}
}

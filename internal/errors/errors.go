package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode int

const (
	// Client errors (4xx)
	ErrCodeBadRequest   ErrorCode = 400
	ErrCodeUnauthorized ErrorCode = 401
	ErrCodeNotFound     ErrorCode = 404
	ErrCodeConflict     ErrorCode = 409
	ErrCodeInvalidKey   ErrorCode = 422

	// Server errors (5xx)
	ErrCodeInternal ErrorCode = 500
	ErrCodeStorage  ErrorCode = 520
	ErrCodeStream   ErrorCode = 521
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, status int, message string, cause error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Cause:      cause,
	}
}

// NewBadRequest creates a bad request error
func NewBadRequest(message string) *AppError {
	return newError(ErrCodeBadRequest, http.StatusBadRequest, message, nil)
}

// NewBadRequestWithCause creates a bad request error with cause
func NewBadRequestWithCause(message string, cause error) *AppError {
	return newError(ErrCodeBadRequest, http.StatusBadRequest, message, cause)
}

// NewUnauthorized creates an unauthorized error
func NewUnauthorized(message string) *AppError {
	return newError(ErrCodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// NewNotFound creates a not found error
func NewNotFound(message string) *AppError {
	return newError(ErrCodeNotFound, http.StatusNotFound, message, nil)
}

// NewConflict creates a conflict error
func NewConflict(message string) *AppError {
	return newError(ErrCodeConflict, http.StatusConflict, message, nil)
}

// NewInvalidKey creates an error for unusable key material
func NewInvalidKey(message string, cause error) *AppError {
	return newError(ErrCodeInvalidKey, http.StatusUnprocessableEntity, message, cause)
}

// NewInternal creates an internal server error
func NewInternal(message string) *AppError {
	return newError(ErrCodeInternal, http.StatusInternalServerError, message, nil)
}

// NewInternalWithCause creates an internal server error with cause
func NewInternalWithCause(message string, cause error) *AppError {
	return newError(ErrCodeInternal, http.StatusInternalServerError, message, cause)
}

// NewStorageError creates an error for store failures
func NewStorageError(message string, cause error) *AppError {
	return newError(ErrCodeStorage, http.StatusServiceUnavailable, message, cause)
}

// NewStreamError creates an error for failures while munging a body
func NewStreamError(message string, cause error) *AppError {
	return newError(ErrCodeStream, http.StatusBadGateway, message, cause)
}

// As reports whether err is, or wraps, an *AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ToHTTPStatus converts an error to HTTP status code
func ToHTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// ToJSON converts an error to JSON bytes
func ToJSON(err error) []byte {
	if appErr, ok := As(err); ok {
		data, _ := json.Marshal(map[string]interface{}{
			"code": appErr.Code,
			"msg":  appErr.Message,
		})
		return data
	}
	data, _ := json.Marshal(map[string]interface{}{
		"code": ErrCodeInternal,
		"msg":  err.Error(),
	})
	return data
}

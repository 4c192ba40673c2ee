package utils

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Messaging errors
	ErrValidation       = "VALIDATION_ERROR"
	ErrNotAuthenticated = "NOT_AUTHENTICATED"
	ErrPersistence      = "PERSISTENCE_ERROR"
	ErrTransport        = "TRANSPORT_ERROR"

	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrUserNotFound = "USER_NOT_FOUND"
	ErrDuplicate    = "DUPLICATE"

	// Authentication/Authorization errors
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN" // User is authenticated but doesn't have permission
	ErrInvalidToken       = "INVALID_TOKEN"
	ErrInvalidCredentials = "INVALID_CREDENTIALS"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewNotAuthenticatedError(message string) *AppError {
	return &AppError{
		Code:    ErrNotAuthenticated,
		Message: message,
	}
}

func NewPersistenceError(message string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrPersistence,
		Message: message,
		Origin:  originalErr,
	}
}

func NewTransportError(message string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrTransport,
		Message: message,
		Origin:  originalErr,
	}
}

func NewUserNotFoundError(userID string) *AppError {
	return &AppError{
		Code:    ErrUserNotFound,
		Message: "User not found: " + userID,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewActorTimeoutError(actorName string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
		Origin:  originalErr,
	}
}

// IsErrorCode reports whether err, or any error it wraps, is an AppError with code.
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsValidationError(err error) bool {
	return IsErrorCode(err, ErrValidation)
}

// IsNotFound matches both the generic and the user specific not-found codes.
func IsNotFound(err error) bool {
	return IsErrorCode(err, ErrNotFound) || IsErrorCode(err, ErrUserNotFound)
}

// Helper method to check if an error is related to authentication
func IsAuthError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrUnauthorized ||
			appErr.Code == ErrNotAuthenticated ||
			appErr.Code == ErrForbidden ||
			appErr.Code == ErrInvalidToken
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound, ErrUserNotFound:
		return http.StatusNotFound
	case ErrValidation, ErrInvalidCredentials:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrNotAuthenticated, ErrInvalidToken:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrDuplicate:
		return http.StatusConflict
	case ErrPersistence, ErrTransport, ErrActorTimeout:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus returns the status for any error, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return AppErrorToHTTPStatus(appErr.Code)
	}
	return http.StatusInternalServerError
}

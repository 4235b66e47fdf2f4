package errors

import (
	"fmt"
	"net/http"
)

// AppError is the standard application error shape.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // not serialized, used for the response status
	Err        error  `json:"-"` // original cause, for logs, never exposed to clients
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the original cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// Wrap creates an AppError wrapping an existing error.
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Err:        err,
	}
}

// FromError converts a generic error into an AppError. Unknown errors become
// a generic internal error preserving the original cause.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail returns a COPY of the error with extra detail, so the base
// catalog variables are never mutated.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause returns a COPY of the error carrying the original cause.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// ERROR CATALOG
// =================================================================================

// 400 Bad Request
var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "The request is malformed or missing required parameters.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "The request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Required fields are missing from the request.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// 401 Unauthorized
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication is required.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrCredentialMissing = &AppError{
		Code:       "CREDENTIAL_MISSING",
		Message:    "No access credential was provided.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredential = &AppError{
		Code:       "INVALID_CREDENTIAL",
		Message:    "The access credential is malformed, expired or has a bad signature.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidLogin = &AppError{
		Code:       "INVALID_LOGIN",
		Message:    "Email or password is incorrect.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "The credential subject does not exist.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrContextBindingFailed = &AppError{
		Code:       "CONTEXT_BINDING_FAILED",
		Message:    "The tenant execution context could not be established.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrRefreshRejected = &AppError{
		Code:       "REFRESH_REJECTED",
		Message:    "The refresh credential is invalid, revoked or expired.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// 403 Forbidden
var (
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Access to this resource is not allowed.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrUserInactive = &AppError{
		Code:       "USER_INACTIVE",
		Message:    "The user account is suspended or pending activation.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrPermissionDenied = &AppError{
		Code:       "PERMISSION_DENIED",
		Message:    "The principal lacks the permission required by this operation.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrCSRFRejected = &AppError{
		Code:       "CSRF_REJECTED",
		Message:    "CSRF token missing or mismatch.",
		HTTPStatus: http.StatusForbidden,
	}
)

// 404 / 405
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "The requested resource does not exist.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "The HTTP method is not allowed on this resource.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

// 5xx
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected internal error occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrStoreUnavailable = &AppError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "The backing store is unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

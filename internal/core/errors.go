// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrRateLimited   = errors.New("rate limited")
	ErrInternalError = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
	Details    map[string]string
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.StatusCode)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "UNAUTHORIZED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func NotFoundError(resource string) *AppError {
	return NewAppError(ErrNotFound, resource+" not found", http.StatusNotFound, "NOT_FOUND")
}

// DuplicateError answers 400, not 409.
func DuplicateError(message string) *AppError {
	return NewAppError(ErrDuplicateKey, message, http.StatusBadRequest, "DUPLICATE")
}

func ValidationError(message string, details map[string]string) *AppError {
	appErr := NewAppError(ErrInvalidInput, message, http.StatusBadRequest, "VALIDATION_ERROR")
	appErr.Details = details
	return appErr
}

func InvalidCredentialsError() *AppError {
	return NewAppError(
		ErrUnauthorized,
		"invalid email or password",
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
	)
}

func CaptchaFailedError(message string) *AppError {
	if message == "" {
		message = "captcha verification failed"
	}
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, "CAPTCHA_FAILED")
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "session expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "invalid session", http.StatusUnauthorized, "TOKEN_INVALID")
}

func TokenRevokedError() *AppError {
	return NewAppError(ErrTokenRevoked, "session revoked", http.StatusUnauthorized, "TOKEN_REVOKED")
}

func RateLimitedError(message string) *AppError {
	return NewAppError(ErrRateLimited, message, http.StatusTooManyRequests, "RATE_LIMITED")
}

func InternalError(err error) *AppError {
	return NewAppError(
		errors.Join(ErrInternalError, err),
		"internal server error",
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
	)
}

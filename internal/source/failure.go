package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// The failure taxonomy every collaborator maps onto before returning an
// error. Callers branch on classification via the Is* helpers, never on
// error strings.

// NetworkError indicates a connectivity problem: DNS, TLS, timeout, or an
// aborted request. Network errors are retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError indicates the server answered with a non-success status.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status indicates a transient condition.
func (e *ServerError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ValidationError indicates client-side input was rejected before any
// network call was made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// AuthError indicates that authentication has failed or expired for a
// backend. It is returned when a 401 response is received; it signals the
// caller to re-authenticate, nothing is logged out automatically.
type AuthError struct {
	Backend Backend
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Backend, e.Message)
}

// CacheError indicates a local persistence problem (preferences store).
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error during %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// AppError is the catch-all classification for unexpected failures.
type AppError struct {
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsValidationError reports whether err is a client-side input rejection.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsCacheError reports whether err came from local persistence.
func IsCacheError(err error) bool {
	var cErr *CacheError
	return errors.As(err, &cErr)
}

// IsRetryable reports whether retrying the operation unchanged could
// succeed: network failures and transient server statuses (429, 5xx).
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Retryable()
	}
	return false
}

// classified reports whether err already carries one of the taxonomy types.
func classified(err error) bool {
	var (
		netErr   *NetworkError
		srvErr   *ServerError
		valErr   *ValidationError
		authErr  *AuthError
		cacheErr *CacheError
		appErr   *AppError
	)
	return errors.As(err, &netErr) ||
		errors.As(err, &srvErr) ||
		errors.As(err, &valErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &cacheErr) ||
		errors.As(err, &appErr)
}

// Classify converts an arbitrary error into a taxonomy error at a package
// boundary. Already-classified errors pass through unchanged; transport
// errors and context expiry become NetworkError; everything else becomes
// AppError.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if classified(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NetworkError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{Op: op, Err: err}
	}
	return &AppError{Message: op, Err: err}
}

// StatusError maps an HTTP status to the taxonomy: 401 becomes an
// AuthError, anything else a ServerError.
func StatusError(backend Backend, status int, message string) error {
	if status == 401 {
		return &AuthError{Backend: backend, Message: message}
	}
	return &ServerError{StatusCode: status, Message: message}
}

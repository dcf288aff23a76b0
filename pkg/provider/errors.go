package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
var (
	// ErrBackendUnavailable indicates a transient network/service failure.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrThrottled indicates the request was rate limited by the backend.
	ErrThrottled = errors.New("request throttled")

	// ErrAuth indicates authentication or authorization failed.
	ErrAuth = errors.New("backend authentication failed")

	// ErrRejected indicates the backend rejected a well-formed request
	// (bad bucket, bad key space, unsupported call).
	ErrRejected = errors.New("backend rejected request")

	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// BackendError wraps backend-specific errors with enough context to
// diagnose which backend and which job was involved.
type BackendError struct {
	// Op is the operation that failed (e.g., "List", "Describe").
	Op string

	// Provider is the backend type (e.g., "pipelines").
	Provider Type

	// JobID is the job id involved, if known.
	JobID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s %s: job %s: %v", e.Provider, e.Op, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsUnavailable returns true for transient backend failures.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsThrottled returns true if the backend rate limited the request.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsAuth returns true if authentication or authorization failed.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsRejected returns true if the backend rejected the request outright.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsJobNotFound returns true if the requested job does not exist.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// IsRetryable reports whether an adapter may retry the failed call.
// Auth and rejected errors are never retryable.
func IsRetryable(err error) bool {
	return IsUnavailable(err) || IsThrottled(err)
}

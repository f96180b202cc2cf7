package api

import (
	"errors"
	"fmt"
)

// Application-level result codes. The cloud leaves most of its errno
// space undocumented; the codes below are the ones with known meaning
// and this table is the only place they appear.
const (
	// ErrnoSuccess indicates a successful call.
	ErrnoSuccess = 0

	// ErrnoRequestTooFrequent is returned when the provider enforces
	// its own call-frequency limit. Retryable after backoff.
	ErrnoRequestTooFrequent = 40402

	// ErrnoUnsupportedFunction is returned for a WorkMode setting
	// write while the device scheduler is active. This is a business
	// rule, not an I/O failure: the scheduler must be disabled before
	// the work mode can be written directly.
	ErrnoUnsupportedFunction = 44096
)

// Sentinel errors.
var (
	// ErrAuth indicates an invalid or expired API key.
	ErrAuth = errors.New("authentication failed")

	// ErrBadResponse indicates a response that does not match the
	// documented envelope.
	ErrBadResponse = errors.New("unexpected response format")
)

// Error is a non-zero errno returned by the cloud.
type Error struct {
	// Errno is the application-level result code.
	Errno int

	// Message is the human-readable message from the response.
	Message string

	// Endpoint is the API path that produced the error.
	Endpoint string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cloud error %d on %s", e.Errno, e.Endpoint)
	}
	return fmt.Sprintf("cloud error %d on %s: %s", e.Errno, e.Endpoint, e.Message)
}

// ConnectionError wraps a transport-level failure (DNS, TCP, TLS,
// timeout, malformed body). These are transient from the caller's
// point of view. Note that a timed-out call may still have landed
// remotely.
type ConnectionError struct {
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cloud request failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConflict reports whether err is the scheduler-active business
// rule rejection.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Errno == ErrnoUnsupportedFunction
}

// IsRateLimited reports whether err is a provider-enforced frequency
// rejection.
func IsRateLimited(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Errno == ErrnoRequestTooFrequent
}

// IsTransient reports whether err is a transport-level failure worth
// retrying without operator involvement.
func IsTransient(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// ErrnoOf extracts the errno from an Error, or -1 when err carries
// no response envelope.
func ErrnoOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Errno
	}
	return -1
}

package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// SourceError wraps errors with source context
type SourceError struct {
	Source    string // Source name (e.g., "http")
	Operation string // Operation that failed (e.g., "fetch", "connect")
	Path      string // Content path being fetched, if any
	Err       error  // Underlying error
	Retryable bool   // Whether this error is retryable
}

func (e *SourceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source %q", e.Source)
	if e.Operation != "" {
		fmt.Fprintf(&b, " %s", e.Operation)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Operation != "" {
		b.WriteString(" failed")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *SourceError) IsRetryable() bool {
	return e.Retryable
}

// NotFoundError reports that a source has no content at the requested path.
type NotFoundError struct {
	Source string
	Path   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source %q: %s not found", e.Source, e.Path)
}

// ConnectionError represents a connection failure
type ConnectionError struct {
	Source  string
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("source %q: connection to %s failed: %v", e.Source, e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a timeout
type TimeoutError struct {
	Source    string
	Operation string
	Duration  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("source %q: %s timed out after %s", e.Source, e.Operation, e.Duration)
}

// ValidationError represents invalid input or configuration
type ValidationError struct {
	Source string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("source %q: invalid %s: %s", e.Source, e.Field, e.Reason)
	}
	return fmt.Sprintf("source %q: validation failed: %s", e.Source, e.Reason)
}

// HTTPError represents a non-2xx response from a remote content host
type HTTPError struct {
	Source     string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("source %q: HTTP %d %s: %s", e.Source, e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("source %q: HTTP %d %s", e.Source, e.StatusCode, e.Status)
}

// IsRetryable returns true for 5xx errors and 429 (rate limit)
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// CircuitOpenError indicates the circuit breaker is open
type CircuitOpenError struct {
	Source string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("source %q: circuit breaker open, service temporarily unavailable", e.Source)
}

// NewSourceError creates a SourceError with retryable detection
func NewSourceError(source, operation, path string, err error) *SourceError {
	return &SourceError{
		Source:    source,
		Operation: operation,
		Path:      path,
		Err:       err,
		Retryable: isRetryableError(err),
	}
}

// IsNotFound reports whether err means the content does not exist.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"temporary failure",
		"try again",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// UserFriendlyMessage returns a short message suitable for showing readers
// in place of page content.
func UserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return "This page has no content yet."
	}

	var circuitErr *CircuitOpenError
	if errors.As(err, &circuitErr) {
		return "Content service temporarily unavailable. Please try again later."
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 401, httpErr.StatusCode == 403:
			return "Access to the content host was denied."
		case httpErr.StatusCode == 404:
			return "This page has no content yet."
		case httpErr.StatusCode == 429:
			return "Too many requests. Please slow down."
		case httpErr.StatusCode >= 500:
			return "Content host error. Please try again later."
		default:
			return fmt.Sprintf("Content request failed (HTTP %d).", httpErr.StatusCode)
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return "Loading the page timed out. Please try again."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Loading the page timed out. Please try again."
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return "Could not reach the content host."
	}

	return "Content not available."
}

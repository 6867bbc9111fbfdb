package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// RejectionMessage is the message of every non-2xx create or update.
const RejectionMessage = "Could not update Jira."

// Common errors
var (
	ErrNotAuthenticated   = errors.New("not authenticated - check source.email and source.apitoken")
	ErrNotFound           = errors.New("resource not found")
	ErrRateLimited        = errors.New("API rate limit exceeded")
	ErrRejected           = errors.New(RejectionMessage)
	ErrTransitionNotFound = errors.New("transition not available")
)

// RejectionError is returned when Jira answers a create or update with a
// non-2xx status. Its message is fixed; the status and body are kept for
// logging.
type RejectionError struct {
	StatusCode int
	Body       []byte
}

func (e *RejectionError) Error() string {
	return RejectionMessage
}

// Is makes errors.Is(err, ErrRejected) true for every rejection.
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// HTTPStatusCode returns the status Jira answered with.
func (e *RejectionError) HTTPStatusCode() int {
	return e.StatusCode
}

// TransportError is returned when no response was received at all.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("could not reach Jira: %v", e.Err)
	}
	return fmt.Sprintf("could not reach Jira: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx answer to a search, watcher or transition call.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter string
}

func newHTTPError(resp *Response) *HTTPError {
	e := &HTTPError{StatusCode: resp.StatusCode, Body: summarizeBody(resp.Body)}
	if resp.Header != nil {
		e.RetryAfter = resp.Header.Get("Retry-After")
	}
	return e
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// HTTPStatusCode returns the status Jira answered with.
func (e *HTTPError) HTTPStatusCode() int {
	return e.StatusCode
}

// RetryAfterSeconds returns the Retry-After header, if any.
func (e *HTTPError) RetryAfterSeconds() string {
	return e.RetryAfter
}

func summarizeBody(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit]) + "..."
	}
	return s
}

// APIError wraps Jira API errors with additional context
type APIError struct {
	Operation string
	Resource  string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Resource, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// httpStatusCoder is implemented by errors that carry an HTTP status code.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// retryAfterProvider is implemented by errors that carry a Retry-After value.
type retryAfterProvider interface {
	RetryAfterSeconds() string
}

func statusCode(err error) int {
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

// IsNotFound checks if an error indicates a resource was not found
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return statusCode(err) == http.StatusNotFound
}

// IsRateLimited checks if an error indicates rate limiting.
// Detects rate limits via:
//   - Sentinel ErrRateLimited
//   - HTTP 429 status code
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return statusCode(err) == http.StatusTooManyRequests
}

// IsRetryable reports whether the request may succeed if sent again:
// rate limits and 503 Service Unavailable.
func IsRetryable(err error) bool {
	return IsRateLimited(err) || statusCode(err) == http.StatusServiceUnavailable
}

// GetRetryAfter extracts a Retry-After duration from an error, if available.
// Returns 0 if no Retry-After information is present.
func GetRetryAfter(err error) time.Duration {
	var rap retryAfterProvider
	if errors.As(err, &rap) {
		if s := rap.RetryAfterSeconds(); s != "" {
			if seconds, parseErr := strconv.Atoi(s); parseErr == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return 0
}

// IsAuthError checks if an error indicates authentication issues
func IsAuthError(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	code := statusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsRejected reports whether Jira refused a create or update.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsTransportError reports whether the request never got a response.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// WrapError wraps an API error with operation context
func WrapError(operation, resource string, err error) error {
	if err == nil {
		return nil
	}

	// Check for specific error types and wrap accordingly
	switch {
	case IsRateLimited(err):
		return &APIError{Operation: operation, Resource: resource, Err: fmt.Errorf("%w: %v", ErrRateLimited, err)}
	case IsNotFound(err):
		return &APIError{Operation: operation, Resource: resource, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
	case IsAuthError(err):
		return &APIError{Operation: operation, Resource: resource, Err: fmt.Errorf("%w: %v", ErrNotAuthenticated, err)}
	}

	return &APIError{
		Operation: operation,
		Resource:  resource,
		Err:       err,
	}
}

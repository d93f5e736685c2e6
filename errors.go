package declarest

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by Cache implementations when a key is absent or
// its entry has lapsed. It is the only cache outcome the pipeline treats as
// normal control flow; every other cache error degrades to a logged miss.
var ErrCacheMiss = errors.New("declarest: cache miss")

// ConfigurationError reports a bad or missing descriptor, auth or cache
// configuration. It is raised at construction or lookup time, never mid-call.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func newConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports a call-time parameter or body schema violation.
// It always surfaces before any network traffic.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s", e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError reports a login/refresh failure or the absence of a
// usable token. Status carries the upstream HTTP status when one was seen.
type AuthenticationError struct {
	Message string
	Status  int
	Cause   error
}

func (e *AuthenticationError) Error() string {
	msg := "authentication: " + e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// APIError reports a non-2xx response on an endpoint with raise_on_error
// set. Body holds the decoded error payload (JSON value or raw string).
type APIError struct {
	Status int
	Body   any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: request failed with status %d", e.Status)
}

// RetryExhaustedError reports that every attempt of a retried operation
// failed. The last observed error remains inspectable through Unwrap.
type RetryExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// CacheError reports an unreachable cache backend or a serialization
// failure. Construction-time cache errors fail fast; call-time ones are
// logged and absorbed by the pipeline.
type CacheError struct {
	Op    string
	Key   string
	Cause error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache: %s %q: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("cache: %s: %v", e.Op, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }

// isRetryable classifies an operation error for the retry executor. Errors
// that represent non-retryable states (bad input, bad config, failed auth)
// never earn another attempt; everything else, transport failures above all,
// does.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		validationErr *ValidationError
		configErr     *ConfigurationError
		authErr       *AuthenticationError
	)
	if errors.As(err, &validationErr) || errors.As(err, &configErr) || errors.As(err, &authErr) {
		return false
	}
	return true
}

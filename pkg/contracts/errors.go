package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the orchestration layer.
//
//   - ValidationError: malformed/empty input — fail fast, no retry, no
//     breaker impact.
//   - TimeoutError: deadline exceeded — triggers the fallback cascade.
//   - ProviderError: upstream call failure — retried with backoff, then
//     counted against the breaker.
//   - ResourceInitError: shared-resource construction failed — falls back
//     to the single baseline agent.
//   - ParseError: malformed request body — fail fast.

// ValidationError marks input that can never succeed as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// TimeoutError marks an operation that lost its deadline race.
type TimeoutError struct {
	Operation string
	Deadline  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s exceeded %s", e.Operation, e.Deadline)
}

// ProviderError marks an upstream provider failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ResourceInitError marks a failed shared-resource construction.
type ResourceInitError struct {
	Resource string
	Err      error
}

func (e *ResourceInitError) Error() string {
	return fmt.Sprintf("resource init %s: %v", e.Resource, e.Err)
}

func (e *ResourceInitError) Unwrap() error { return e.Err }

// ParseError marks a malformed request body.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse: " + e.Reason
}

// IsRetryable reports whether the error class may succeed on retry.
// Validation and parse failures never do.
func IsRetryable(err error) bool {
	var ve *ValidationError
	var pe *ParseError
	if errors.As(err, &ve) || errors.As(err, &pe) {
		return false
	}
	return true
}

// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"fmt"
	"time"
)

// TransportError represents a network-level failure talking to a model
// provider: connection resets, DNS failures, 5xx responses.
// Transport errors are retryable.
type TransportError struct {
	// Provider is the name of the model provider (e.g., "openrouter")
	Provider string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Message is the human-readable error description
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport error from %s", e.Provider)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error { return e.Cause }

// ErrorType returns the error category.
func (e *TransportError) ErrorType() string { return "transport" }

// IsRetryable reports whether the operation should be retried.
func (e *TransportError) IsRetryable() bool { return true }

// RateLimitError represents a provider rate-limit response (HTTP 429).
// Rate-limit errors are retryable with exponential backoff.
type RateLimitError struct {
	// Provider is the name of the model provider
	Provider string

	// RetryAfter is the provider-suggested wait, zero if not supplied
	RetryAfter time.Duration

	// Message is the human-readable error description
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s (retry after %v): %s", e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("rate limited by %s: %s", e.Provider, e.Message)
}

// ErrorType returns the error category.
func (e *RateLimitError) ErrorType() string { return "rate_limited" }

// IsRetryable reports whether the operation should be retried.
func (e *RateLimitError) IsRetryable() bool { return true }

// InvalidResponseError represents a model response the harness could not
// use: malformed JSON, a non-object payload, or an empty completion.
// Invalid responses are retried up to the batch retry budget.
type InvalidResponseError struct {
	// Provider is the name of the model provider
	Provider string

	// Message describes what was wrong with the response
	Message string

	// Cause is the underlying error (e.g., the JSON parse error)
	Cause error
}

// Error implements the error interface.
func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response from %s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *InvalidResponseError) Unwrap() error { return e.Cause }

// ErrorType returns the error category.
func (e *InvalidResponseError) ErrorType() string { return "invalid_response" }

// IsRetryable reports whether the operation should be retried.
func (e *InvalidResponseError) IsRetryable() bool { return true }

// TimeoutError represents an operation that exceeded its configured budget.
// Timeouts are retryable.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "model invoke", "batch")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error { return e.Cause }

// ErrorType returns the error category.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable reports whether the operation should be retried.
func (e *TimeoutError) IsRetryable() bool { return true }

// CancelledError represents cooperative cancellation of a run or batch.
// Cancellation is terminal and never retried.
type CancelledError struct {
	// Operation describes what was cancelled (e.g., "run", "batch 3")
	Operation string
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled", e.Operation)
}

// ErrorType returns the error category.
func (e *CancelledError) ErrorType() string { return "cancelled" }

// IsRetryable reports whether the operation should be retried.
func (e *CancelledError) IsRetryable() bool { return false }

// BadRequestError represents a provider rejection of the request itself
// (4xx other than 429). Retrying the same request cannot succeed.
type BadRequestError struct {
	// Provider is the name of the model provider
	Provider string

	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the provider's error message
	Message string
}

// Error implements the error interface.
func (e *BadRequestError) Error() string {
	return fmt.Sprintf("%s rejected request [HTTP %d]: %s", e.Provider, e.StatusCode, e.Message)
}

// ErrorType returns the error category.
func (e *BadRequestError) ErrorType() string { return "bad_request" }

// IsRetryable reports whether the operation should be retried.
func (e *BadRequestError) IsRetryable() bool { return false }

// StoreError represents a persistence failure in the artifact store.
// A store failure on artifact write fails the owning run.
type StoreError struct {
	// Op is the store operation that failed (e.g., "write artifact")
	Op string

	// Key is the artifact id or collection name involved
	Key string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StoreError) Unwrap() error { return e.Cause }

// ErrorType returns the error category.
func (e *StoreError) ErrorType() string { return "store_persist" }

// IsRetryable reports whether the operation should be retried.
func (e *StoreError) IsRetryable() bool { return false }

// CompileCheckError represents a failure running the external syntax
// checker. Check failures are scored against the response, never retried.
type CompileCheckError struct {
	// Message describes the checker failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *CompileCheckError) Error() string {
	return fmt.Sprintf("compile check: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CompileCheckError) Unwrap() error { return e.Cause }

// ErrorType returns the error category.
func (e *CompileCheckError) ErrorType() string { return "compile_check" }

// IsRetryable reports whether the operation should be retried.
func (e *CompileCheckError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
// Invalid run requests are rejected at Submit with a ConfigError.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "batch_size")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error { return e.Cause }

// ErrorType returns the error category.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable reports whether the operation should be retried.
func (e *ConfigError) IsRetryable() bool { return false }

// NotFoundError represents a resource not found error.
// Use this when a requested run, artifact, or collection does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "run", "artifact", "collection")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrorType returns the error category.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable reports whether the operation should be retried.
func (e *NotFoundError) IsRetryable() bool { return false }

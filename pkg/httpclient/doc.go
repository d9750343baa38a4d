// Package httpclient provides a unified HTTP client factory with consistent
// timeout, retry, and observability behavior for the benchmark harness.
//
// The package creates HTTP clients with sensible, secure defaults including:
//   - Automatic retry with exponential backoff and jitter
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - Correlation ID propagation for distributed tracing
//   - TLS 1.2 minimum (TLS 1.3 preferred)
//   - Connection pooling for performance
//
// # Usage
//
// Create a client with default settings:
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("https://api.example.com/resource")
//
// # Retry Behavior
//
// The client retries transient failures with exponential backoff: HTTP 5xx,
// 429 (honoring Retry-After), 408, and transient network errors. Client
// errors other than 408/429 are never retried, and only idempotent methods
// (GET, HEAD, OPTIONS) retry by default.
//
// Model providers construct their clients with RetryAttempts = 0: reissuing
// a failed model call is the batch executor's decision, not the transport's.
//
// # Security
//
// Sensitive query parameters (api_key, token, password and similar) are
// redacted from logs, Authorization headers are never logged, and TLS 1.2
// is the minimum accepted version.
package httpclient

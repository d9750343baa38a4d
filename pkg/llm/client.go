// Package llm provides abstractions for Large Language Model providers.
// The benchmark engine talks to models exclusively through the Client
// interface; concrete HTTP implementations live in the providers subpackage.
package llm

import (
	"context"
	"time"
)

// Client is the model-facing boundary of the benchmark engine. A single
// Invoke sends one fully rendered prompt and returns the raw response text.
// Implementations must be safe for concurrent use; the engine issues calls
// from many batch executors at once.
type Client interface {
	// Name returns the unique identifier for this client (e.g. "openrouter").
	Name() string

	// Invoke sends a prompt and blocks until the model response is complete.
	// Retries are owned by the caller: a failed Invoke leaves no state behind
	// and may be reissued with the same request.
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
}

// InvokeRequest contains all parameters for a single model invocation.
type InvokeRequest struct {
	// Prompt is the complete prompt text, already rendered.
	Prompt string

	// Temperature controls randomness (0.0 = deterministic). Valid range 0-2.
	Temperature float64

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int

	// Timeout bounds this single invocation. Zero means the caller's context
	// deadline (if any) is the only bound.
	Timeout time.Duration

	// Metadata carries request tracking information (run id, batch number).
	// Providers may attach it to outbound headers; it never changes semantics.
	Metadata map[string]string
}

// InvokeResult contains the response from a completed invocation.
type InvokeResult struct {
	// Text is the raw response text from the model.
	Text string

	// Usage contains token consumption information when the provider
	// reports it; zero values otherwise.
	Usage TokenUsage

	// Model is the actual model ID that handled this request.
	Model string

	// RequestID is the unique identifier for this request (for tracing).
	RequestID string

	// Created is the timestamp when this response was received.
	Created time.Time
}

// TokenUsage tracks token consumption for a single invocation.
type TokenUsage struct {
	// InputTokens is the number of tokens in the prompt.
	InputTokens int

	// OutputTokens is the number of tokens in the completion.
	OutputTokens int

	// TotalTokens is the sum of input and output tokens.
	TotalTokens int
}

// Add accumulates usage from another invocation. Useful for per-run totals.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

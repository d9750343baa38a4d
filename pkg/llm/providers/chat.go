package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// chatRequest is the OpenAI-compatible chat completions payload. OpenRouter
// and the OAuth2 gateway both speak this dialect.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// chatInvoke performs one chat completions call and maps the outcome to the
// engine's error kinds. The caller supplies an authenticated HTTP client and
// any provider-specific headers.
func chatInvoke(ctx context.Context, client *http.Client, provider, baseURL, model string, headers map[string]string, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	requestID := uuid.New().String()

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, &errors.BadRequestError{
			Provider: provider,
			Message:  fmt.Sprintf("failed to marshal request: %v", err),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &errors.BadRequestError{
			Provider: provider,
			Message:  fmt.Sprintf("failed to create request: %v", err),
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(provider, err, req.Timeout)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransportError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response body",
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(provider, resp.StatusCode, respBody, resp.Header)
	}

	return parseChatResponse(provider, respBody, requestID)
}

// parseChatResponse extracts the completion text and usage from a successful
// chat completions body. Anything the engine cannot use maps to an
// InvalidResponseError so the batch executor retries it.
func parseChatResponse(provider string, body []byte, requestID string) (*llm.InvokeResult, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &errors.InvalidResponseError{
			Provider: provider,
			Message:  "response is not valid JSON",
			Cause:    err,
		}
	}

	if len(parsed.Choices) == 0 {
		return nil, &errors.InvalidResponseError{
			Provider: provider,
			Message:  "response contains no choices",
		}
	}

	text := parsed.Choices[0].Message.Content
	if text == "" {
		return nil, &errors.InvalidResponseError{
			Provider: provider,
			Message:  "response text is empty",
		}
	}

	return &llm.InvokeResult{
		Text: text,
		Usage: llm.TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
		Model:     parsed.Model,
		RequestID: requestID,
		Created:   time.Now(),
	}, nil
}

// statusError maps a non-200 HTTP response to the engine's error kinds:
// 429 is a rate limit, 5xx is a transport failure, everything else rejects
// the request outright.
func statusError(provider string, statusCode int, body []byte, header http.Header) error {
	message := fmt.Sprintf("request failed with status %d", statusCode)
	var errResp chatErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &errors.RateLimitError{
			Provider:   provider,
			RetryAfter: parseRetryAfter(header),
			Message:    message,
		}
	case statusCode >= 500:
		return &errors.TransportError{
			Provider:   provider,
			StatusCode: statusCode,
			Message:    message,
		}
	default:
		return &errors.BadRequestError{
			Provider:   provider,
			StatusCode: statusCode,
			Message:    message,
		}
	}
}

// classifyTransportError distinguishes deadline expiry and caller
// cancellation from genuine network failures.
func classifyTransportError(provider string, err error, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &errors.TimeoutError{
			Operation: provider + " invoke",
			Duration:  timeout,
			Cause:     err,
		}
	case errors.Is(err, context.Canceled):
		return &errors.CancelledError{Operation: provider + " invoke"}
	default:
		return &errors.TransportError{
			Provider: provider,
			Message:  err.Error(),
			Cause:    err,
		}
	}
}

// parseRetryAfter extracts the Retry-After header value.
// Supports both seconds (integer) and HTTP-date formats.
// Returns 0 if the header is missing or invalid.
func parseRetryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(value); err == nil {
		if delay := time.Until(retryTime); delay > 0 {
			return delay
		}
	}

	return 0
}

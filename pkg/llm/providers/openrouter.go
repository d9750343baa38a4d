package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/httpclient"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

const (
	// openRouterBaseURL is the base URL for the OpenRouter API.
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// providerHTTPTimeout is the transport-level ceiling for a single model
	// call. Per-invocation budgets come in through InvokeRequest.Timeout.
	providerHTTPTimeout = 120 * time.Second
)

// OpenRouterConfig configures the OpenRouter client.
type OpenRouterConfig struct {
	// APIKey authenticates with OpenRouter (required).
	APIKey string

	// Model is the model slug to invoke, e.g. "openai/gpt-4o" (required).
	Model string

	// BaseURL overrides the API endpoint. Defaults to the public API.
	BaseURL string

	// Referer and Title populate OpenRouter's optional attribution headers.
	Referer string
	Title   string
}

// OpenRouter invokes models through the OpenRouter chat completions API.
type OpenRouter struct {
	cfg        OpenRouterConfig
	httpClient *http.Client
}

// NewOpenRouter creates an OpenRouter client. The API key should come from
// secure storage (keychain or encrypted config), never from source.
func NewOpenRouter(cfg OpenRouterConfig) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, &errors.ConfigError{
			Key:    "openrouter.api_key",
			Reason: "API key is required for the OpenRouter client",
		}
	}
	if cfg.Model == "" {
		return nil, &errors.ConfigError{
			Key:    "openrouter.model",
			Reason: "model slug is required for the OpenRouter client",
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = providerHTTPTimeout
	hcfg.UserAgent = "jacbench-openrouter/1.0"
	// Reissue policy is owned by the batch executor, not the transport.
	hcfg.RetryAttempts = 0

	client, err := httpclient.New(hcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &OpenRouter{
		cfg:        cfg,
		httpClient: client,
	}, nil
}

// Name returns the client identifier.
func (p *OpenRouter) Name() string {
	return "openrouter"
}

// Invoke sends one prompt through the chat completions endpoint.
func (p *OpenRouter) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + p.cfg.APIKey,
	}
	if p.cfg.Referer != "" {
		headers["HTTP-Referer"] = p.cfg.Referer
	}
	if p.cfg.Title != "" {
		headers["X-Title"] = p.cfg.Title
	}

	return chatInvoke(ctx, p.httpClient, p.Name(), p.cfg.BaseURL, p.cfg.Model, headers, req)
}

var _ llm.Client = (*OpenRouter)(nil)

package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/httpclient"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// GatewayConfig configures a client for an OpenAI-compatible gateway that
// sits behind OAuth2 client-credentials authentication. Organizations
// fronting model access with their own token service use this instead of
// per-developer API keys.
type GatewayConfig struct {
	// BaseURL is the gateway endpoint (required, http or https).
	BaseURL string

	// Model is the model identifier the gateway expects (required).
	Model string

	// TokenURL is the OAuth2 token endpoint (required).
	TokenURL string

	// ClientID and ClientSecret authenticate the client-credentials flow
	// (both required).
	ClientID     string
	ClientSecret string

	// Scopes are the OAuth2 scopes to request (optional).
	Scopes []string
}

func (c GatewayConfig) validate() error {
	if c.BaseURL == "" {
		return &errors.ConfigError{Key: "gateway.base_url", Reason: "base URL is required for the gateway client"}
	}
	if !strings.HasPrefix(c.BaseURL, "https://") && !strings.HasPrefix(c.BaseURL, "http://") {
		return &errors.ConfigError{Key: "gateway.base_url", Reason: "base URL must start with http:// or https://"}
	}
	if c.Model == "" {
		return &errors.ConfigError{Key: "gateway.model", Reason: "model is required for the gateway client"}
	}
	if c.TokenURL == "" {
		return &errors.ConfigError{Key: "gateway.token_url", Reason: "token URL is required for the gateway client"}
	}
	if c.ClientID == "" {
		return &errors.ConfigError{Key: "gateway.client_id", Reason: "client id is required for the gateway client"}
	}
	if c.ClientSecret == "" {
		return &errors.ConfigError{Key: "gateway.client_secret", Reason: "client secret is required for the gateway client"}
	}
	return nil
}

// Gateway invokes models through an OAuth2-protected chat completions API.
// Token acquisition and refresh are handled by the oauth2 transport; each
// request carries a bearer token that is renewed before expiry.
type Gateway struct {
	cfg        GatewayConfig
	httpClient *http.Client
}

// NewGateway creates a gateway client. No token is fetched until the first
// Invoke, so construction succeeds even when the token service is down.
func NewGateway(ctx context.Context, cfg GatewayConfig) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = providerHTTPTimeout
	hcfg.UserAgent = "jacbench-gateway/1.0"
	hcfg.RetryAttempts = 0

	base, err := httpclient.New(hcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	// Token fetches reuse the configured base client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = providerHTTPTimeout

	return &Gateway{
		cfg:        cfg,
		httpClient: client,
	}, nil
}

// Name returns the client identifier.
func (p *Gateway) Name() string {
	return "gateway"
}

// Invoke sends one prompt through the gateway's chat completions endpoint.
func (p *Gateway) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	result, err := chatInvoke(ctx, p.httpClient, p.Name(), p.cfg.BaseURL, p.cfg.Model, nil, req)
	if err != nil {
		return nil, p.mapTokenError(err)
	}
	return result, nil
}

// mapTokenError converts token-endpoint rejections into non-retryable
// errors. The oauth2 transport surfaces them from client.Do, so they arrive
// here wrapped in a transport classification.
func (p *Gateway) mapTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		reason := retrieveErr.ErrorCode
		if reason == "" {
			reason = retrieveErr.Response.Status
		}
		return &errors.BadRequestError{
			Provider:   p.Name(),
			StatusCode: retrieveErr.Response.StatusCode,
			Message:    fmt.Sprintf("token request rejected: %s", reason),
		}
	}
	return err
}

var _ llm.Client = (*Gateway)(nil)

// Package providers contains the concrete model clients: OpenRouter (API
// key), AWS Bedrock (SigV4), and an OAuth2-fronted OpenAI-compatible
// gateway. The engine never constructs these directly; it receives an
// llm.Client built by New from configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// Supported provider names.
const (
	ProviderOpenRouter = "openrouter"
	ProviderBedrock    = "bedrock"
	ProviderGateway    = "gateway"
)

// Options selects and configures a concrete model client. Exactly one of
// the provider config blocks is consulted, chosen by Provider.
type Options struct {
	// Provider names the implementation: "openrouter" (default),
	// "bedrock", or "gateway".
	Provider string

	OpenRouter OpenRouterConfig
	Bedrock    BedrockConfig
	Gateway    GatewayConfig
}

// New constructs the configured model client. The context bounds
// construction-time work (AWS credential resolution, STS validation); it
// does not outlive the call.
func New(ctx context.Context, opts Options) (llm.Client, error) {
	switch opts.Provider {
	case ProviderOpenRouter, "":
		return NewOpenRouter(opts.OpenRouter)
	case ProviderBedrock:
		return NewBedrock(ctx, opts.Bedrock)
	case ProviderGateway:
		return NewGateway(ctx, opts.Gateway)
	default:
		return nil, &errors.ConfigError{
			Key:    "provider",
			Reason: fmt.Sprintf("unknown provider %q (supported: openrouter, bedrock, gateway)", opts.Provider),
		}
	}
}

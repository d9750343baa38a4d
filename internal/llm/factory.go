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

// Package llm builds model clients for the execution engine from daemon
// configuration. It owns the mapping from short model names to provider
// identifiers and the credential lookup through the secrets chain.
package llm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/internal/secrets"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm/providers"
)

// gatewaySecretKey names the OAuth2 client secret in the secrets chain.
// The gateway authenticates with a client secret rather than an API key,
// so it does not use the canonical providers/<name>/api_key slot.
const gatewaySecretKey = "providers/gateway/client_secret"

// Factory constructs model clients on demand. Clients are cached per
// model name: every run submitted for the same model shares one client
// and therefore one rate limiter, which keeps the process as a whole
// under the provider's request budget.
type Factory struct {
	cfg      config.ProviderConfig
	resolver *secrets.Resolver
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]llm.Client
}

// NewFactory creates a client factory. The resolver supplies credentials
// at first use; construction never touches the keychain.
func NewFactory(cfg config.ProviderConfig, resolver *secrets.Resolver, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{
		cfg:      cfg,
		resolver: resolver,
		logger:   log.WithComponent(logger, "llm"),
		clients:  make(map[string]llm.Client),
	}
}

// ClientFactory adapts the factory to the runner's constructor signature.
func (f *Factory) ClientFactory() runner.ClientFactory {
	return f.Client
}

// Client returns the model client for a short model name, building and
// caching it on first use. The context bounds credential resolution and
// provider construction only.
func (f *Factory) Client(ctx context.Context, model string) (llm.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[model]; ok {
		return c, nil
	}

	client, err := f.build(ctx, model)
	if err != nil {
		return nil, err
	}

	rl := f.cfg.RateLimit
	if rl.RPS > 0 {
		client = llm.NewRateLimitedClient(client, rl.RPS, rl.Burst)
	}

	f.clients[model] = client
	f.logger.Debug("model client created",
		slog.String("model", model),
		slog.String("provider", client.Name()))
	return client, nil
}

func (f *Factory) build(ctx context.Context, model string) (llm.Client, error) {
	opts := providers.Options{Provider: f.cfg.Default}

	switch f.cfg.Default {
	case providers.ProviderBedrock:
		opts.Bedrock = providers.BedrockConfig{
			Region:  f.cfg.Bedrock.Region,
			ModelID: mapModel(f.cfg.Bedrock.Models, model),
			BaseURL: f.cfg.Bedrock.BaseURL,
		}

	case providers.ProviderGateway:
		secret, err := f.resolver.Get(ctx, gatewaySecretKey)
		if err != nil {
			return nil, err
		}
		opts.Gateway = providers.GatewayConfig{
			BaseURL:      f.cfg.Gateway.BaseURL,
			Model:        model,
			TokenURL:     f.cfg.Gateway.TokenURL,
			ClientID:     f.cfg.Gateway.ClientID,
			ClientSecret: secret,
			Scopes:       f.cfg.Gateway.Scopes,
		}

	default: // openrouter
		key, err := f.resolver.Get(ctx, secrets.ProviderKey(providers.ProviderOpenRouter))
		if err != nil {
			return nil, err
		}
		opts.OpenRouter = providers.OpenRouterConfig{
			APIKey:  key,
			Model:   mapModel(f.cfg.OpenRouter.Models, model),
			BaseURL: f.cfg.OpenRouter.BaseURL,
			Referer: f.cfg.OpenRouter.Referer,
			Title:   f.cfg.OpenRouter.Title,
		}
	}

	return providers.New(ctx, opts)
}

// mapModel translates a short model name through the configured alias
// table. Unmapped names pass through unchanged so fully qualified ids
// always work.
func mapModel(aliases map[string]string, model string) string {
	if mapped, ok := aliases[model]; ok {
		return mapped
	}
	return model
}

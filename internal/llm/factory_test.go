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

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
	"github.com/kevinjin420/jaseci-llmdocs/internal/secrets"
)

func newTestFactory(t *testing.T, cfg config.ProviderConfig) *Factory {
	t.Helper()
	resolver, err := secrets.NewDefaultResolver("")
	require.NoError(t, err)
	return NewFactory(cfg, resolver, nil)
}

func TestClientOpenRouter(t *testing.T) {
	t.Setenv("JACBENCH_SECRET_PROVIDERS_OPENROUTER_API_KEY", "sk-or-test")

	f := newTestFactory(t, config.ProviderConfig{
		Default: "openrouter",
		OpenRouter: config.OpenRouterConfig{
			Models: map[string]string{"gpt-4o": "openai/gpt-4o"},
		},
	})

	client, err := f.Client(context.Background(), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", client.Name())
}

func TestClientCachedPerModel(t *testing.T) {
	t.Setenv("JACBENCH_SECRET_PROVIDERS_OPENROUTER_API_KEY", "sk-or-test")

	f := newTestFactory(t, config.ProviderConfig{Default: "openrouter"})

	first, err := f.Client(context.Background(), "gpt-4o")
	require.NoError(t, err)
	second, err := f.Client(context.Background(), "gpt-4o")
	require.NoError(t, err)

	// Same model must share one client so the rate limiter is shared.
	assert.Same(t, first, second)

	other, err := f.Client(context.Background(), "claude-sonnet-4")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestClientMissingCredential(t *testing.T) {
	// Environment backend only, with the key cleared, so no developer
	// keychain or secrets file can satisfy the lookup.
	t.Setenv("JACBENCH_SECRET_PROVIDERS_OPENROUTER_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	f := NewFactory(config.ProviderConfig{Default: "openrouter"},
		secrets.NewResolver(secrets.NewEnvBackend()), nil)

	_, err := f.Client(context.Background(), "gpt-4o")
	assert.Error(t, err)
}

func TestMapModelPassthrough(t *testing.T) {
	assert.Equal(t, "openai/gpt-4o", mapModel(map[string]string{"gpt-4o": "openai/gpt-4o"}, "gpt-4o"))
	assert.Equal(t, "meta-llama/llama-3-70b", mapModel(nil, "meta-llama/llama-3-70b"))
}

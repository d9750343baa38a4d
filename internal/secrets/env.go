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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvBackendPriority is the priority for the environment variable
	// backend. Highest so environment overrides always win.
	EnvBackendPriority = 100

	// envSecretPrefix is the prefix for jacbench secret environment variables.
	envSecretPrefix = "JACBENCH_SECRET_"
)

// EnvBackend provides read-only access to secrets via environment
// variables. Two naming conventions are honored:
//  1. JACBENCH_SECRET_<KEY> (normalized, e.g. JACBENCH_SECRET_PROVIDERS_OPENROUTER_API_KEY)
//  2. Provider-specific variables (e.g. OPENROUTER_API_KEY)
type EnvBackend struct{}

// NewEnvBackend creates a new environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string {
	return "env"
}

// Get retrieves a secret from environment variables. It checks both
// JACBENCH_SECRET_* and provider-specific variables.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	candidates := []string{e.normalizeKey(key)}
	if alias := e.providerAlias(key); alias != "" {
		candidates = append(candidates, alias)
	}

	for _, envKey := range candidates {
		if value := os.Getenv(envKey); value != "" {
			return value, nil
		}
	}

	return "", fmt.Errorf("%w: environment variable not set", ErrSecretNotFound)
}

// Set returns ErrReadOnlyBackend; the environment backend is read-only.
func (e *EnvBackend) Set(ctx context.Context, key string, value string) error {
	return ErrReadOnlyBackend
}

// Delete returns ErrReadOnlyBackend; the environment backend is read-only.
func (e *EnvBackend) Delete(ctx context.Context, key string) error {
	return ErrReadOnlyBackend
}

// List returns all JACBENCH_SECRET_* environment variables as secret keys.
func (e *EnvBackend) List(ctx context.Context) ([]string, error) {
	var keys []string
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, envSecretPrefix) {
			continue
		}
		name, value, ok := strings.Cut(env, "=")
		if ok && value != "" {
			keys = append(keys, e.denormalizeKey(name))
		}
	}
	return keys, nil
}

// Available returns true; environment variables are always reachable.
func (e *EnvBackend) Available() bool {
	return true
}

// Priority returns the backend priority (highest).
func (e *EnvBackend) Priority() int {
	return EnvBackendPriority
}

// ReadOnly returns true; the environment backend is read-only.
func (e *EnvBackend) ReadOnly() bool {
	return true
}

// normalizeKey converts a secret key to an environment variable name.
// Example: "providers/openrouter/api_key" -> "JACBENCH_SECRET_PROVIDERS_OPENROUTER_API_KEY"
func (e *EnvBackend) normalizeKey(key string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(key, "/", "_"))
	return envSecretPrefix + normalized
}

// denormalizeKey converts an environment variable name back to a secret
// key. The conversion is lossy: underscores that belonged to the key
// itself (e.g. "api_key") cannot be told apart from path separators, so
// only the first two underscores become slashes, matching the
// "providers/<name>/<key>" scheme.
func (e *EnvBackend) denormalizeKey(envVar string) string {
	key := strings.ToLower(strings.TrimPrefix(envVar, envSecretPrefix))

	parts := strings.Split(key, "_")
	if len(parts) >= 3 {
		return parts[0] + "/" + parts[1] + "/" + strings.Join(parts[2:], "_")
	}

	return strings.ReplaceAll(key, "_", "/")
}

// providerAlias returns the conventional environment variable for a
// provider credential, e.g. "providers/openrouter/api_key" -> "OPENROUTER_API_KEY".
func (e *EnvBackend) providerAlias(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) >= 3 && parts[0] == "providers" && parts[2] == "api_key" {
		return strings.ToUpper(parts[1]) + "_API_KEY"
	}
	return ""
}

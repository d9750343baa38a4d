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
	"errors"
	"fmt"
	"sort"
)

// Resolver manages a chain of Backends and resolves secrets by querying
// them in priority order.
type Resolver struct {
	backends []Backend
}

// NewResolver creates a resolver over the given backends. Unavailable
// backends are dropped and the rest are sorted by priority, highest
// first.
func NewResolver(backends ...Backend) *Resolver {
	available := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	sort.Slice(available, func(i, j int) bool {
		return available[i].Priority() > available[j].Priority()
	})

	return &Resolver{
		backends: available,
	}
}

// NewDefaultResolver builds the standard chain: environment, keychain,
// encrypted file. masterKey may be empty; the file backend then resolves
// it from JACBENCH_MASTER_KEY or the master.key file.
func NewDefaultResolver(masterKey string) (*Resolver, error) {
	fileBackend, err := NewFileBackend("", masterKey)
	if err != nil {
		return nil, err
	}
	return NewResolver(NewEnvBackend(), NewKeychainBackend(), fileBackend), nil
}

func (r *Resolver) ensureBackends() error {
	if len(r.backends) == 0 {
		return fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}
	return nil
}

// named finds a backend by name within the available chain.
func (r *Resolver) named(name string) (Backend, error) {
	for _, backend := range r.backends {
		if backend.Name() == name {
			return backend, nil
		}
	}
	return nil, fmt.Errorf("backend %q not found or unavailable", name)
}

func isReadOnly(b Backend) bool {
	ro, ok := b.(ReadOnlyBackend)
	return ok && ro.ReadOnly()
}

// Get retrieves a secret by querying backends in priority order. The
// first hit wins; ErrSecretNotFound is returned when every backend
// misses.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	if err := r.ensureBackends(); err != nil {
		return "", err
	}

	var lastErr error
	for _, backend := range r.backends {
		value, err := backend.Get(ctx, key)
		if err == nil {
			return value, nil
		}

		if !errors.Is(err, ErrSecretNotFound) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", key, lastErr)
	}

	return "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Set stores a secret in the first writable backend, or in the named
// backend when backendName is non-empty.
func (r *Resolver) Set(ctx context.Context, key string, value string, backendName string) error {
	if err := r.ensureBackends(); err != nil {
		return err
	}

	if backendName != "" {
		backend, err := r.named(backendName)
		if err != nil {
			return err
		}
		if err := backend.Set(ctx, key, value); err != nil {
			return fmt.Errorf("failed to set secret in %s: %w", backendName, err)
		}
		return nil
	}

	for _, backend := range r.backends {
		if isReadOnly(backend) {
			continue
		}

		if err := backend.Set(ctx, key, value); err != nil {
			if errors.Is(err, ErrReadOnlyBackend) {
				continue
			}
			return fmt.Errorf("failed to set secret in %s: %w", backend.Name(), err)
		}
		return nil
	}

	return fmt.Errorf("no writable backend available")
}

// Delete removes a secret from the named backend, or from every writable
// backend holding it when backendName is empty.
func (r *Resolver) Delete(ctx context.Context, key string, backendName string) error {
	if err := r.ensureBackends(); err != nil {
		return err
	}

	if backendName != "" {
		backend, err := r.named(backendName)
		if err != nil {
			return err
		}
		if err := backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete secret from %s: %w", backendName, err)
		}
		return nil
	}

	deleted := false
	for _, backend := range r.backends {
		if isReadOnly(backend) {
			continue
		}

		if err := backend.Delete(ctx, key); err != nil {
			if errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrReadOnlyBackend) {
				continue
			}
			return fmt.Errorf("failed to delete secret from %s: %w", backend.Name(), err)
		}
		deleted = true
	}

	if !deleted {
		return fmt.Errorf("%w: %q", ErrSecretNotFound, key)
	}

	return nil
}

// List returns metadata for all keys across all backends. When a key is
// visible through several backends the highest-priority one wins.
func (r *Resolver) List(ctx context.Context) ([]Metadata, error) {
	if err := r.ensureBackends(); err != nil {
		return nil, err
	}

	// Backends are already priority-sorted; first writer of a key wins.
	keyMap := make(map[string]Metadata)
	for _, backend := range r.backends {
		keys, err := backend.List(ctx)
		if err != nil {
			continue
		}

		for _, key := range keys {
			if _, exists := keyMap[key]; exists {
				continue
			}
			keyMap[key] = Metadata{
				Key:      key,
				Backend:  backend.Name(),
				ReadOnly: isReadOnly(backend),
			}
		}
	}

	result := make([]Metadata, 0, len(keyMap))
	for _, meta := range keyMap {
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })

	return result, nil
}

// Backends returns the available backends in priority order.
func (r *Resolver) Backends() []Backend {
	return r.backends
}

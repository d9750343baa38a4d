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
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainBackendPriority is the priority for the keychain backend.
	KeychainBackendPriority = 50

	// keychainService is the service name used for keychain entries.
	keychainService = "jacbench"
)

// KeychainBackend stores secrets in the OS keychain: Keychain Access on
// macOS, the Secret Service API on Linux, Credential Manager on Windows.
type KeychainBackend struct {
	available bool
}

// NewKeychainBackend creates a keychain backend. Availability is probed
// once at construction so a locked or absent keyring service is detected
// early instead of on first use.
func NewKeychainBackend() *KeychainBackend {
	// A NotFound on a key that cannot exist means the service answered;
	// any other error means it is unreachable.
	_, err := keyring.Get(keychainService, "__jacbench_availability_test__")

	return &KeychainBackend{
		available: err == nil || errors.Is(err, keyring.ErrNotFound),
	}
}

// Name returns the backend identifier.
func (k *KeychainBackend) Name() string {
	return "keychain"
}

// ready guards every operation on the availability probed at construction.
func (k *KeychainBackend) ready() error {
	if !k.available {
		return fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}
	return nil
}

// classifyKeyringErr maps go-keyring errors onto the package sentinels.
func classifyKeyringErr(key string, err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	case isKeychainUnavailableError(err):
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, err.Error())
	default:
		return fmt.Errorf("keychain error: %w", err)
	}
}

// Get retrieves a secret from the system keychain.
func (k *KeychainBackend) Get(ctx context.Context, key string) (string, error) {
	if err := k.ready(); err != nil {
		return "", err
	}

	value, err := keyring.Get(keychainService, key)
	if err != nil {
		return "", classifyKeyringErr(key, err)
	}

	return value, nil
}

// Set stores a secret in the system keychain.
func (k *KeychainBackend) Set(ctx context.Context, key string, value string) error {
	if err := k.ready(); err != nil {
		return err
	}

	if err := keyring.Set(keychainService, key, value); err != nil {
		return classifyKeyringErr(key, err)
	}

	return nil
}

// Delete removes a secret from the system keychain.
func (k *KeychainBackend) Delete(ctx context.Context, key string) error {
	if err := k.ready(); err != nil {
		return err
	}

	if err := keyring.Delete(keychainService, key); err != nil {
		return classifyKeyringErr(key, err)
	}

	return nil
}

// List returns an empty list. go-keyring cannot enumerate entries on
// every platform it supports, so keychain entries are resolved by exact
// key only.
func (k *KeychainBackend) List(ctx context.Context) ([]string, error) {
	if err := k.ready(); err != nil {
		return nil, err
	}

	return []string{}, nil
}

// Available reports whether the keychain service is accessible.
func (k *KeychainBackend) Available() bool {
	return k.available
}

// Priority returns the backend priority.
func (k *KeychainBackend) Priority() int {
	return KeychainBackendPriority
}

// isKeychainUnavailableError reports whether err indicates the keychain is
// locked or inaccessible. Matching is by message since the underlying
// platform libraries do not expose typed errors for these states.
func isKeychainUnavailableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"locked",
		"cannot access",
		"permission denied",
		"failed to unlock",
		"user interaction required",
		"secret service",
		"dbus",
		"user canceled",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}

	return false
}

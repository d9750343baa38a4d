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

/*
Package secrets stores and resolves provider credentials.

API keys never live in jacbench.yaml. They are resolved through a
priority-ordered chain of backends:

	env      (100) - JACBENCH_SECRET_* and provider aliases like OPENROUTER_API_KEY
	keychain (50)  - OS keychain (macOS Keychain, Linux Secret Service, Windows Credential Manager)
	file     (25)  - AES-256-GCM encrypted file, key derived with Argon2id

# Usage

Build the standard chain and fetch a provider key:

	resolver, err := secrets.NewDefaultResolver("")
	if err != nil { ... }
	apiKey, err := resolver.Get(ctx, secrets.ProviderKey("openrouter"))

Store a key in a specific backend:

	err := resolver.Set(ctx, secrets.ProviderKey("openrouter"), "sk-or-...", "keychain")

# Key scheme

Provider credentials use the path form "providers/<name>/api_key". The
env backend accepts both the normalized form

	export JACBENCH_SECRET_PROVIDERS_OPENROUTER_API_KEY=sk-or-...

and the conventional alias

	export OPENROUTER_API_KEY=sk-or-...

# Encrypted file backend

The file backend keeps secrets in ~/.config/jacbench/secrets.enc. The
master key comes from JACBENCH_MASTER_KEY or ~/.config/jacbench/master.key
(0600, no symlinks). Without a master key the backend reports itself
unavailable and the chain skips it.
*/
package secrets

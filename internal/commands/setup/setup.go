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

// Package setup implements the interactive first-run wizard. It picks a
// provider, stores its credential through the secrets chain, and writes
// a starter config file.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
	"github.com/kevinjin420/jaseci-llmdocs/internal/secrets"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm/providers"
)

var (
	setupDryRun bool
	setupForce  bool
)

// wizardState collects every answer before anything is written.
type wizardState struct {
	Provider     string
	APIKey       string
	Region       string
	GatewayURL   string
	TokenURL     string
	ClientID     string
	ClientSecret string
	DocsDir      string
	SuitePath    string
}

// NewCommand creates the setup command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive first-run setup",
		Long: `Walk through first-run setup: pick a model provider, store its
credential in the secrets chain, and write a starter config file.

The config file lands in the XDG config directory
(~/.config/jacbench/jacbench.yaml). Credentials never go into the
config; they are stored via the keychain or encrypted-file backend
and resolved at daemon startup.

Examples:
  jacbench setup
  jacbench setup --dry-run`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}

	cmd.Flags().BoolVar(&setupDryRun, "dry-run", false, "Show what would be written without writing")
	cmd.Flags().BoolVar(&setupForce, "force", false, "Overwrite an existing config file")

	return cmd
}

func runSetup(cmd *cobra.Command, args []string) error {
	if shared.IsNonInteractive() {
		return shared.NewMissingInputNonInteractiveError(
			"setup is interactive; write the config file directly instead", nil)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil && !setupForce && !setupDryRun {
		return shared.NewInvalidRequestError(
			fmt.Sprintf("config already exists at %s (use --force to overwrite)", configPath), nil)
	}

	state := &wizardState{DocsDir: "docs"}
	if err := runForm(state); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Setup cancelled")
			return nil
		}
		return err
	}

	if setupDryRun {
		return printDryRun(state, configPath)
	}

	if err := storeCredential(cmd.Context(), state); err != nil {
		return err
	}

	if err := writeConfig(state, configPath); err != nil {
		return err
	}

	fmt.Printf("%s\n", shared.RenderOK("Config written to "+configPath))
	fmt.Println("\nNext steps:")
	fmt.Printf("  jacbenchd --config %s\n", configPath)
	fmt.Println("  jacbench variants")
	fmt.Println("  jacbench run <model> --variant <variant>")
	return nil
}

func runForm(state *wizardState) error {
	providerGroup := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Model provider").
			Description("Where benchmark requests are sent").
			Options(
				huh.NewOption("OpenRouter", providers.ProviderOpenRouter),
				huh.NewOption("AWS Bedrock", providers.ProviderBedrock),
				huh.NewOption("OAuth2 gateway", providers.ProviderGateway),
			).
			Value(&state.Provider),
	)

	openrouterGroup := huh.NewGroup(
		huh.NewInput().
			Title("OpenRouter API key").
			EchoMode(huh.EchoModePassword).
			Validate(required("an API key")).
			Value(&state.APIKey),
	).WithHideFunc(func() bool { return state.Provider != providers.ProviderOpenRouter })

	bedrockGroup := huh.NewGroup(
		huh.NewInput().
			Title("AWS region").
			Description("Credentials come from the standard AWS chain").
			Placeholder("us-east-1").
			Validate(required("a region")).
			Value(&state.Region),
	).WithHideFunc(func() bool { return state.Provider != providers.ProviderBedrock })

	gatewayGroup := huh.NewGroup(
		huh.NewInput().
			Title("Gateway base URL").
			Validate(required("a base URL")).
			Value(&state.GatewayURL),
		huh.NewInput().
			Title("Token URL").
			Validate(required("a token URL")).
			Value(&state.TokenURL),
		huh.NewInput().
			Title("Client ID").
			Validate(required("a client id")).
			Value(&state.ClientID),
		huh.NewInput().
			Title("Client secret").
			EchoMode(huh.EchoModePassword).
			Validate(required("a client secret")).
			Value(&state.ClientSecret),
	).WithHideFunc(func() bool { return state.Provider != providers.ProviderGateway })

	pathsGroup := huh.NewGroup(
		huh.NewInput().
			Title("Documentation directory").
			Description("Directory holding variant .md files").
			Value(&state.DocsDir),
		huh.NewInput().
			Title("Test suite path").
			Description("Leave empty for the built-in suite").
			Value(&state.SuitePath),
	)

	return huh.NewForm(providerGroup, openrouterGroup, bedrockGroup, gatewayGroup, pathsGroup).Run()
}

func required(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("enter %s", what)
		}
		return nil
	}
}

// storeCredential stores the provider secret through the resolver chain.
// Bedrock has no secret of its own; the AWS SDK chain handles it.
func storeCredential(ctx context.Context, state *wizardState) error {
	var key, value string
	switch state.Provider {
	case providers.ProviderOpenRouter:
		key, value = secrets.ProviderKey(providers.ProviderOpenRouter), state.APIKey
	case providers.ProviderGateway:
		key, value = "providers/gateway/client_secret", state.ClientSecret
	default:
		return nil
	}

	resolver, err := secrets.NewDefaultResolver("")
	if err != nil {
		return err
	}
	if err := resolver.Set(ctx, key, value, ""); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	fmt.Printf("%s\n", shared.RenderOK("Credential stored as "+key))
	return nil
}

// configFile is the subset of config written by setup. Everything else
// keeps its daemon-side default.
type configFile struct {
	Docs struct {
		Dir string `yaml:"dir"`
	} `yaml:"docs"`
	Suite struct {
		Path string `yaml:"path,omitempty"`
	} `yaml:"suite,omitempty"`
	Provider struct {
		Default    string `yaml:"default"`
		OpenRouter *struct {
			BaseURL string `yaml:"base_url,omitempty"`
		} `yaml:"openrouter,omitempty"`
		Bedrock *struct {
			Region string `yaml:"region"`
		} `yaml:"bedrock,omitempty"`
		Gateway *struct {
			BaseURL  string `yaml:"base_url"`
			TokenURL string `yaml:"token_url"`
			ClientID string `yaml:"client_id"`
		} `yaml:"gateway,omitempty"`
	} `yaml:"provider"`
}

func buildConfig(state *wizardState) *configFile {
	cf := &configFile{}
	cf.Docs.Dir = state.DocsDir
	cf.Suite.Path = state.SuitePath
	cf.Provider.Default = state.Provider

	switch state.Provider {
	case providers.ProviderBedrock:
		cf.Provider.Bedrock = &struct {
			Region string `yaml:"region"`
		}{Region: state.Region}
	case providers.ProviderGateway:
		cf.Provider.Gateway = &struct {
			BaseURL  string `yaml:"base_url"`
			TokenURL string `yaml:"token_url"`
			ClientID string `yaml:"client_id"`
		}{BaseURL: state.GatewayURL, TokenURL: state.TokenURL, ClientID: state.ClientID}
	}
	return cf
}

func writeConfig(state *wizardState, path string) error {
	data, err := yaml.Marshal(buildConfig(state))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func printDryRun(state *wizardState, configPath string) error {
	out := shared.NewDryRunOutput()
	out.DryRunCreateWithDescription("<config-dir>/jacbench.yaml",
		fmt.Sprintf("provider %s, docs dir %s", state.Provider, state.DocsDir))
	switch state.Provider {
	case providers.ProviderOpenRouter:
		out.DryRunCreate("<secrets-backend>/" + secrets.ProviderKey(providers.ProviderOpenRouter))
	case providers.ProviderGateway:
		out.DryRunCreate("<secrets-backend>/providers/gateway/client_secret")
	}
	fmt.Print(out.String())
	fmt.Printf("\nWould write: %s\n", configPath)
	return nil
}

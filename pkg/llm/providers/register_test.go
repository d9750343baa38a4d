package providers

import (
	"context"
	"testing"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

func TestNewSelectsProvider(t *testing.T) {
	client, err := New(context.Background(), Options{
		Provider:   ProviderOpenRouter,
		OpenRouter: OpenRouterConfig{APIKey: "k", Model: "openai/gpt-4o"},
	})
	if err != nil {
		t.Fatalf("New(openrouter) error: %v", err)
	}
	if client.Name() != "openrouter" {
		t.Errorf("Name() = %q, want openrouter", client.Name())
	}
}

func TestNewDefaultsToOpenRouter(t *testing.T) {
	client, err := New(context.Background(), Options{
		OpenRouter: OpenRouterConfig{APIKey: "k", Model: "openai/gpt-4o"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if client.Name() != "openrouter" {
		t.Errorf("Name() = %q, want openrouter", client.Name())
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "carrier-pigeon"})
	if err == nil {
		t.Fatal("New() accepted unknown provider")
	}

	var cfgErr *errors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("got %T (%v), want ConfigError", err, err)
	}
}

func TestNewPropagatesProviderConfigErrors(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: ProviderOpenRouter})
	if err == nil {
		t.Fatal("New() accepted openrouter without an API key")
	}

	var cfgErr *errors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("got %T (%v), want ConfigError", err, err)
	}
}

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

package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// fakeClient implements llm.Client for testing.
type fakeClient struct {
	name       string
	invokeFunc func(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error)
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	if f.invokeFunc != nil {
		return f.invokeFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func TestWrapClientRecordsUsage(t *testing.T) {
	exporter := installSpanRecorder(t)

	fake := &fakeClient{
		name: "openrouter",
		invokeFunc: func(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
			return &llm.InvokeResult{
				Text:      "### T01\ncode",
				Model:     "openai/gpt-4o",
				RequestID: "req-123",
				Usage:     llm.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
				Created:   time.Now(),
			}, nil
		},
	}

	traced := WrapClient(fake)
	if traced.Name() != "openrouter" {
		t.Errorf("Name() = %q, want passthrough", traced.Name())
	}

	result, err := traced.Invoke(context.Background(), llm.InvokeRequest{
		Prompt:      "prompt text",
		Temperature: 0.7,
		MaxTokens:   4096,
		Metadata:    map[string]string{"run_id": "run-1", "batch": "2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "### T01\ncode" {
		t.Errorf("result passthrough broken, got %q", result.Text)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "llm.invoke" {
		t.Errorf("span name = %q", span.Name)
	}
	if span.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status.Code)
	}

	want := map[string]any{
		"llm.client":              "openrouter",
		"llm.temperature":         0.7,
		"llm.max_tokens":          int64(4096),
		"llm.prompt_chars":        int64(len("prompt text")),
		"llm.metadata.run_id":     "run-1",
		"llm.metadata.batch":      "2",
		"llm.response.model":      "openai/gpt-4o",
		"llm.response.request_id": "req-123",
		"llm.usage.input_tokens":  int64(10),
		"llm.usage.output_tokens": int64(20),
		"llm.usage.total_tokens":  int64(30),
	}
	for key, expected := range want {
		if got := spanAttr(t, span, key); got != expected {
			t.Errorf("attribute %q = %v, want %v", key, got, expected)
		}
	}
}

func TestWrapClientPromptStaysOutOfSpan(t *testing.T) {
	exporter := installSpanRecorder(t)

	secret := "do not export this prompt"
	fake := &fakeClient{
		name: "openrouter",
		invokeFunc: func(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
			return &llm.InvokeResult{Text: "response body"}, nil
		},
	}

	if _, err := WrapClient(fake).Invoke(context.Background(), llm.InvokeRequest{Prompt: secret}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, span := range exporter.GetSpans() {
		for _, attr := range span.Attributes {
			if v, ok := attr.Value.AsInterface().(string); ok && v == secret {
				t.Fatalf("prompt text leaked into span attribute %q", attr.Key)
			}
		}
	}
}

func TestWrapClientRecordsError(t *testing.T) {
	exporter := installSpanRecorder(t)

	wantErr := errors.New("connection refused")
	fake := &fakeClient{
		name: "openrouter",
		invokeFunc: func(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
			return nil, wantErr
		},
	}

	_, err := WrapClient(fake).Invoke(context.Background(), llm.InvokeRequest{Prompt: "p"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error not passed through, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected exception event for the failure")
	}
}

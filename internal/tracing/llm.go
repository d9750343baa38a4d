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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// tracedClient wraps a model client so every invocation produces a
// client span carrying token usage. Prompt and response text stay out of
// the attributes; only their sizes are recorded.
type tracedClient struct {
	inner llm.Client
}

// WrapClient adds tracing instrumentation to a model client. Wrapping is
// idempotent in effect: with tracing disabled the wrapper adds a no-op
// span per call and nothing else.
func WrapClient(c llm.Client) llm.Client {
	return &tracedClient{inner: c}
}

// Name returns the underlying client's name.
func (t *tracedClient) Name() string {
	return t.inner.Name()
}

// Invoke issues the model call inside an "llm.invoke" span.
func (t *tracedClient) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.client", t.inner.Name()),
		attribute.Float64("llm.temperature", req.Temperature),
		attribute.Int("llm.max_tokens", req.MaxTokens),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	}
	for k, v := range req.Metadata {
		attrs = append(attrs, attribute.String("llm.metadata."+k, v))
	}

	ctx, span := otel.Tracer(scopeLLM).Start(ctx, "llm.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	result, err := t.inner.Invoke(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("llm.response.model", result.Model),
		attribute.String("llm.response.request_id", result.RequestID),
		attribute.Int("llm.response.chars", len(result.Text)),
		attribute.Int("llm.usage.input_tokens", result.Usage.InputTokens),
		attribute.Int("llm.usage.output_tokens", result.Usage.OutputTokens),
		attribute.Int("llm.usage.total_tokens", result.Usage.TotalTokens),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

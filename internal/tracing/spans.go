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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span wraps an OpenTelemetry span with nil-safe helpers so engine code
// can instrument unconditionally; with tracing disabled every method is
// a no-op.
type Span struct {
	span trace.Span
}

// StartRunSpan opens the root span for one benchmark run.
func StartRunSpan(ctx context.Context, runID, model, variantName string, batches int) (context.Context, *Span) {
	ctx, span := otel.Tracer(scopeEngine).Start(ctx, fmt.Sprintf("run: %s/%s", model, variantName),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.model", model),
			attribute.String("run.variant", variantName),
			attribute.Int("run.batches", batches),
			attribute.String("span.type", "run"),
		),
	)
	return ctx, &Span{span: span}
}

// StartBatchSpan opens a span for one batch attempt. Each retry gets its
// own span under the same run.
func StartBatchSpan(ctx context.Context, runID string, batch, attempt, tests int) (context.Context, *Span) {
	ctx, span := otel.Tracer(scopeEngine).Start(ctx, fmt.Sprintf("batch %d", batch),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("batch.number", batch),
			attribute.Int("batch.attempt", attempt),
			attribute.Int("batch.tests", tests),
			attribute.String("span.type", "batch"),
		),
	)
	return ctx, &Span{span: span}
}

// StartEvalSpan opens a span for one artifact evaluation.
func StartEvalSpan(ctx context.Context, artifactID string) (context.Context, *Span) {
	ctx, span := otel.Tracer(scopeEngine).Start(ctx, fmt.Sprintf("evaluate: %s", artifactID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("eval.artifact_id", artifactID),
			attribute.String("span.type", "eval"),
		),
	)
	return ctx, &Span{span: span}
}

// SetAttributes adds key-value attributes to the span.
func (s *Span) SetAttributes(attrs map[string]any) {
	if s == nil || s.span == nil {
		return
	}
	otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			otelAttrs = append(otelAttrs, attribute.String(k, val))
		case int:
			otelAttrs = append(otelAttrs, attribute.Int(k, val))
		case int64:
			otelAttrs = append(otelAttrs, attribute.Int64(k, val))
		case float64:
			otelAttrs = append(otelAttrs, attribute.Float64(k, val))
		case bool:
			otelAttrs = append(otelAttrs, attribute.Bool(k, val))
		default:
			otelAttrs = append(otelAttrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	s.span.SetAttributes(otelAttrs...)
}

// AddEvent records a timestamped event within the span.
func (s *Span) AddEvent(name string, attrs map[string]any) {
	if s == nil || s.span == nil {
		return
	}
	otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		otelAttrs = append(otelAttrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs...))
}

// RecordError marks the span failed with the given cause.
func (s *Span) RecordError(err error) {
	if s == nil || s.span == nil || err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// OK marks the span successful.
func (s *Span) OK() {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// End marks the span as complete.
func (s *Span) End() {
	if s == nil || s.span == nil {
		return
	}
	s.span.End()
}

// TraceID returns the trace id, empty when not recording.
func (s *Span) TraceID() string {
	if s == nil || s.span == nil {
		return ""
	}
	return s.span.SpanContext().TraceID().String()
}

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installSpanRecorder swaps in a synchronous in-memory exporter as the
// global tracer provider for the duration of one test.
func installSpanRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown tracer provider: %v", err)
		}
	})
	return exporter
}

// spanAttr returns the named attribute value from a finished span.
func spanAttr(t *testing.T, span tracetest.SpanStub, key string) any {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value.AsInterface()
		}
	}
	t.Fatalf("span %q missing attribute %q", span.Name, key)
	return nil
}

func TestStartRunSpanRecordsAttributes(t *testing.T) {
	exporter := installSpanRecorder(t)

	_, span := StartRunSpan(context.Background(), "run-1", "gpt-4o", "full", 3)
	span.SetAttributes(map[string]any{"run.status": "completed"})
	span.OK()
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != "run: gpt-4o/full" {
		t.Errorf("unexpected span name %q", got.Name)
	}
	if v := spanAttr(t, got, "run.id"); v != "run-1" {
		t.Errorf("run.id = %v", v)
	}
	if v := spanAttr(t, got, "run.batches"); v != int64(3) {
		t.Errorf("run.batches = %v", v)
	}
	if v := spanAttr(t, got, "run.status"); v != "completed" {
		t.Errorf("run.status = %v", v)
	}
	if got.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", got.Status.Code)
	}
}

func TestBatchSpanNestsUnderRunSpan(t *testing.T) {
	exporter := installSpanRecorder(t)

	ctx, runSpan := StartRunSpan(context.Background(), "run-1", "gpt-4o", "full", 1)
	_, batchSpan := StartBatchSpan(ctx, "run-1", 2, 1, 45)
	batchSpan.End()
	runSpan.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	// Syncer exports in end order: batch first, run second.
	batch, run := spans[0], spans[1]
	if batch.Parent.SpanID() != run.SpanContext.SpanID() {
		t.Error("batch span is not a child of the run span")
	}
	if batch.SpanContext.TraceID() != run.SpanContext.TraceID() {
		t.Error("batch and run spans are in different traces")
	}
	if v := spanAttr(t, batch, "batch.attempt"); v != int64(1) {
		t.Errorf("batch.attempt = %v", v)
	}
}

func TestEvalSpanRecordsError(t *testing.T) {
	exporter := installSpanRecorder(t)

	_, span := StartEvalSpan(context.Background(), "gpt-4o_full_20250601_120000")
	span.RecordError(errors.New("artifact unreadable"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status.Code)
	}
	if len(got.Events) == 0 {
		t.Fatal("expected an exception event on the span")
	}
}

func TestSpanHelpersAreNilSafe(t *testing.T) {
	var span *Span
	span.SetAttributes(map[string]any{"k": "v"})
	span.AddEvent("noop", nil)
	span.RecordError(errors.New("ignored"))
	span.OK()
	span.End()
	if id := span.TraceID(); id != "" {
		t.Errorf("TraceID on nil span = %q, want empty", id)
	}

	// Without a recording provider the helpers still hand back spans.
	_, s := StartBatchSpan(context.Background(), "run-1", 1, 1, 10)
	if s == nil {
		t.Fatal("expected non-nil span wrapper")
	}
	s.End()
}

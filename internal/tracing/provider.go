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
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing/export"
)

// Instrumentation scope names used across the harness.
const (
	scopeEngine = "jacbench.engine"
	scopeLLM    = "jacbench.llm"
	scopeHTTP   = "jacbench.http"
)

// Provider owns the process-global OpenTelemetry SDK state: the tracer
// provider with its configured exporters and a meter provider bridged to
// the Prometheus default registry. A Provider built with tracing
// disabled is a valid no-op whose methods are all safe to call.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *metric.MeterProvider
}

// NewProvider installs the SDK configured by cfg as the global tracer
// and meter provider. Exporters that fail to initialize are logged and
// skipped so one unreachable collector never blocks startup.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Empty schema URL avoids merge conflicts with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.Sampling)),
	}
	for _, processor := range buildProcessors(ctx, cfg, logger) {
		opts = append(opts, sdktrace.WithSpanProcessor(processor))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	promExporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(W3CPropagator())

	return &Provider{tp: tp, mp: mp}, nil
}

// buildProcessors creates one batch processor per configured exporter.
func buildProcessors(ctx context.Context, cfg Config, logger *slog.Logger) []sdktrace.SpanProcessor {
	var batchOpts []sdktrace.BatchSpanProcessorOption
	if cfg.BatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.BatchSize))
	}
	if cfg.BatchInterval > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchInterval))
	}

	var processors []sdktrace.SpanProcessor
	for _, ec := range cfg.Exporters {
		exporter, err := newExporter(ctx, ec)
		if err != nil {
			logger.Warn("skipping trace exporter",
				slog.String("type", ec.Type),
				slog.String("endpoint", ec.Endpoint),
				slog.String("error", err.Error()))
			continue
		}
		processors = append(processors, sdktrace.NewBatchSpanProcessor(exporter, batchOpts...))
		logger.Info("trace exporter configured",
			slog.String("type", ec.Type),
			slog.String("endpoint", ec.Endpoint))
	}
	return processors
}

// newExporter builds a single span exporter from its configuration.
func newExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Type {
	case "console":
		return export.NewConsole(nil)

	case "otlp", "otlp-grpc":
		ec, err := exportConfig(cfg)
		if err != nil {
			return nil, err
		}
		return export.NewGRPC(ctx, ec)

	case "otlp-http", "otlp_http":
		ec, err := exportConfig(cfg)
		if err != nil {
			return nil, err
		}
		return export.NewHTTP(ctx, ec)

	default:
		return nil, fmt.Errorf("unknown exporter type %q", cfg.Type)
	}
}

// exportConfig translates exporter settings into the export package's
// transport config, resolving the TLS material up front.
func exportConfig(cfg ExporterConfig) (export.Config, error) {
	ec := export.Config{
		Endpoint: cfg.Endpoint,
		Headers:  cfg.Headers,
		Insecure: !cfg.TLS.Enabled,
		Timeout:  cfg.Timeout,
	}
	if cfg.TLS.Enabled {
		tlsCfg, err := export.NewTLSConfig(export.TLSOptions{
			VerifyCertificate: cfg.TLS.VerifyCertificate,
			CACertPath:        cfg.TLS.CACertPath,
		})
		if err != nil {
			return export.Config{}, fmt.Errorf("build TLS config: %w", err)
		}
		ec.TLS = tlsCfg
	}
	return ec, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// MetricsHandler serves the Prometheus default registry, which carries
// both the harness's own collectors and the SDK-bridged instruments.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.ForceFlush(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.ForceFlush(ctx)
	}
	return nil
}

// Shutdown flushes pending spans and releases SDK resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.Shutdown(ctx)
	}
	return nil
}

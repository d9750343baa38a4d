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

// Package daemon assembles the benchmark engine and serves its HTTP
// control API. It wires configuration into the store, suite, variant
// catalog, event bus, queue manager, evaluation scheduler and run
// registry, and owns their lifecycle from startup through graceful
// drain.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/api"
	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/collection"
	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
	"github.com/kevinjin420/jaseci-llmdocs/internal/daemon/listener"
	"github.com/kevinjin420/jaseci-llmdocs/internal/evaluator"
	"github.com/kevinjin420/jaseci-llmdocs/internal/history"
	"github.com/kevinjin420/jaseci-llmdocs/internal/jaccheck"
	internalllm "github.com/kevinjin420/jaseci-llmdocs/internal/llm"
	internallog "github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/secrets"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store/fs"
	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing"
	"github.com/kevinjin420/jaseci-llmdocs/internal/variant"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

const (
	// pruneInterval is how often terminal runs are garbage collected
	// from the in-memory queue. Their permanent record lives in the
	// run registry.
	pruneInterval = 10 * time.Minute

	// runRetention is how long a terminal run stays queryable in
	// memory (snapshots and event topics) after finishing.
	runRetention = time.Hour
)

// Options contains daemon options set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string
}

// Daemon is the jacbenchd process: the benchmark engine plus the HTTP
// server in front of it.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	server  *http.Server
	ln      net.Listener
	pidFile string

	runner      *runner.Runner
	scheduler   *evaluator.Scheduler
	events      *bus.Bus
	store       *fs.Store
	catalog     *variant.DirCatalog
	collections *collection.Manager
	registry    *history.Registry
	provider    *tracing.Provider

	mu      sync.Mutex
	started bool
}

// New creates a daemon instance. Everything that can fail from bad
// configuration fails here; Start only binds the listener and serves.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := internallog.WithComponent(internallog.New(&internallog.Config{
		Level:     cfg.Log.Level,
		Format:    internallog.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
	}), "daemon")

	clk := clock.System()

	st, err := fs.New(cfg.Store.Root, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	testSuite := suite.Default()
	if cfg.Suite.Path != "" {
		testSuite, err = suite.Load(cfg.Suite.Path)
		if err != nil {
			return nil, err
		}
	}

	catalog, err := variant.NewDirCatalog(cfg.Docs.Dir, variant.Options{
		Patterns: cfg.Docs.Patterns,
		Debounce: cfg.Docs.Debounce,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open variant catalog: %w", err)
	}

	events := bus.New(bus.Options{
		QueueSize: cfg.Bus.QueueSize,
		Retention: cfg.Bus.Retention,
	})

	resolver, err := secrets.NewDefaultResolver("")
	if err != nil {
		return nil, fmt.Errorf("failed to build secrets resolver: %w", err)
	}
	factory := internalllm.NewFactory(cfg.Provider, resolver, logger)

	run := runner.New(runner.Config{
		MaxConcurrentBatches: cfg.Runner.MaxConcurrentBatches,
		BatchTimeout:         cfg.Runner.BatchTimeout,
		RunTimeout:           cfg.Runner.RunTimeout,
		Retry:                retryConfig(cfg.Runner.Retry),
		DefaultBatchSize:     cfg.Runner.DefaultBatchSize,
	}, factory.ClientFactory(), st, catalog, testSuite, events, logger)

	checker := jaccheck.New(jaccheck.Config{
		Command: cfg.SyntaxCheck.Command,
		Args:    cfg.SyntaxCheck.Args,
		Timeout: cfg.SyntaxCheck.Timeout,
	}, logger)

	scorer := score.New(score.Config{
		ForbiddenFraction: cfg.Scoring.ForbiddenFraction,
		SyntaxFraction:    cfg.Scoring.SyntaxFraction,
		CompileFraction:   cfg.Scoring.CompileFraction,
		Workers:           cfg.Scoring.Workers,
	}, checker)

	sched := evaluator.New(scorer, st, testSuite, events, logger,
		evaluator.WithMaxConcurrent(cfg.Eval.MaxConcurrent))
	run.SetEvalTracker(sched)

	registry, err := history.New(history.Config{
		Path: cfg.History.Path,
		WAL:  cfg.History.WAL,
	}, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run registry: %w", err)
	}
	run.SetHistory(registry)

	return &Daemon{
		cfg:         cfg,
		opts:        opts,
		logger:      logger,
		runner:      run,
		scheduler:   sched,
		events:      events,
		store:       st,
		catalog:     catalog,
		collections: collection.NewManager(st, logger),
		registry:    registry,
	}, nil
}

// Start starts the daemon and blocks until the context is cancelled or
// the server fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("daemon already started")
	}
	d.started = true
	d.mu.Unlock()

	if d.cfg.Server.PIDFile != "" {
		if err := d.writePIDFile(); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		d.pidFile = d.cfg.Server.PIDFile
	}

	provider, err := tracing.NewProvider(ctx, tracingConfig(d.cfg.Tracing, d.opts.Version), d.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	d.provider = provider

	if d.cfg.Docs.Watch {
		if err := d.catalog.Watch(ctx); err != nil {
			d.logger.Warn("variant watcher unavailable, serving a static catalog",
				internallog.Error(err))
		}
	}

	d.scheduler.Start(ctx)

	ln, err := listener.New(d.cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	d.ln = ln

	router := api.NewRouter(api.RouterConfig{
		Version:   d.opts.Version,
		Commit:    d.opts.Commit,
		BuildDate: d.opts.BuildDate,
	}, d.logger)

	api.NewRunsHandler(d.runner, d.events, d.registry, d.logger).RegisterRoutes(router.Mux())
	api.NewArtifactsHandler(d.store, d.scheduler).RegisterRoutes(router.Mux())
	api.NewCollectionsHandler(d.collections).RegisterRoutes(router.Mux())
	api.NewVariantsHandler(d.catalog).RegisterRoutes(router.Mux())

	router.SetRunnerStatus(d.runner)
	router.SetEvaluatorStatus(d.scheduler)
	if d.cfg.Metrics.Enabled {
		router.SetMetricsHandler(d.provider.MetricsHandler())
	}

	// No WriteTimeout: the event stream holds its response open for the
	// life of a run.
	d.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	d.logger.Info("jacbenchd starting",
		slog.String("version", d.opts.Version),
		slog.String("listen_addr", ln.Addr().String()))

	go d.pruneLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains active runs and stops the daemon.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	activeCount := d.runner.ActiveRunCount()
	d.logger.Info("graceful shutdown initiated",
		slog.Int("active_runs", activeCount))

	// Refuse new submissions, then give in-flight runs and their
	// evaluations the drain window to settle.
	d.runner.StartDraining()
	if d.server != nil {
		d.server.SetKeepAlivesEnabled(false)
	}

	drainCtx, drainCancel := context.WithTimeout(ctx, d.cfg.Server.DrainTimeout)
	defer drainCancel()

	if err := d.runner.WaitForDrain(drainCtx, d.cfg.Server.DrainTimeout); err != nil {
		d.logger.Warn("drain timeout exceeded",
			slog.Int("remaining_runs", d.runner.ActiveRunCount()),
			slog.Duration("drain_timeout", d.cfg.Server.DrainTimeout))
	} else if err := d.scheduler.WaitIdle(drainCtx, d.cfg.Server.DrainTimeout); err != nil {
		d.logger.Warn("evaluations still outstanding at shutdown",
			slog.Int("outstanding", d.scheduler.Outstanding()))
	} else {
		d.logger.Info("all runs and evaluations settled during drain")
	}

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, d.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("HTTP server shutdown error", internallog.Error(err))
		}
	}

	d.catalog.Stop()
	d.events.Close()

	if err := d.registry.Close(); err != nil {
		d.logger.Error("run registry close error", internallog.Error(err))
	}
	if err := d.store.Close(); err != nil {
		d.logger.Error("artifact store close error", internallog.Error(err))
	}

	if d.pidFile != "" {
		if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
			d.logger.Error("failed to remove PID file",
				internallog.Error(err),
				slog.String("path", d.pidFile))
		}
	}

	if d.cfg.Server.SocketPath != "" && d.cfg.Server.TCPAddr == "" {
		if err := os.Remove(d.cfg.Server.SocketPath); err != nil && !os.IsNotExist(err) {
			d.logger.Error("failed to remove socket file",
				internallog.Error(err),
				slog.String("path", d.cfg.Server.SocketPath))
		}
	}

	if d.provider != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := d.provider.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("tracing shutdown error", internallog.Error(err))
		}
	}

	d.started = false
	d.logger.Info("daemon stopped")
	return nil
}

// pruneLoop garbage-collects terminal runs on a fixed cadence.
func (d *Daemon) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runner.Prune(runRetention)
		}
	}
}

// writePIDFile records the daemon's PID, owner-readable only.
func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.cfg.Server.PIDFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}

// retryConfig maps the YAML retry block onto the engine's schedule.
func retryConfig(rc config.RetryConfig) llm.RetryConfig {
	return llm.RetryConfig{
		MaxRetries:   rc.MaxRetries,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.Multiplier,
		Jitter:       rc.Jitter,
	}
}

// tracingConfig maps the YAML tracing block onto the SDK wiring.
func tracingConfig(tc config.TracingConfig, version string) tracing.Config {
	cfg := tracing.Config{
		Enabled:        tc.Enabled,
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		Sampling: tracing.SamplingConfig{
			Rate:               tc.SampleRate,
			AlwaysSampleErrors: tc.AlwaysSampleErrors,
		},
	}
	for _, exp := range tc.Exporters {
		cfg.Exporters = append(cfg.Exporters, tracing.ExporterConfig{
			Type:     exp.Type,
			Endpoint: exp.Endpoint,
			Headers:  exp.Headers,
			TLS: tracing.TLSConfig{
				Enabled:           !exp.Insecure,
				VerifyCertificate: true,
			},
		})
	}
	return cfg
}

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

// Package api provides the daemon's HTTP control surface: run
// submission and lifecycle, SSE event streaming, artifacts and
// evaluations, collections, variants, and health/version endpoints.
package api

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/httputil"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version   string
	Commit    string
	BuildDate string
}

// RunnerStatus reports engine liveness for health checks.
type RunnerStatus interface {
	ActiveRunCount() int
	IsDraining() bool
}

// EvaluatorStatus reports the evaluation backlog for health checks.
type EvaluatorStatus interface {
	Outstanding() int
}

// Router wraps an http.ServeMux with the middleware chain and the
// endpoints that are not tied to one engine component.
type Router struct {
	mux       *http.ServeMux
	chain     http.Handler
	config    RouterConfig
	logger    *slog.Logger
	started   time.Time
	runner    RunnerStatus
	evaluator EvaluatorStatus
}

// NewRouter creates the HTTP router with health, version, and root
// endpoints registered. Component handlers register themselves on Mux.
func NewRouter(cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rt := &Router{
		mux:     http.NewServeMux(),
		config:  cfg,
		logger:  log.WithComponent(logger, "api"),
		started: time.Now(),
	}

	rt.mux.HandleFunc("GET /v1/health", rt.handleHealth)
	rt.mux.HandleFunc("GET /v1/version", rt.handleVersion)
	rt.mux.HandleFunc("GET /", rt.handleRoot)

	// Middleware from innermost to outermost: request logging, then
	// correlation ids, then span creation, then trace extraction from
	// incoming headers.
	var handler http.Handler = rt.mux
	handler = log.HTTPMiddleware(rt.logger, handler)
	handler = tracing.CorrelationMiddleware(handler)
	handler = tracing.TracingMiddleware(handler)
	handler = tracing.HTTPMiddleware(handler)
	rt.chain = handler

	return rt
}

// SetRunnerStatus wires the runner into the health endpoint.
func (rt *Router) SetRunnerStatus(s RunnerStatus) {
	rt.runner = s
}

// SetEvaluatorStatus wires the evaluator into the health endpoint.
func (rt *Router) SetEvaluatorStatus(s EvaluatorStatus) {
	rt.evaluator = s
}

// SetMetricsHandler registers the Prometheus metrics endpoint.
func (rt *Router) SetMetricsHandler(handler http.Handler) {
	if handler != nil {
		rt.mux.Handle("GET /metrics", handler)
	}
}

// Mux returns the underlying ServeMux for registering component routes.
func (rt *Router) Mux() *http.ServeMux {
	return rt.mux
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt.chain.ServeHTTP(w, req)
}

// handleHealth handles GET /v1/health.
func (rt *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	body := map[string]any{
		"version":        rt.config.Version,
		"uptime_seconds": int64(time.Since(rt.started).Seconds()),
	}
	if rt.runner != nil {
		if rt.runner.IsDraining() {
			status = "draining"
		}
		body["active_runs"] = rt.runner.ActiveRunCount()
	}
	if rt.evaluator != nil {
		body["outstanding_evaluations"] = rt.evaluator.Outstanding()
	}
	body["status"] = status
	httputil.WriteJSON(w, http.StatusOK, body)
}

// handleVersion handles GET /v1/version.
func (rt *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    rt.config.Version,
		"commit":     rt.config.Commit,
		"build_date": rt.config.BuildDate,
		"go_version": runtime.Version(),
	})
}

// handleRoot handles GET / for basic connectivity.
func (rt *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "jacbenchd",
		"version": rt.config.Version,
	})
}

// writeDomainError maps engine errors onto HTTP status codes: missing
// resources to 404, invalid requests to 400, state conflicts to 409,
// draining to 503, anything unrecognized to 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var nfErr *errors.NotFoundError
	var cfgErr *errors.ConfigError
	switch {
	case err == nil:
		return
	case errors.Is(err, runner.ErrDraining):
		w.Header().Set("Retry-After", "10")
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, runner.ErrRunTerminal),
		errors.Is(err, store.ErrArtifactExists),
		errors.Is(err, store.ErrEvalResultExists),
		errors.Is(err, store.ErrArtifactReferenced),
		errors.Is(err, store.ErrCollectionExists),
		errors.Is(err, store.ErrAlreadyInCollection):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &nfErr):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &cfgErr):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

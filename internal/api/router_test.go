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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/collection"
	"github.com/kevinjin420/jaseci-llmdocs/internal/evaluator"
	"github.com/kevinjin420/jaseci-llmdocs/internal/history"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store/fs"
	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/internal/variant"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// invokeFunc scripts the fake model client used by the test engine.
type invokeFunc func(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error)

type fakeClient struct {
	fn invokeFunc
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	return c.fn(ctx, req)
}

// answerAll replies to every suite test named in the prompt, the way a
// well-behaved model does.
func answerAll(s *suite.Suite) invokeFunc {
	return func(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
		out := make(map[string]string)
		for _, id := range s.IDs() {
			if strings.Contains(req.Prompt, id) {
				out[id] = "node " + id + " {}"
			}
		}
		text, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return &llm.InvokeResult{
			Text:  string(text),
			Usage: llm.TokenUsage{InputTokens: 5, OutputTokens: 10, TotalTokens: 15},
			Model: "fake",
		}, nil
	}
}

func benchSuite(n int) *suite.Suite {
	s := &suite.Suite{Name: "api-test"}
	for i := 1; i <= n; i++ {
		s.Tests = append(s.Tests, suite.TestCase{
			ID:       fmt.Sprintf("t%02d", i),
			Category: "Basics",
			Level:    1,
			Points:   10,
			Task:     "write a node",
			Required: []string{"node"},
		})
	}
	return s
}

type testServer struct {
	router  *Router
	runner  *runner.Runner
	events  *bus.Bus
	store   store.Store
	eval    *evaluator.Scheduler
	history *history.Registry
	suite   *suite.Suite
}

// setupTestServer wires a full engine behind the router: real bus,
// filesystem store, runner, evaluator, and collection manager, with a
// scripted client standing in for the model provider. A nil fn makes
// every run succeed.
func setupTestServer(t *testing.T, fn invokeFunc) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	events := bus.New(bus.Options{})
	st, err := fs.New(t.TempDir(), clock.System(), logger)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	s := benchSuite(4)
	if fn == nil {
		fn = answerAll(s)
	}
	client := &fakeClient{fn: fn}
	factory := func(ctx context.Context, model string) (llm.Client, error) {
		return client, nil
	}

	catalog := variant.NewStatic(map[string]string{
		"full": "nodes are declared with the node keyword",
	})

	r := runner.New(runner.Config{
		MaxConcurrentBatches: 4,
		BatchTimeout:         5 * time.Second,
		RunTimeout:           time.Minute,
		Retry: llm.RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	}, factory, st, catalog, s, events, logger)

	sched := evaluator.New(score.New(score.DefaultConfig(), nil), st, s, events, logger)
	r.SetEvalTracker(sched)

	hist, err := history.New(history.Config{Path: filepath.Join(t.TempDir(), "runs.db")}, clock.System(), logger)
	if err != nil {
		t.Fatalf("opening run registry: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	r.SetHistory(hist)

	rt := NewRouter(RouterConfig{Version: "test", Commit: "abc123", BuildDate: "2025-01-01"}, logger)
	rt.SetRunnerStatus(r)
	rt.SetEvaluatorStatus(sched)
	NewRunsHandler(r, events, hist, logger).RegisterRoutes(rt.Mux())
	NewArtifactsHandler(st, sched).RegisterRoutes(rt.Mux())
	NewCollectionsHandler(collection.NewManager(st, logger)).RegisterRoutes(rt.Mux())
	NewVariantsHandler(catalog).RegisterRoutes(rt.Mux())

	return &testServer{
		router:  rt,
		runner:  r,
		events:  events,
		store:   st,
		eval:    sched,
		history: hist,
		suite:   s,
	}
}

// do runs one request through the full middleware chain.
func (ts *testServer) do(method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// submitRun posts a run request and returns the first run id.
func (ts *testServer) submitRun(t *testing.T, body string) string {
	t.Helper()
	rec := ts.do("POST", "/v1/runs", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit returned %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		RunIDs []string `json:"run_ids"`
	}
	decodeBody(t, rec, &result)
	if len(result.RunIDs) == 0 {
		t.Fatal("submit returned no run ids")
	}
	return result.RunIDs[0]
}

// waitTerminal polls the engine until the run reaches a terminal
// status.
func (ts *testServer) waitTerminal(t *testing.T, id string) *runner.RunSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := ts.runner.Get(id)
		if err == nil && snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal status", id)
	return nil
}

// completedArtifact drives one run to completion and returns its
// artifact id.
func (ts *testServer) completedArtifact(t *testing.T, model string) string {
	t.Helper()
	id := ts.submitRun(t, fmt.Sprintf(`{"model":%q,"variant":"full"}`, model))
	snap := ts.waitTerminal(t, id)
	if snap.Status != runner.RunStatusCompleted {
		t.Fatalf("run finished %s: %s", snap.Status, snap.Error)
	}
	if snap.ArtifactID == "" {
		t.Fatal("completed run carries no artifact id")
	}
	return snap.ArtifactID
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do("GET", "/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status     string `json:"status"`
		Version    string `json:"version"`
		ActiveRuns *int   `json:"active_runs"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "ok" {
		t.Errorf("got status %q, want ok", body.Status)
	}
	if body.Version != "test" {
		t.Errorf("got version %q, want test", body.Version)
	}
	if body.ActiveRuns == nil || *body.ActiveRuns != 0 {
		t.Errorf("got active_runs %v, want 0", body.ActiveRuns)
	}

	ts.runner.StartDraining()
	rec = ts.do("GET", "/v1/health", "")
	decodeBody(t, rec, &body)
	if body.Status != "draining" {
		t.Errorf("got status %q after drain start, want draining", body.Status)
	}
}

func TestVersionEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do("GET", "/v1/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["version"] != "test" || body["commit"] != "abc123" {
		t.Errorf("unexpected version body: %v", body)
	}
	if body["go_version"] == "" {
		t.Error("go_version missing from version response")
	}
}

func TestRootEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do("GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["name"] != "jacbenchd" {
		t.Errorf("got name %q, want jacbenchd", body["name"])
	}

	rec = ts.do("GET", "/no/such/path", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d for unknown path, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestVariantsEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do("GET", "/v1/variants", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Variants []variant.Variant `json:"variants"`
		Count    int               `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 || len(body.Variants) != 1 {
		t.Fatalf("got %d variants, want 1", body.Count)
	}
	if body.Variants[0].Name != "full" {
		t.Errorf("got variant %q, want full", body.Variants[0].Name)
	}
	if body.Variants[0].Size == 0 {
		t.Error("variant size missing")
	}
}

func TestSubmitWhileDrainingReturns503(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.runner.StartDraining()

	rec := ts.do("POST", "/v1/runs", `{"model":"gpt","variant":"full"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Header().Get("Retry-After") != "10" {
		t.Errorf("got Retry-After %q, want 10", rec.Header().Get("Retry-After"))
	}
}

func TestResponsesCarryCorrelationID(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do("GET", "/v1/health", "")
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("response missing X-Correlation-ID header")
	}
}

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

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/history"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
	)
	require.NoError(t, err)
	return c
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"version":        "1.2.3",
			"uptime_seconds": 42,
			"active_runs":    2,
		})
	}))

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.3", health.Version)
	assert.Equal(t, 2, health.ActiveRuns)
}

func TestSubmitRun(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/runs", r.URL.Path)

		var req runner.RunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, "full", req.Variant)
		assert.Equal(t, 2, req.QueueSize)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"run_ids":  []string{"run-1", "run-2"},
			"group_id": "grp-1",
			"count":    2,
		})
	}))

	result, err := c.SubmitRun(context.Background(), runner.RunRequest{
		Model:     "gpt-4o",
		Variant:   "full",
		QueueSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, result.RunIDs)
	assert.Equal(t, "grp-1", result.GroupID)
}

func TestGetRunNormalizesRegistryEntry(t *testing.T) {
	// Pruned runs come back from the registry with flat batch counters
	// instead of a nested progress object.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":                "run-old",
			"model":             "gpt-4o",
			"status":            "completed",
			"total_batches":     4,
			"completed_batches": 4,
			"total_tests":       60,
			"collected_tests":   60,
		})
	}))

	snap, err := c.GetRun(context.Background(), "run-old")
	require.NoError(t, err)
	assert.Equal(t, "run-old", snap.ID)
	assert.Equal(t, 4, snap.Progress.TotalBatches)
	assert.Equal(t, 60, snap.Progress.CollectedTests)
}

func TestGetRunNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "run not found: run-x"})
	}))

	_, err := c.GetRun(context.Background(), "run-x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.NotFound())
	assert.Contains(t, apiErr.Message, "run not found")
}

func TestCancelAll(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v1/runs", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"cancelled": 3})
	}))

	n, err := c.CancelAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestHistoryQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "history", q.Get("source"))
		assert.Equal(t, "failed", q.Get("status"))
		assert.Equal(t, "10", q.Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"runs":   []map[string]any{{"id": "run-1", "status": "failed"}},
			"count":  1,
			"source": "history",
		})
	}))

	entries, err := c.History(context.Background(), history.Filter{Status: "failed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].ID)
}

func TestCollectionRoundTrip(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/collections":
			var req struct {
				Name        string   `json:"name"`
				ArtifactIDs []string `json:"artifact_ids"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"name":         req.Name,
				"artifact_ids": req.ArtifactIDs,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/compare":
			assert.Equal(t, "baseline", r.URL.Query().Get("a"))
			json.NewEncoder(w).Encode(map[string]any{
				"mean_delta": 2.5,
			})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	coll, err := c.CreateCollection(context.Background(), "baseline", []string{"a-1", "a-2"})
	require.NoError(t, err)
	assert.Equal(t, "baseline", coll.Name)
	assert.Len(t, coll.ArtifactIDs, 2)

	cmp, err := c.Compare(context.Background(), "baseline", "candidate")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, cmp.MeanDelta, 0.001)
}

func TestStreamEvents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/runs/run-1/events", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("cursor"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		events := []bus.Event{
			{Kind: bus.KindBatchStarted, RunID: "run-1", Batch: 1, Sequence: 6},
			{Kind: bus.KindBatchCompleted, RunID: "run-1", Batch: 1, Sequence: 7},
			{Kind: bus.KindRunCompleted, RunID: "run-1", Sequence: 8},
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		for _, ev := range events {
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Kind, data)
		}
		fmt.Fprint(w, "event: done\ndata: {\"status\":\"completed\"}\n\n")
		flusher.Flush()
	}))

	stream, err := c.StreamEvents(context.Background(), "run-1", 5)
	require.NoError(t, err)
	defer stream.Close()

	var kinds []bus.Kind
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []bus.Kind{bus.KindBatchStarted, bus.KindBatchCompleted, bus.KindRunCompleted}, kinds)
	assert.Equal(t, "completed", stream.FinalStatus())
	assert.Equal(t, uint64(8), stream.Cursor())
}

func TestDaemonNotRunning(t *testing.T) {
	c, err := New(WithTransport(NewUnixTransport("/nonexistent/jacbench.sock")))
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.Error(t, err)

	var dnr *DaemonNotRunningError
	require.ErrorAs(t, err, &dnr)
	assert.Contains(t, dnr.Guidance(), "jacbenchd")
	assert.True(t, IsDaemonNotRunning(err))
}

func TestParseHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr bool
		check   func(t *testing.T, tr *Transport)
	}{
		{
			name: "unix",
			host: "unix:///tmp/jacbench.sock",
			check: func(t *testing.T, tr *Transport) {
				assert.Equal(t, "/tmp/jacbench.sock", tr.SocketPath)
			},
		},
		{
			name: "tcp",
			host: "tcp://localhost:7777",
			check: func(t *testing.T, tr *Transport) {
				assert.Equal(t, "localhost:7777", tr.TCPAddr)
				assert.Nil(t, tr.TLSConfig)
			},
		},
		{
			name: "https",
			host: "https://bench.example.com:443",
			check: func(t *testing.T, tr *Transport) {
				assert.Equal(t, "bench.example.com:443", tr.TCPAddr)
				assert.NotNil(t, tr.TLSConfig)
			},
		},
		{
			name:    "bogus scheme",
			host:    "ftp://nope",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseHost(tt.host)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, tr)
		})
	}
}

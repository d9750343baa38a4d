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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/history"
	"github.com/kevinjin420/jaseci-llmdocs/internal/httputil"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
)

// sseKeepAlive is how often an idle event stream emits a comment frame
// so proxies do not drop the connection during long model calls.
const sseKeepAlive = 15 * time.Second

// RunsHandler handles run lifecycle requests.
type RunsHandler struct {
	runner  *runner.Runner
	events  *bus.Bus
	history *history.Registry
	logger  *slog.Logger
}

// NewRunsHandler creates a runs handler. The history registry may be
// nil when the run registry is disabled.
func NewRunsHandler(r *runner.Runner, events *bus.Bus, hist *history.Registry, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RunsHandler{
		runner:  r,
		events:  events,
		history: hist,
		logger:  log.WithComponent(logger, "api"),
	}
}

// RegisterRoutes registers run API routes on the mux.
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/runs", h.handleCreate)
	mux.HandleFunc("GET /v1/runs", h.handleList)
	mux.HandleFunc("GET /v1/runs/{id}", h.handleGet)
	mux.HandleFunc("GET /v1/runs/{id}/events", h.handleEvents)
	mux.HandleFunc("POST /v1/runs/{id}/batches/{num}/rerun", h.handleRerun)
	mux.HandleFunc("DELETE /v1/runs/{id}", h.handleCancel)
	mux.HandleFunc("DELETE /v1/runs", h.handleCancelAll)
}

// handleCreate handles POST /v1/runs.
func (h *RunsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req runner.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ids, err := h.runner.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	body := map[string]any{
		"run_ids": ids,
		"count":   len(ids),
	}
	if snap, err := h.runner.Get(ids[0]); err == nil {
		body["group_id"] = snap.GroupID
	}
	httputil.WriteJSON(w, http.StatusAccepted, body)
}

// handleList handles GET /v1/runs. The default source is the live
// queue; ?source=history reads the run registry instead, which also
// covers runs the queue has pruned.
func (h *RunsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("source") == "history" {
		if h.history == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "run history not enabled")
			return
		}
		filter := history.Filter{
			Status: q.Get("status"),
			Model:  q.Get("model"),
		}
		var err error
		if filter.Limit, err = intParam(q.Get("limit")); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if filter.Offset, err = intParam(q.Get("offset")); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		entries, err := h.history.List(r.Context(), filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"runs":   entries,
			"count":  len(entries),
			"source": "history",
		})
		return
	}

	runs := h.runner.List()
	if status := q.Get("status"); status != "" {
		matched := make([]*runner.RunSnapshot, 0, len(runs))
		for _, snap := range runs {
			if string(snap.Status) == status {
				matched = append(matched, snap)
			}
		}
		runs = matched
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"groups": h.runner.Groups(),
		"count":  len(runs),
	})
}

// handleGet handles GET /v1/runs/{id}. Runs no longer held in memory
// fall back to the run registry.
func (h *RunsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap, err := h.runner.Get(id)
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, snap)
		return
	}
	if h.history != nil {
		if entry, histErr := h.history.Get(r.Context(), id); histErr == nil {
			httputil.WriteJSON(w, http.StatusOK, entry)
			return
		}
	}
	writeDomainError(w, err)
}

// handleEvents handles GET /v1/runs/{id}/events: an SSE stream of the
// run's topic. The cursor query parameter (or the Last-Event-ID header
// on reconnect) resumes from a bus sequence; retained events replay
// first, live events follow, and the stream ends after the terminal
// run event.
func (h *RunsHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap, err := h.runner.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	cursor, err := parseCursor(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub := h.events.Subscribe(bus.RunTopic(id), cursor)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A terminal run with nothing left to replay will never produce
	// another event; close the stream instead of hanging the client.
	if snap.Status.Terminal() && sub.Pending() == 0 {
		writeSSEDone(w, string(snap.Status))
		flusher.Flush()
		return
	}

	incoming := make(chan bus.Event)
	failed := make(chan error, 1)
	go func() {
		for {
			ev, err := sub.Next(r.Context())
			if err != nil {
				failed <- err
				return
			}
			select {
			case incoming <- ev:
			case <-r.Context().Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-failed:
			// Subscription closed: the run was pruned mid-stream.
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev := <-incoming:
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Kind.Terminal() {
				writeSSEDone(w, strings.TrimPrefix(string(ev.Kind), "run."))
				flusher.Flush()
				return
			}
		}
	}
}

// handleRerun handles POST /v1/runs/{id}/batches/{num}/rerun.
func (h *RunsHandler) handleRerun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	num, err := strconv.Atoi(r.PathValue("num"))
	if err != nil || num < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "batch number must be a positive integer")
		return
	}

	if err := h.runner.RerunBatch(id, num); err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"status": "rerunning",
		"run_id": id,
		"batch":  num,
	})
}

// handleCancel handles DELETE /v1/runs/{id}.
func (h *RunsHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.runner.CancelRun(id); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "cancelled",
		"run_id": id,
	})
}

// handleCancelAll handles DELETE /v1/runs.
func (h *RunsHandler) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	cancelled := h.runner.CancelAll()
	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"cancelled": cancelled,
	})
}

// parseCursor reads the resume position from the cursor query parameter
// or, on SSE reconnect, the Last-Event-ID header.
func parseCursor(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	if raw == "" {
		return 0, nil
	}
	cursor, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor %q", raw)
	}
	return cursor, nil
}

func writeSSEEvent(w http.ResponseWriter, ev bus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Kind, data)
	return err
}

func writeSSEDone(w http.ResponseWriter, status string) {
	fmt.Fprintf(w, "event: done\ndata: {\"status\":%q}\n\n", status)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}

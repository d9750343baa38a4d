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

// Package runner is the benchmark execution engine: a queue manager that
// turns one submit into N parallel runs, a coordinator per run that
// schedules batches under a concurrency cap, and a per-batch executor
// implementing the retry state machine. All progress flows through the
// event bus; external callers only ever observe immutable snapshots.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/internal/variant"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// ErrDraining is returned by Submit during graceful shutdown.
var ErrDraining = errors.New("runner is draining; not accepting new runs")

// ClientFactory builds the model client for one submitted model id. The
// context bounds construction only (credential resolution, identity
// checks); the returned client must be safe for concurrent use.
type ClientFactory func(ctx context.Context, model string) (llm.Client, error)

// EvalState is where an artifact sits in the evaluation pipeline.
type EvalState string

const (
	// EvalStateNone means no evaluation has been observed yet.
	EvalStateNone      EvalState = ""
	EvalStatePending   EvalState = "pending"
	EvalStateRunning   EvalState = "running"
	EvalStateCompleted EvalState = "completed"
	EvalStateFailed    EvalState = "failed"
)

// Settled reports whether the evaluation reached a terminal outcome.
func (s EvalState) Settled() bool {
	return s == EvalStateCompleted || s == EvalStateFailed
}

// EvalTracker reports evaluation state per artifact. The evaluator
// scheduler implements it; the queue manager consults it when deriving
// the overall queue status.
type EvalTracker interface {
	EvalState(artifactID string) EvalState
}

// HistoryRecorder persists run lifecycle rows in the run registry.
// Recording is best effort: failures are logged and never affect runs.
type HistoryRecorder interface {
	RecordSubmit(ctx context.Context, snap *RunSnapshot) error
	RecordTerminal(ctx context.Context, snap *RunSnapshot) error
}

// QueueState is the derived overall status of one submit's runs.
type QueueState string

const (
	QueueStateRunning    QueueState = "running"
	QueueStateEvaluating QueueState = "evaluating"
	QueueStateCompleted  QueueState = "completed"
	QueueStateFailed     QueueState = "failed"
	QueueStateCancelled  QueueState = "cancelled"
)

// QueueStatus aggregates one submit group. It is computed on read:
// batch progress sums over member runs, evaluation states come from the
// eval tracker, and the overall status is derived, never stored.
type QueueStatus struct {
	GroupID          string               `json:"group_id"`
	Status           QueueState           `json:"status"`
	TotalBatches     int                  `json:"total_batches"`
	CompletedBatches int                  `json:"completed_batches"`
	FailedBatches    int                  `json:"failed_batches"`
	Evaluations      map[string]EvalState `json:"evaluations,omitempty"`
	Runs             []*RunSnapshot       `json:"runs"`
	CreatedAt        time.Time            `json:"created_at"`
}

// group tracks which runs one submit created.
type group struct {
	id      string
	runIDs  []string
	created time.Time
}

// Runner is the queue manager owning every live run in the process.
type Runner struct {
	cfg     Config
	factory ClientFactory
	store   store.Store
	catalog variant.Catalog
	suite   *suite.Suite
	filter  *suite.Filter
	events  *bus.Bus
	clock   clock.Clock
	logger  *slog.Logger

	mu         sync.RWMutex
	runs       map[string]*coordinator
	order      []string
	groups     map[string]*group
	groupOrder []string
	evals      EvalTracker
	history    HistoryRecorder

	draining atomic.Bool
}

// Option customizes a Runner at construction.
type Option func(*Runner)

// WithClock substitutes the time source, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// New creates a Runner. The suite is the full test suite; per-request
// filters narrow it at submit time.
func New(cfg Config, factory ClientFactory, st store.Store, catalog variant.Catalog, testSuite *suite.Suite, events *bus.Bus, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		cfg:     cfg.withDefaults(),
		factory: factory,
		store:   st,
		catalog: catalog,
		suite:   testSuite,
		filter:  suite.NewFilter(),
		events:  events,
		clock:   clock.System(),
		logger:  log.WithComponent(logger, "runner"),
		runs:    make(map[string]*coordinator),
		groups:  make(map[string]*group),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetEvalTracker wires the evaluator scheduler in after construction.
func (r *Runner) SetEvalTracker(t EvalTracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals = t
}

// SetHistory wires the run registry in after construction.
func (r *Runner) SetHistory(h HistoryRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = h
}

// Submit validates the request, spawns queue-size coordinators, and
// returns their run ids in batch order. Validation failures reject the
// whole submit; once Submit returns, every run is already executing.
func (r *Runner) Submit(ctx context.Context, req RunRequest) ([]string, error) {
	if r.draining.Load() {
		return nil, ErrDraining
	}

	req = req.normalized(r.cfg.DefaultBatchSize)
	if err := req.validate(); err != nil {
		return nil, err
	}

	docs, err := r.catalog.Load(ctx, req.Variant)
	if err != nil {
		return nil, err
	}

	testSuite := r.suite
	if req.Filter != "" {
		testSuite, err = r.filter.Apply(r.suite, req.Filter)
		if err != nil {
			return nil, err
		}
	}

	parts, err := partition(testSuite, req)
	if err != nil {
		return nil, err
	}

	client, err := r.factory(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	g := &group{id: clock.NewRunID(), created: now}
	coords := make([]*coordinator, 0, req.QueueSize)
	for i := 0; i < req.QueueSize; i++ {
		run := newRun(clock.NewRunID(), g.id, req, testSuite, parts, r.cfg.Retry.MaxRetries, now)
		g.runIDs = append(g.runIDs, run.ID)
		coords = append(coords, newCoordinator(run, testSuite, client, docs,
			r.store, r.events, r.clock, r.logger, r.cfg, r.onTerminal))
	}

	r.mu.Lock()
	for _, co := range coords {
		r.runs[co.run.ID] = co
		r.order = append(r.order, co.run.ID)
	}
	r.groups[g.id] = g
	r.groupOrder = append(r.groupOrder, g.id)
	r.mu.Unlock()

	r.logger.Info("submit accepted",
		slog.String(log.ModelKey, req.Model),
		slog.String(log.VariantKey, req.Variant),
		slog.Int("queue_size", req.QueueSize),
		slog.Int("batches", len(parts)),
		slog.Int("tests", testSuite.Len()))

	for _, co := range coords {
		snap := co.snapshot()
		r.events.Publish(bus.GlobalTopic, bus.Event{
			Kind:  bus.KindRunQueued,
			RunID: snap.ID,
			Time:  now,
			Payload: RunEvent{
				Status:       RunStatusPending,
				Model:        req.Model,
				Variant:      req.Variant,
				TotalBatches: len(parts),
				TotalTests:   testSuite.Len(),
			},
		})
		r.recordSubmit(ctx, snap)
		recordRunSubmitted(req.Model, req.Variant)
		co.start()
	}

	return g.runIDs, nil
}

// Get returns an immutable snapshot of a run.
func (r *Runner) Get(id string) (*RunSnapshot, error) {
	r.mu.RLock()
	co, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	return co.snapshot(), nil
}

// List returns snapshots of every tracked run in submission order.
func (r *Runner) List() []*RunSnapshot {
	r.mu.RLock()
	coords := make([]*coordinator, 0, len(r.order))
	for _, id := range r.order {
		if co, ok := r.runs[id]; ok {
			coords = append(coords, co)
		}
	}
	r.mu.RUnlock()

	snaps := make([]*RunSnapshot, 0, len(coords))
	for _, co := range coords {
		snaps = append(snaps, co.snapshot())
	}
	return snaps
}

// Group returns the aggregated status of one submit group.
func (r *Runner) Group(groupID string) (*QueueStatus, error) {
	r.mu.RLock()
	g, ok := r.groups[groupID]
	r.mu.RUnlock()
	if !ok {
		return nil, &errors.NotFoundError{Resource: "group", ID: groupID}
	}
	return r.queueStatus(g), nil
}

// Groups returns the aggregated status of every submit group in
// submission order.
func (r *Runner) Groups() []*QueueStatus {
	r.mu.RLock()
	groups := make([]*group, 0, len(r.groupOrder))
	for _, id := range r.groupOrder {
		if g, ok := r.groups[id]; ok {
			groups = append(groups, g)
		}
	}
	r.mu.RUnlock()

	out := make([]*QueueStatus, 0, len(groups))
	for _, g := range groups {
		out = append(out, r.queueStatus(g))
	}
	return out
}

// queueStatus derives the aggregate view of a group: running while any
// run is still generating, evaluating once generation is done but any
// artifact's evaluation is outstanding, then failed / cancelled /
// completed by severity.
func (r *Runner) queueStatus(g *group) *QueueStatus {
	r.mu.RLock()
	tracker := r.evals
	coords := make([]*coordinator, 0, len(g.runIDs))
	for _, id := range g.runIDs {
		if co, ok := r.runs[id]; ok {
			coords = append(coords, co)
		}
	}
	r.mu.RUnlock()

	status := &QueueStatus{
		GroupID:   g.id,
		CreatedAt: g.created,
		Runs:      make([]*RunSnapshot, 0, len(coords)),
	}

	allTerminal := true
	anyFailed := false
	anyCancelled := false
	evalOutstanding := false

	for _, co := range coords {
		snap := co.snapshot()
		status.Runs = append(status.Runs, snap)
		status.TotalBatches += snap.Progress.TotalBatches
		status.CompletedBatches += snap.Progress.CompletedBatches
		status.FailedBatches += snap.Progress.FailedBatches

		switch snap.Status {
		case RunStatusFailed:
			anyFailed = true
		case RunStatusCancelled:
			anyCancelled = true
		case RunStatusCompleted:
			if tracker != nil && snap.ArtifactID != "" {
				state := tracker.EvalState(snap.ArtifactID)
				if status.Evaluations == nil {
					status.Evaluations = make(map[string]EvalState)
				}
				status.Evaluations[snap.ArtifactID] = state
				if !state.Settled() {
					evalOutstanding = true
				}
			}
		default:
			allTerminal = false
		}
	}

	switch {
	case !allTerminal:
		status.Status = QueueStateRunning
	case evalOutstanding:
		status.Status = QueueStateEvaluating
	case anyFailed:
		status.Status = QueueStateFailed
	case anyCancelled:
		status.Status = QueueStateCancelled
	default:
		status.Status = QueueStateCompleted
	}
	return status
}

// CancelRun signals cooperative cancellation of one run. Cancelling an
// already terminal run is a no-op.
func (r *Runner) CancelRun(id string) error {
	r.mu.RLock()
	co, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return &errors.NotFoundError{Resource: "run", ID: id}
	}
	co.cancel("run cancelled by user")
	return nil
}

// CancelAll cancels every non-terminal run and returns how many were
// signalled.
func (r *Runner) CancelAll() int {
	r.mu.RLock()
	coords := make([]*coordinator, 0, len(r.runs))
	for _, co := range r.runs {
		coords = append(coords, co)
	}
	r.mu.RUnlock()

	cancelled := 0
	for _, co := range coords {
		if co.snapshot().Status.Terminal() {
			continue
		}
		co.cancel("cancelled with all runs")
		cancelled++
	}
	if cancelled > 0 {
		r.logger.Info("cancelled all active runs", slog.Int("count", cancelled))
	}
	return cancelled
}

// RerunBatch reruns one batch of a live run on a fresh executor.
func (r *Runner) RerunBatch(runID string, batchNum int) error {
	r.mu.RLock()
	co, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return &errors.NotFoundError{Resource: "run", ID: runID}
	}
	return co.rerunBatch(batchNum)
}

// StartDraining stops Submit from accepting new work.
func (r *Runner) StartDraining() {
	r.draining.Store(true)
}

// IsDraining reports whether the runner is shutting down.
func (r *Runner) IsDraining() bool {
	return r.draining.Load()
}

// ActiveRunCount returns the number of non-terminal runs.
func (r *Runner) ActiveRunCount() int {
	r.mu.RLock()
	coords := make([]*coordinator, 0, len(r.runs))
	for _, co := range r.runs {
		coords = append(coords, co)
	}
	r.mu.RUnlock()

	active := 0
	for _, co := range coords {
		if !co.snapshot().Status.Terminal() {
			active++
		}
	}
	return active
}

// WaitForDrain waits for active runs to finish or the timeout to pass.
func (r *Runner) WaitForDrain(ctx context.Context, timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeoutCh:
			if remaining := r.ActiveRunCount(); remaining > 0 {
				return fmt.Errorf("drain timeout: %d run(s) still active", remaining)
			}
			return nil
		case <-ticker.C:
			if r.ActiveRunCount() == 0 {
				return nil
			}
		}
	}
}

// Prune garbage-collects terminal runs older than the retention window,
// dropping their event topics. Groups whose runs are all gone are pruned
// with them. Returns how many runs were removed.
func (r *Runner) Prune(olderThan time.Duration) int {
	cutoff := r.clock.Now().Add(-olderThan)

	r.mu.Lock()
	removed := make([]string, 0)
	for id, co := range r.runs {
		snap := co.snapshot()
		if !snap.Status.Terminal() || snap.CompletedAt == nil || snap.CompletedAt.After(cutoff) {
			continue
		}
		delete(r.runs, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		r.order = retainIDs(r.order, r.runs)
		for gid, g := range r.groups {
			live := 0
			for _, id := range g.runIDs {
				if _, ok := r.runs[id]; ok {
					live++
				}
			}
			if live == 0 {
				delete(r.groups, gid)
			}
		}
		r.groupOrder = retainGroupIDs(r.groupOrder, r.groups)
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.events.DropTopic(bus.RunTopic(id))
		r.events.DropTopic(bus.BatchRerunTopic(id))
	}
	if len(removed) > 0 {
		r.logger.Info("pruned terminal runs", slog.Int("count", len(removed)))
	}
	return len(removed)
}

func retainIDs(order []string, live map[string]*coordinator) []string {
	out := order[:0]
	for _, id := range order {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func retainGroupIDs(order []string, live map[string]*group) []string {
	out := order[:0]
	for _, id := range order {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// onTerminal is the coordinator callback fired after the terminal event.
func (r *Runner) onTerminal(snap *RunSnapshot) {
	r.mu.RLock()
	history := r.history
	r.mu.RUnlock()

	if history != nil {
		if err := history.RecordTerminal(context.Background(), snap); err != nil {
			r.logger.Warn("history record failed",
				slog.String(log.RunIDKey, snap.ID), log.Error(err))
		}
	}
	activeRuns.Dec()
}

// recordSubmit writes the initial history row for a run.
func (r *Runner) recordSubmit(ctx context.Context, snap *RunSnapshot) {
	activeRuns.Inc()

	r.mu.RLock()
	history := r.history
	r.mu.RUnlock()
	if history == nil {
		return
	}
	if err := history.RecordSubmit(ctx, snap); err != nil {
		r.logger.Warn("history record failed",
			slog.String(log.RunIDKey, snap.ID), log.Error(err))
	}
}

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

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// artifactIDProbes bounds how far the coordinator searches for a free
// artifact id when several runs of the same model and variant complete
// within the same second.
const artifactIDProbes = 32

// ErrRunTerminal is returned by operations that need a live run.
var ErrRunTerminal = errors.New("run is already terminal")

// coordinator owns one run from dispatch to terminal state: it schedules
// batch executors under the concurrency cap, merges their responses in
// completion order, accepts manual batch reruns while the run is live,
// and persists the artifact when the run completes.
type coordinator struct {
	run    *Run
	suite  *suite.Suite
	client llm.Client
	docs   string

	store  store.Store
	events *bus.Bus
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config

	sem  chan struct{}
	done chan struct{}

	// notify is invoked exactly once, after the terminal event has been
	// published. The runner uses it for history and group bookkeeping.
	notify func(*RunSnapshot)
}

func newCoordinator(run *Run, s *suite.Suite, client llm.Client, docs string, st store.Store, events *bus.Bus, ck clock.Clock, logger *slog.Logger, cfg Config, notify func(*RunSnapshot)) *coordinator {
	return &coordinator{
		run:    run,
		suite:  s,
		client: client,
		docs:   docs,
		store:  st,
		events: events,
		clock:  ck,
		logger: log.WithRunContext(logger, run.ID, run.Request.Model, run.Request.Variant),
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.MaxConcurrentBatches),
		done:   make(chan struct{}),
		notify: notify,
	}
}

// start launches the run's execution goroutine.
func (c *coordinator) start() {
	go c.execute()
}

// execute drives the run: dispatch every batch, wait for them and any
// in-flight reruns, then settle the terminal state.
func (c *coordinator) execute() {
	defer close(c.done)
	run := c.run

	now := c.clock.Now().UTC()
	run.mu.Lock()
	run.Status = RunStatusRunning
	run.StartedAt = &now
	totalBatches := len(run.Batches)
	run.mu.Unlock()

	ctx, span := tracing.StartRunSpan(run.ctx, run.ID, run.Request.Model, run.Request.Variant, totalBatches)
	defer func() {
		run.mu.RLock()
		status, detail := run.Status, run.Error
		run.mu.RUnlock()
		span.SetAttributes(map[string]any{"run.status": string(status)})
		switch status {
		case RunStatusFailed:
			span.RecordError(errors.New(detail))
		case RunStatusCompleted:
			span.OK()
		}
		span.End()
	}()

	c.logger.Info("run started",
		slog.Int("batches", totalBatches),
		slog.Int("tests", run.TotalTests))
	c.publishRun(bus.KindRunStarted, RunEvent{
		Status:       RunStatusRunning,
		Model:        run.Request.Model,
		Variant:      run.Request.Variant,
		TotalBatches: totalBatches,
		TotalTests:   run.TotalTests,
	})

	// Soft wall limit: expiry cancels the run rather than failing it.
	timer := time.AfterFunc(c.cfg.RunTimeout, func() {
		c.logger.Warn("run exceeded soft timeout, cancelling",
			slog.Duration("timeout", c.cfg.RunTimeout))
		run.cancelWith(fmt.Sprintf("run exceeded %s soft timeout", c.cfg.RunTimeout))
	})
	defer timer.Stop()

	var wg sync.WaitGroup
	for _, b := range run.Batches {
		wg.Add(1)
		go func(b *Batch) {
			defer wg.Done()
			c.runBatch(ctx, b)
		}(b)
	}
	wg.Wait()

	// Stop accepting reruns, then let any already admitted finish so
	// their responses land before the artifact is assembled.
	run.mu.Lock()
	run.closing = true
	run.mu.Unlock()
	run.reruns.Wait()

	c.finalize()
}

// runBatch pushes one batch through the semaphore and its executor, then
// merges the outcome. Cancellation while waiting fails the batch without
// ever issuing a model call. ctx derives from the run context and
// carries the run span.
func (c *coordinator) runBatch(ctx context.Context, b *Batch) {
	ex := c.executor(b, bus.RunTopic(c.run.ID))

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		ex.abort()
		return
	}
	defer func() { <-c.sem }()

	if ctx.Err() != nil {
		ex.abort()
		return
	}

	_ = ex.execute(ctx)
	c.mergeBatch(b)
}

// executor builds a batch executor publishing on the given topic.
func (c *coordinator) executor(b *Batch, topic string) *batchExecutor {
	return &batchExecutor{
		run:     c.run,
		batch:   b,
		client:  c.client,
		docs:    c.docs,
		topic:   topic,
		events:  c.events,
		clock:   c.clock,
		logger:  c.logger,
		timeout: c.cfg.BatchTimeout,
		retry:   c.cfg.Retry,
	}
}

// mergeBatch folds a completed batch's responses into the run map.
// Merging happens in completion order; a batch that failed contributes
// nothing and its test ids surface as empty entries in the artifact.
func (c *coordinator) mergeBatch(b *Batch) {
	c.run.mu.Lock()
	defer c.run.mu.Unlock()
	if b.Status != BatchStatusCompleted {
		return
	}
	for id, code := range b.Responses {
		c.run.Responses[id] = code
	}
	c.run.Usage.Add(b.Usage)
}

// rerunBatch reruns one batch on a fresh executor while the run is still
// live. Rerun progress is published on the run's batch_rerun topic; on
// success the fresh batch record replaces the original, so its responses
// and status carry into the run's final state.
func (c *coordinator) rerunBatch(number int) error {
	run := c.run

	run.mu.Lock()
	if run.Status.Terminal() || run.closing {
		run.mu.Unlock()
		return ErrRunTerminal
	}
	if number < 1 || number > len(run.Batches) {
		run.mu.Unlock()
		return &errors.NotFoundError{Resource: "batch", ID: strconv.Itoa(number)}
	}
	fresh := &Batch{
		Number:     number,
		Tests:      run.Batches[number-1].Tests,
		Status:     BatchStatusPending,
		MaxRetries: c.cfg.Retry.MaxRetries,
	}
	run.reruns.Add(1)
	run.mu.Unlock()

	c.logger.Info("batch rerun requested", slog.Int(log.BatchKey, number))

	go func() {
		defer run.reruns.Done()
		ex := c.executor(fresh, bus.BatchRerunTopic(run.ID))

		select {
		case c.sem <- struct{}{}:
		case <-run.ctx.Done():
			ex.abort()
			return
		}
		defer func() { <-c.sem }()

		if err := ex.execute(run.ctx); err != nil {
			return
		}

		run.mu.Lock()
		for id, code := range fresh.Responses {
			run.Responses[id] = code
		}
		run.Usage.Add(fresh.Usage)
		run.Batches[number-1] = fresh
		run.mu.Unlock()
	}()
	return nil
}

// finalize settles the run's terminal state once every batch and rerun
// has finished: cancelled when cancellation fired, completed when at
// least one batch succeeded and the artifact was written, failed
// otherwise.
func (c *coordinator) finalize() {
	run := c.run

	run.mu.RLock()
	completed, failed := 0, 0
	lastError := ""
	for _, b := range run.Batches {
		switch b.Status {
		case BatchStatusCompleted:
			completed++
		case BatchStatusFailed:
			failed++
			if b.LastError != "" {
				lastError = b.LastError
			}
		}
	}
	reason := run.cancelReason
	run.mu.RUnlock()

	if run.ctx.Err() != nil {
		if reason == "" {
			reason = "run cancelled"
		}
		c.terminate(RunStatusCancelled, reason, "", completed, failed)
		return
	}

	if completed == 0 {
		detail := fmt.Sprintf("all %d batches failed", failed)
		if lastError != "" {
			detail = fmt.Sprintf("%s (last: %s)", detail, lastError)
		}
		c.terminate(RunStatusFailed, detail, "", completed, failed)
		return
	}

	artifactID, err := c.persistArtifact()
	switch {
	case err == nil:
		c.terminate(RunStatusCompleted, "", artifactID, completed, failed)
	case run.ctx.Err() != nil:
		// Cancelled between the last batch and the artifact write.
		if reason == "" {
			reason = "run cancelled"
		}
		c.terminate(RunStatusCancelled, reason, "", completed, failed)
	default:
		c.terminate(RunStatusFailed, fmt.Sprintf("artifact write failed: %v", err), "", completed, failed)
	}
}

// persistArtifact assembles the final response map in suite shape (one
// entry per test id, empty string where no response arrived) and writes
// it. Artifact ids carry one-second resolution, so a taken id bumps the
// timestamp forward until a free slot is found.
func (c *coordinator) persistArtifact() (string, error) {
	run := c.run

	run.mu.RLock()
	responses := make(map[string]string, c.suite.Len())
	for _, tc := range c.suite.Tests {
		responses[tc.ID] = run.Responses[tc.ID]
	}
	req := run.Request
	run.mu.RUnlock()

	created := c.clock.Now().UTC()
	meta := store.ArtifactMetadata{
		Model:       req.Model,
		Variant:     req.Variant,
		SuiteName:   c.suite.Name,
		TotalTests:  c.suite.Len(),
		BatchSize:   req.BatchSize,
		BatchSizes:  cloneSizes(req.BatchSizes),
		Temperature: req.Temperature,
		CreatedAt:   created,
	}

	var lastErr error
	for i := 0; i < artifactIDProbes; i++ {
		stamp := created.Add(time.Duration(i) * time.Second)
		artifact := &store.Artifact{
			ID:        clock.ArtifactID(req.Model, req.Variant, stamp),
			RunID:     run.ID,
			Metadata:  meta,
			Responses: responses,
		}
		err := c.store.WriteArtifact(run.ctx, artifact)
		if err == nil {
			c.logger.Info("artifact written", slog.String(log.ArtifactKey, artifact.ID))
			return artifact.ID, nil
		}
		if !errors.Is(err, store.ErrArtifactExists) {
			return "", err
		}
		lastErr = err
	}
	return "", &errors.StoreError{
		Op:    "write artifact",
		Key:   clock.ArtifactID(req.Model, req.Variant, created),
		Cause: lastErr,
	}
}

// terminate freezes the run, publishes the terminal event on the run and
// global topics, and fires the runner callback.
func (c *coordinator) terminate(status RunStatus, detail, artifactID string, completed, failed int) {
	run := c.run
	now := c.clock.Now().UTC()

	run.mu.Lock()
	run.Status = status
	run.Error = detail
	run.ArtifactID = artifactID
	run.CompletedAt = &now
	totalBatches := len(run.Batches)
	run.mu.Unlock()

	switch status {
	case RunStatusCompleted:
		c.logger.Info("run completed",
			slog.Int("completed_batches", completed),
			slog.Int("failed_batches", failed),
			slog.String(log.ArtifactKey, artifactID))
	default:
		c.logger.Warn("run finished without artifact",
			slog.String("status", string(status)),
			slog.String("detail", detail))
	}

	kind := bus.KindRunCompleted
	switch status {
	case RunStatusFailed:
		kind = bus.KindRunFailed
	case RunStatusCancelled:
		kind = bus.KindRunCancelled
	}
	c.publishRun(kind, RunEvent{
		Status:           status,
		TotalBatches:     totalBatches,
		CompletedBatches: completed,
		FailedBatches:    failed,
		ArtifactID:       artifactID,
		Error:            detail,
	})
	recordRunFinished(string(status))

	if c.notify != nil {
		c.notify(snapshotRun(run))
	}
}

// publishRun emits a run-lifecycle event on the run topic and mirrors it
// on the global topic for queue-level observers.
func (c *coordinator) publishRun(kind bus.Kind, payload RunEvent) {
	ev := bus.Event{
		Kind:    kind,
		RunID:   c.run.ID,
		Time:    c.clock.Now().UTC(),
		Payload: payload,
	}
	c.events.Publish(bus.RunTopic(c.run.ID), ev)
	c.events.Publish(bus.GlobalTopic, ev)
}

// snapshot returns an immutable copy of the run.
func (c *coordinator) snapshot() *RunSnapshot {
	return snapshotRun(c.run)
}

// cancel signals cooperative cancellation with the given reason.
func (c *coordinator) cancel(reason string) {
	c.run.cancelWith(reason)
}

// wait blocks until the run's execution goroutine has fully finished.
// Only used by drain paths and tests; normal callers watch the bus.
func (c *coordinator) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

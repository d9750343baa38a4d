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

// Package evaluator schedules artifact scoring. A watcher consumes
// terminal run events from the global topic and enqueues one evaluation
// per artifact under a concurrency cap; results are write-once, so
// re-evaluating an artifact returns the stored result.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// DefaultMaxConcurrent is the evaluation concurrency cap. Scoring is
// CPU-bound and already fans out per test inside the scorer, so the cap
// stays low.
const DefaultMaxConcurrent = 2

// EvalEvent is the payload carried by evaluation.* events.
type EvalEvent struct {
	ArtifactID string  `json:"artifact_id"`
	RunID      string  `json:"run_id,omitempty"`
	Overall    float64 `json:"overall_percentage,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Scheduler owns the evaluation pipeline. It implements runner.EvalTracker
// so the queue manager can fold evaluation progress into queue status.
type Scheduler struct {
	scorer *score.Scorer
	store  store.Store
	suite  *suite.Suite
	events *bus.Bus
	clock  clock.Clock
	logger *slog.Logger

	sem chan struct{}

	mu     sync.Mutex
	states map[string]runner.EvalState
}

var _ runner.EvalTracker = (*Scheduler)(nil)

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

// WithClock substitutes the time source, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMaxConcurrent overrides the evaluation concurrency cap.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// New builds a Scheduler. Call Start to begin consuming run completions;
// Evaluate also works standalone for manual re-evaluation.
func New(scorer *score.Scorer, st store.Store, testSuite *suite.Suite, events *bus.Bus, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{
		scorer: scorer,
		store:  st,
		suite:  testSuite,
		events: events,
		clock:  clock.System(),
		logger: log.WithComponent(logger, "evaluator"),
		sem:    make(chan struct{}, DefaultMaxConcurrent),
		states: make(map[string]runner.EvalState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the completion watcher. It consumes events published
// after the current tail, so completions that already have a stored
// result are not re-enqueued on restart.
func (s *Scheduler) Start(ctx context.Context) {
	cursor := s.events.LastSequence(bus.GlobalTopic)
	sub := s.events.Subscribe(bus.GlobalTopic, cursor)
	go s.watch(ctx, sub)
}

func (s *Scheduler) watch(ctx context.Context, sub *bus.Subscription) {
	defer sub.Unsubscribe()

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		switch ev.Kind {
		case bus.KindRunCompleted:
			payload, ok := ev.Payload.(runner.RunEvent)
			if !ok || payload.ArtifactID == "" {
				continue
			}
			s.schedule(ctx, payload.ArtifactID, ev.RunID)
		case bus.KindLag:
			// Terminal run events are never evicted, so lag cannot lose
			// a completion.
			s.logger.Warn("completion watcher lagged behind the global topic")
		}
	}
}

// schedule enqueues one evaluation for an artifact. An artifact already
// known to the scheduler is skipped; failed evaluations are only retried
// through an explicit Evaluate call.
func (s *Scheduler) schedule(ctx context.Context, artifactID, runID string) {
	s.mu.Lock()
	if _, seen := s.states[artifactID]; seen {
		s.mu.Unlock()
		return
	}
	s.states[artifactID] = runner.EvalStatePending
	s.mu.Unlock()

	go func() {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-s.sem }()

		if _, err := s.evaluate(ctx, artifactID, runID); err != nil {
			s.logger.Error("evaluation failed",
				slog.String(log.ArtifactKey, artifactID),
				log.Error(err))
		}
	}()
}

// Evaluate scores one artifact, returning the stored result when the
// artifact was already evaluated. Used by the scheduler's own jobs and
// by manual re-evaluation requests.
func (s *Scheduler) Evaluate(ctx context.Context, artifactID string) (*score.EvalResult, error) {
	return s.evaluate(ctx, artifactID, "")
}

func (s *Scheduler) evaluate(ctx context.Context, artifactID, runID string) (*score.EvalResult, error) {
	// Results are write-once and scoring is deterministic, so a stored
	// result is authoritative.
	if cached, err := s.store.ReadEvalResult(ctx, artifactID); err == nil {
		s.setState(artifactID, runner.EvalStateCompleted)
		return cached, nil
	}

	artifact, err := s.store.ReadArtifact(ctx, artifactID)
	if err != nil {
		s.setState(artifactID, runner.EvalStateFailed)
		return nil, err
	}
	if runID == "" {
		runID = artifact.RunID
	}

	s.setState(artifactID, runner.EvalStateRunning)
	evalsActive.Inc()
	started := s.clock.Now()
	ctx, span := tracing.StartEvalSpan(ctx, artifactID)
	defer span.End()
	s.publish(bus.KindEvalStarted, runID, EvalEvent{ArtifactID: artifactID, RunID: runID})

	result, err := s.scorer.Evaluate(ctx, artifactID, artifact.Responses, s.suite)
	evalsActive.Dec()
	if err != nil {
		span.RecordError(err)
		return nil, s.failed(artifactID, runID, started, err)
	}

	if err := s.store.WriteEvalResult(ctx, result); err != nil {
		if errors.Is(err, store.ErrEvalResultExists) {
			// Lost a write race; whoever won published the events.
			existing, readErr := s.store.ReadEvalResult(ctx, artifactID)
			if readErr == nil {
				s.setState(artifactID, runner.EvalStateCompleted)
				span.OK()
				return existing, nil
			}
			err = readErr
		}
		span.RecordError(err)
		return nil, s.failed(artifactID, runID, started, err)
	}

	s.setState(artifactID, runner.EvalStateCompleted)
	recordEvalFinished("completed", s.clock.Since(started))
	s.logger.Info("evaluation completed",
		slog.String(log.ArtifactKey, artifactID),
		slog.Float64("overall", result.Summary.OverallPercentage))
	s.publish(bus.KindEvalCompleted, runID, EvalEvent{
		ArtifactID: artifactID,
		RunID:      runID,
		Overall:    result.Summary.OverallPercentage,
	})
	span.SetAttributes(map[string]any{"eval.overall": result.Summary.OverallPercentage})
	span.OK()
	return result, nil
}

// failed settles a started evaluation as failed. The artifact itself is
// untouched; a later Evaluate call may retry.
func (s *Scheduler) failed(artifactID, runID string, started time.Time, cause error) error {
	s.setState(artifactID, runner.EvalStateFailed)
	recordEvalFinished("failed", s.clock.Since(started))
	s.publish(bus.KindEvalFailed, runID, EvalEvent{
		ArtifactID: artifactID,
		RunID:      runID,
		Error:      cause.Error(),
	})
	return cause
}

// EvalState reports where an artifact sits in the evaluation pipeline.
// Artifacts the scheduler has not seen report EvalStateNone.
func (s *Scheduler) EvalState(artifactID string) runner.EvalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[artifactID]
}

func (s *Scheduler) setState(artifactID string, state runner.EvalState) {
	s.mu.Lock()
	s.states[artifactID] = state
	s.mu.Unlock()
}

// Outstanding counts evaluations that are queued or in flight.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, state := range s.states {
		if state == runner.EvalStatePending || state == runner.EvalStateRunning {
			n++
		}
	}
	return n
}

// WaitIdle waits for outstanding evaluations to settle or the timeout to
// pass. Drain paths call it after the runner has drained, so nothing new
// can be enqueued while it waits.
func (s *Scheduler) WaitIdle(ctx context.Context, timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeoutCh:
			if n := s.Outstanding(); n > 0 {
				return fmt.Errorf("drain timeout: %d evaluation(s) outstanding", n)
			}
			return nil
		case <-ticker.C:
			if s.Outstanding() == 0 {
				return nil
			}
		}
	}
}

// publish emits an evaluation event on the global topic. Run topics end
// at their terminal run event, so evaluation progress never goes there.
func (s *Scheduler) publish(kind bus.Kind, runID string, payload EvalEvent) {
	s.events.Publish(bus.GlobalTopic, bus.Event{
		Kind:    kind,
		RunID:   runID,
		Time:    s.clock.Now().UTC(),
		Payload: payload,
	})
}

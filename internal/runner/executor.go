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
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/prompt"
	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// batchExecutor drives a single batch through its state machine:
//
//	pending → running → retrying → ... → completed | failed
//
// State changes are the only mutation the executor performs, each one
// under the owning run's lock and each one publishing exactly one event.
// At most one model call is in flight at any moment; a retry reissues the
// full batch prompt and its result replaces, never augments, the
// previous attempt's.
type batchExecutor struct {
	run    *Run
	batch  *Batch
	client llm.Client
	docs   string

	topic  string
	events *bus.Bus
	clock  clock.Clock
	logger *slog.Logger

	timeout time.Duration
	retry   llm.RetryConfig
}

// execute runs the batch to a terminal state. The returned error is the
// terminal failure, nil on completion; the batch record carries the same
// outcome for callers that only hold the run.
func (e *batchExecutor) execute(ctx context.Context) error {
	started := e.clock.Now()
	e.transition(BatchStatusRunning, bus.KindBatchStarted, BatchEvent{Tests: len(e.batch.Tests)})

	rendered, err := prompt.Build(e.docs, e.batch.Tests)
	if err != nil {
		e.fail(err, 0)
		return err
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			// Reissue after backoff: retrying → running.
			e.transition(BatchStatusRunning, bus.KindBatchProgress,
				BatchEvent{Tests: len(e.batch.Tests), Attempt: attempt})
		}

		responses, usage, err := e.attempt(ctx, rendered, attempt)
		if err == nil {
			e.complete(responses, usage)
			recordBatchFinished("completed", e.clock.Since(started))
			return nil
		}

		retryable := errors.IsRetryable(err) && ctx.Err() == nil
		if !retryable || attempt >= e.retry.MaxRetries {
			e.fail(err, attempt)
			recordBatchFinished("failed", e.clock.Since(started))
			return err
		}

		e.retryTransition(attempt, err)
		if werr := e.retry.Wait(ctx, err, attempt); werr != nil {
			cancelErr := &errors.CancelledError{
				Operation: fmt.Sprintf("batch %d retry wait", e.batch.Number),
			}
			e.fail(cancelErr, attempt)
			recordBatchFinished("failed", e.clock.Since(started))
			return cancelErr
		}
	}
}

// abort fails a batch that never started running, typically because the
// run was cancelled while the batch waited for the semaphore.
func (e *batchExecutor) abort() {
	err := &errors.CancelledError{Operation: fmt.Sprintf("batch %d", e.batch.Number)}
	e.fail(err, 0)
	recordBatchFinished("cancelled", 0)
}

// attempt issues one model call and parses its response. Only responses
// for the batch's assigned test ids survive; a response naming none of
// them is treated as invalid and therefore retryable.
func (e *batchExecutor) attempt(ctx context.Context, rendered string, attempt int) (map[string]string, llm.TokenUsage, error) {
	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	callCtx, span := tracing.StartBatchSpan(callCtx, e.run.ID, e.batch.Number, attempt, len(e.batch.Tests))
	defer span.End()

	req := llm.InvokeRequest{
		Prompt:      rendered,
		Temperature: e.run.Request.Temperature,
		MaxTokens:   e.run.Request.MaxTokens,
		Timeout:     e.timeout,
		Metadata: map[string]string{
			"run_id":  e.run.ID,
			"batch":   strconv.Itoa(e.batch.Number),
			"attempt": strconv.Itoa(attempt),
		},
	}

	result, err := e.client.Invoke(callCtx, req)
	if err != nil {
		err = e.classify(ctx, callCtx, err)
		span.RecordError(err)
		return nil, llm.TokenUsage{}, err
	}

	parsed, err := prompt.ParseResponses(e.client.Name(), result.Text)
	if err != nil {
		span.RecordError(err)
		return nil, llm.TokenUsage{}, err
	}

	responses := make(map[string]string, len(e.batch.Tests))
	for _, tc := range e.batch.Tests {
		if code, ok := parsed[tc.ID]; ok {
			responses[tc.ID] = code
		}
	}
	if extra := len(parsed) - len(responses); extra > 0 {
		e.logger.Warn("model response contained unassigned test ids",
			slog.Int(log.BatchKey, e.batch.Number),
			slog.Int("extra", extra))
	}
	if len(responses) == 0 {
		err := &errors.InvalidResponseError{
			Provider: e.client.Name(),
			Message:  "response contains none of the batch's test ids",
		}
		span.RecordError(err)
		return nil, llm.TokenUsage{}, err
	}

	span.SetAttributes(map[string]any{
		"batch.responses":        len(responses),
		"llm.usage.total_tokens": result.Usage.TotalTokens,
	})
	span.OK()
	return responses, result.Usage, nil
}

// classify maps context expiry onto the engine's error kinds: parent
// cancellation is terminal, a per-attempt deadline is a retryable
// timeout. Provider errors already arrive typed and pass through.
func (e *batchExecutor) classify(parent, call context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return &errors.CancelledError{Operation: fmt.Sprintf("batch %d", e.batch.Number)}
	case call.Err() == context.DeadlineExceeded:
		return &errors.TimeoutError{
			Operation: fmt.Sprintf("batch %d model call", e.batch.Number),
			Duration:  e.timeout,
			Cause:     err,
		}
	default:
		return err
	}
}

// transition moves the batch to status under the run lock and publishes
// the matching event on the executor's topic.
func (e *batchExecutor) transition(status BatchStatus, kind bus.Kind, payload BatchEvent) {
	now := e.clock.Now().UTC()

	e.run.mu.Lock()
	e.batch.Status = status
	switch status {
	case BatchStatusRunning:
		if e.batch.StartedAt == nil {
			e.batch.StartedAt = &now
		}
	case BatchStatusCompleted, BatchStatusFailed:
		e.batch.CompletedAt = &now
	}
	e.run.mu.Unlock()

	payload.Status = status
	e.events.Publish(e.topic, bus.Event{
		Kind:    kind,
		RunID:   e.run.ID,
		Batch:   e.batch.Number,
		Time:    now,
		Payload: payload,
	})
}

// retryTransition records a failed attempt and moves running → retrying.
func (e *batchExecutor) retryTransition(attempt int, cause error) {
	e.run.mu.Lock()
	e.batch.Retries = attempt
	e.batch.LastError = cause.Error()
	e.run.mu.Unlock()

	e.logger.Warn("batch attempt failed, retrying",
		slog.Int(log.BatchKey, e.batch.Number),
		slog.Int("attempt", attempt),
		log.Error(cause))
	recordBatchRetry(errors.TypeOf(cause))

	e.transition(BatchStatusRetrying, bus.KindBatchRetry, BatchEvent{
		Attempt: attempt,
		Reason:  cause.Error(),
	})
}

// complete stores the attempt's responses and moves the batch to its
// terminal success state. Retries already holds the failed attempt
// count.
func (e *batchExecutor) complete(responses map[string]string, usage llm.TokenUsage) {
	e.run.mu.Lock()
	e.batch.Responses = responses
	e.batch.Usage = usage
	e.batch.LastError = ""
	retries := e.batch.Retries
	e.run.mu.Unlock()

	e.logger.Info("batch completed",
		slog.Int(log.BatchKey, e.batch.Number),
		slog.Int("responses", len(responses)),
		slog.Int("retries", retries))

	e.transition(BatchStatusCompleted, bus.KindBatchCompleted, BatchEvent{
		Retries:   retries,
		Responses: len(responses),
	})
}

// fail records the terminal error and moves the batch to failed.
// attempts is the number of model calls that failed; zero when the batch
// never ran.
func (e *batchExecutor) fail(cause error, attempts int) {
	e.run.mu.Lock()
	if attempts > 0 {
		e.batch.Retries = attempts
	}
	e.batch.LastError = cause.Error()
	retries := e.batch.Retries
	e.run.mu.Unlock()

	e.logger.Error("batch failed",
		slog.Int(log.BatchKey, e.batch.Number),
		slog.Int("attempts", attempts),
		log.Error(cause))

	e.transition(BatchStatusFailed, bus.KindBatchFailed, BatchEvent{
		Retries: retries,
		Error:   cause.Error(),
	})
}

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
	"slices"
	"sync"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

// RunStatus represents the status of a benchmark run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final. A terminal run never
// changes status again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// BatchStatus represents the status of one batch within a run.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusRetrying  BatchStatus = "retrying"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Terminal reports whether the batch has finished, successfully or not.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// Batch is one contiguous slice of the suite processed by a single model
// call. Batches are created when the run is built and mutated only by
// their executor, always under the owning run's lock.
type Batch struct {
	Number      int
	Tests       []suite.TestCase
	Status      BatchStatus
	Retries     int
	MaxRetries  int
	LastError   string
	Responses   map[string]string
	Usage       llm.TokenUsage
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// testIDs returns the ids assigned to the batch in suite order.
func (b *Batch) testIDs() []string {
	ids := make([]string, len(b.Tests))
	for i, tc := range b.Tests {
		ids[i] = tc.ID
	}
	return ids
}

// Run is one execution of the suite against one model and variant. A run
// is owned by exactly one coordinator; everything mutable is guarded by
// mu, and external callers only ever see snapshots.
type Run struct {
	ID         string
	GroupID    string
	Request    RunRequest
	SuiteName  string
	TotalTests int

	Status      RunStatus
	Error       string
	ArtifactID  string
	Batches     []*Batch
	Responses   map[string]string
	Usage       llm.TokenUsage
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	cancelOnce   sync.Once
	cancelReason string
	closing      bool
	reruns       sync.WaitGroup
}

// newRun builds a run in pending state with its batches laid out and its
// cancellation context armed.
func newRun(id, groupID string, req RunRequest, s *suite.Suite, parts [][]suite.TestCase, maxRetries int, now time.Time) *Run {
	ctx, cancel := context.WithCancel(context.Background())

	run := &Run{
		ID:         id,
		GroupID:    groupID,
		Request:    req,
		SuiteName:  s.Name,
		TotalTests: s.Len(),
		Status:     RunStatusPending,
		Batches:    make([]*Batch, 0, len(parts)),
		Responses:  make(map[string]string, s.Len()),
		CreatedAt:  now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i, tests := range parts {
		run.Batches = append(run.Batches, &Batch{
			Number:     i + 1,
			Tests:      tests,
			Status:     BatchStatusPending,
			MaxRetries: maxRetries,
		})
	}
	return run
}

// cancelWith signals cancellation once, recording why. Later callers are
// no-ops; the first reason wins.
func (r *Run) cancelWith(reason string) {
	r.cancelOnce.Do(func() {
		r.mu.Lock()
		r.cancelReason = reason
		r.mu.Unlock()
		r.cancel()
	})
}

// Progress counts batch outcomes for one run.
type Progress struct {
	TotalBatches     int `json:"total_batches"`
	CompletedBatches int `json:"completed_batches"`
	FailedBatches    int `json:"failed_batches"`
	TotalTests       int `json:"total_tests"`
	CollectedTests   int `json:"collected_tests"`
}

// BatchSnapshot is an immutable copy of batch state for external access.
// The response payload is summarized as a count; full responses live in
// the artifact.
type BatchSnapshot struct {
	Number      int         `json:"number"`
	TestIDs     []string    `json:"test_ids"`
	Status      BatchStatus `json:"status"`
	Retries     int         `json:"retries"`
	MaxRetries  int         `json:"max_retries"`
	LastError   string      `json:"last_error,omitempty"`
	Responses   int         `json:"responses"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// RunSnapshot is an immutable deep copy of run state for external access.
// It aliases nothing mutable.
type RunSnapshot struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"group_id"`
	Model       string          `json:"model"`
	Variant     string          `json:"variant"`
	SuiteName   string          `json:"suite_name"`
	Temperature float64         `json:"temperature"`
	Status      RunStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	ArtifactID  string          `json:"artifact_id,omitempty"`
	Progress    Progress        `json:"progress"`
	Batches     []BatchSnapshot `json:"batches"`
	Usage       llm.TokenUsage  `json:"usage"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// snapshotRun deep copies a run under its read lock.
func snapshotRun(run *Run) *RunSnapshot {
	run.mu.RLock()
	defer run.mu.RUnlock()

	snap := &RunSnapshot{
		ID:          run.ID,
		GroupID:     run.GroupID,
		Model:       run.Request.Model,
		Variant:     run.Request.Variant,
		SuiteName:   run.SuiteName,
		Temperature: run.Request.Temperature,
		Status:      run.Status,
		Error:       run.Error,
		ArtifactID:  run.ArtifactID,
		Usage:       run.Usage,
		CreatedAt:   run.CreatedAt,
		StartedAt:   copyTime(run.StartedAt),
		CompletedAt: copyTime(run.CompletedAt),
		Batches:     make([]BatchSnapshot, 0, len(run.Batches)),
	}

	progress := Progress{
		TotalBatches: len(run.Batches),
		TotalTests:   run.TotalTests,
	}
	for _, b := range run.Batches {
		bs := BatchSnapshot{
			Number:      b.Number,
			TestIDs:     b.testIDs(),
			Status:      b.Status,
			Retries:     b.Retries,
			MaxRetries:  b.MaxRetries,
			LastError:   b.LastError,
			Responses:   len(b.Responses),
			StartedAt:   copyTime(b.StartedAt),
			CompletedAt: copyTime(b.CompletedAt),
		}
		snap.Batches = append(snap.Batches, bs)

		switch b.Status {
		case BatchStatusCompleted:
			progress.CompletedBatches++
			progress.CollectedTests += len(b.Tests)
		case BatchStatusFailed:
			progress.FailedBatches++
		}
	}
	snap.Progress = progress
	return snap
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// RunEvent is the payload carried by run.* events.
type RunEvent struct {
	Status           RunStatus `json:"status"`
	Model            string    `json:"model,omitempty"`
	Variant          string    `json:"variant,omitempty"`
	TotalBatches     int       `json:"total_batches,omitempty"`
	TotalTests       int       `json:"total_tests,omitempty"`
	CompletedBatches int       `json:"completed_batches,omitempty"`
	FailedBatches    int       `json:"failed_batches,omitempty"`
	ArtifactID       string    `json:"artifact_id,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// BatchEvent is the payload carried by batch.* events. Attempt and
// Reason are set on retry events; Retries and Error on terminal ones.
type BatchEvent struct {
	Status    BatchStatus `json:"status"`
	Tests     int         `json:"tests,omitempty"`
	Attempt   int         `json:"attempt,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Retries   int         `json:"retries,omitempty"`
	Responses int         `json:"responses,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// cloneSizes copies an explicit batch size list so request snapshots
// never alias caller slices.
func cloneSizes(sizes []int) []int {
	if len(sizes) == 0 {
		return nil
	}
	return slices.Clone(sizes)
}

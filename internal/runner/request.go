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
	"fmt"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

const (
	// DefaultBatchSize is the uniform batch size used when a request
	// specifies no sizing at all.
	DefaultBatchSize = 45

	// DefaultMaxConcurrentBatches bounds batch executors per run.
	DefaultMaxConcurrentBatches = 4

	// DefaultBatchTimeout bounds each model call attempt.
	DefaultBatchTimeout = 600 * time.Second

	// DefaultRunTimeout is the soft wall limit for one run; on expiry the
	// run is cancelled.
	DefaultRunTimeout = 30 * time.Minute

	// MaxQueueSize caps how many parallel runs one submit may request.
	MaxQueueSize = 20
)

// Config sizes the execution engine. Zero values take the defaults above;
// the retry schedule defaults to llm.DefaultRetryConfig.
type Config struct {
	// MaxConcurrentBatches is the per-run executor semaphore size.
	MaxConcurrentBatches int

	// BatchTimeout bounds a single model call attempt. On expiry the
	// batch retries if attempts remain, otherwise fails.
	BatchTimeout time.Duration

	// RunTimeout is the soft per-run wall limit.
	RunTimeout time.Duration

	// Retry is the reissue schedule for retryable batch failures.
	// Retry.MaxRetries bounds total attempts per batch.
	Retry llm.RetryConfig

	// DefaultBatchSize overrides the package default for requests that
	// leave sizing unset.
	DefaultBatchSize int
}

// withDefaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry = llm.DefaultRetryConfig()
	}
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = DefaultBatchSize
	}
	return c
}

// RunRequest is one benchmark submission: which model and documentation
// variant to drive, how to slice the suite, and how many parallel runs to
// spawn. Exactly one of BatchSize or BatchSizes may be set; when both are
// zero the default uniform size applies.
type RunRequest struct {
	Model       string  `json:"model"`
	Variant     string  `json:"variant"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	BatchSize   int     `json:"batch_size,omitempty"`
	BatchSizes  []int   `json:"batch_sizes,omitempty"`
	QueueSize   int     `json:"queue_size,omitempty"`

	// Filter optionally narrows the suite with a boolean expression over
	// test case fields, e.g. `level <= 3`.
	Filter string `json:"filter,omitempty"`
}

// normalized returns a copy with defaults applied: queue size 1 and the
// configured uniform batch size when no sizing was given. The copy owns
// its size list.
func (r RunRequest) normalized(defaultBatchSize int) RunRequest {
	r.BatchSizes = cloneSizes(r.BatchSizes)
	if r.QueueSize == 0 {
		r.QueueSize = 1
	}
	if r.BatchSize == 0 && len(r.BatchSizes) == 0 {
		r.BatchSize = defaultBatchSize
	}
	return r
}

// validate rejects requests the engine cannot run. Suite-dependent checks
// (size list sum, filter matches) happen later, at partition time.
func (r RunRequest) validate() error {
	if r.Model == "" {
		return &errors.ConfigError{Key: "model", Reason: "model id is required"}
	}
	if r.Variant == "" {
		return &errors.ConfigError{Key: "variant", Reason: "variant name is required"}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return &errors.ConfigError{
			Key:    "temperature",
			Reason: fmt.Sprintf("temperature %.2f outside the valid range 0-2", r.Temperature),
		}
	}
	if r.MaxTokens < 0 {
		return &errors.ConfigError{Key: "max_tokens", Reason: "max_tokens must not be negative"}
	}
	if r.QueueSize < 1 || r.QueueSize > MaxQueueSize {
		return &errors.ConfigError{
			Key:    "queue_size",
			Reason: fmt.Sprintf("queue size %d outside the valid range 1-%d", r.QueueSize, MaxQueueSize),
		}
	}
	if r.BatchSize < 0 {
		return &errors.ConfigError{Key: "batch_size", Reason: "batch size must be at least 1"}
	}
	if r.BatchSize > 0 && len(r.BatchSizes) > 0 {
		return &errors.ConfigError{
			Key:    "batch_size",
			Reason: "batch_size and batch_sizes are mutually exclusive",
		}
	}
	for i, size := range r.BatchSizes {
		if size < 1 {
			return &errors.ConfigError{
				Key:    "batch_sizes",
				Reason: fmt.Sprintf("entry %d is %d; every batch size must be at least 1", i, size),
			}
		}
	}
	return nil
}

// partition slices the suite's tests into batches per the request. Test
// cases keep their suite order and batches are numbered from 1 in that
// order. An explicit size list must sum to the suite size exactly.
func partition(s *suite.Suite, req RunRequest) ([][]suite.TestCase, error) {
	tests := s.Tests
	if len(tests) == 0 {
		return nil, &errors.ConfigError{Key: "suite", Reason: "suite has no tests"}
	}

	if len(req.BatchSizes) > 0 {
		total := 0
		for _, size := range req.BatchSizes {
			total += size
		}
		if total != len(tests) {
			return nil, &errors.ConfigError{
				Key: "batch_sizes",
				Reason: fmt.Sprintf("sizes sum to %d but the suite has %d tests",
					total, len(tests)),
			}
		}
		parts := make([][]suite.TestCase, 0, len(req.BatchSizes))
		offset := 0
		for _, size := range req.BatchSizes {
			parts = append(parts, tests[offset:offset+size])
			offset += size
		}
		return parts, nil
	}

	size := req.BatchSize
	if size >= len(tests) {
		return [][]suite.TestCase{tests}, nil
	}
	parts := make([][]suite.TestCase, 0, (len(tests)+size-1)/size)
	for offset := 0; offset < len(tests); offset += size {
		end := offset + size
		if end > len(tests) {
			end = len(tests)
		}
		parts = append(parts, tests[offset:end])
	}
	return parts, nil
}

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

package bus

import (
	"strings"
	"time"
)

// Kind identifies the type of an event.
type Kind string

// Event kinds published by the benchmark pipeline.
const (
	KindRunQueued      Kind = "run.queued"
	KindRunStarted     Kind = "run.started"
	KindBatchStarted   Kind = "batch.started"
	KindBatchProgress  Kind = "batch.progress"
	KindBatchRetry     Kind = "batch.retry"
	KindBatchCompleted Kind = "batch.completed"
	KindBatchFailed    Kind = "batch.failed"
	KindRunCompleted   Kind = "run.completed"
	KindRunFailed      Kind = "run.failed"
	KindRunCancelled   Kind = "run.cancelled"
	KindEvalStarted    Kind = "evaluation.started"
	KindEvalCompleted  Kind = "evaluation.completed"
	KindEvalFailed     Kind = "evaluation.failed"

	// KindLag is synthesized by the bus when a subscriber queue
	// overflows and older events had to be dropped.
	KindLag Kind = "lag"
)

// Terminal reports whether the kind ends a run's event stream.
// Terminal events are never dropped from subscriber queues.
func (k Kind) Terminal() bool {
	switch k {
	case KindRunCompleted, KindRunFailed, KindRunCancelled:
		return true
	}
	return false
}

// Event is a single message delivered on a topic. Sequence numbers are
// assigned by the bus and increase monotonically per topic, so a
// subscriber that resumes from a cursor can detect gaps.
type Event struct {
	Kind     Kind      `json:"kind"`
	Topic    string    `json:"topic"`
	RunID    string    `json:"run_id,omitempty"`
	Batch    int       `json:"batch,omitempty"`
	Sequence uint64    `json:"sequence"`
	Time     time.Time `json:"time"`
	Payload  any       `json:"payload,omitempty"`
}

// GlobalTopic carries queue-level and evaluator events that are not
// scoped to a single run.
const GlobalTopic = "global"

// RunTopic returns the topic carrying progress events for one run.
func RunTopic(runID string) string {
	return "run/" + runID
}

// BatchRerunTopic returns the topic carrying manual rerun events for
// one run.
func BatchRerunTopic(runID string) string {
	return "batch_rerun/" + runID
}

// topicClass collapses a topic name to its family for metric labels.
func topicClass(topic string) string {
	if i := strings.IndexByte(topic, '/'); i >= 0 {
		return topic[:i]
	}
	return topic
}

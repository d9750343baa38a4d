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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsSubmitted counts runs created by submits
	runsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_runner_runs_submitted_total",
			Help: "Total runs created, by model and variant",
		},
		[]string{"model", "variant"},
	)

	// runsFinished counts terminal run transitions
	runsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_runner_runs_finished_total",
			Help: "Total runs reaching a terminal status",
		},
		[]string{"status"},
	)

	// activeRuns tracks non-terminal runs
	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jacbench_runner_active_runs",
			Help: "Number of runs that have not reached a terminal status",
		},
	)

	// batchesFinished counts terminal batch transitions
	batchesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_runner_batches_finished_total",
			Help: "Total batches reaching a terminal status",
		},
		[]string{"status"},
	)

	// batchDuration tracks wall time per batch including retries
	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jacbench_runner_batch_duration_seconds",
			Help:    "Wall time of a batch from start to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	// batchRetries counts retry transitions by error kind
	batchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_runner_batch_retries_total",
			Help: "Total batch retry transitions by error kind",
		},
		[]string{"reason"},
	)
)

// recordRunSubmitted increments the submitted counter
func recordRunSubmitted(model, variant string) {
	runsSubmitted.WithLabelValues(model, variant).Inc()
}

// recordRunFinished increments the finished counter
func recordRunFinished(status string) {
	runsFinished.WithLabelValues(status).Inc()
}

// recordBatchFinished increments the batch counter and observes duration
func recordBatchFinished(status string, elapsed time.Duration) {
	batchesFinished.WithLabelValues(status).Inc()
	if elapsed > 0 {
		batchDuration.Observe(elapsed.Seconds())
	}
}

// recordBatchRetry increments the retry counter
func recordBatchRetry(reason string) {
	batchRetries.WithLabelValues(reason).Inc()
}

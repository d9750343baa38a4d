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

package evaluator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// evalsFinished counts settled evaluations
	evalsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_evaluator_evaluations_total",
			Help: "Total evaluations reaching a terminal status",
		},
		[]string{"status"},
	)

	// evalsActive tracks evaluations currently scoring
	evalsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jacbench_evaluator_active_evaluations",
			Help: "Number of evaluations currently scoring",
		},
	)

	// evalDuration tracks scoring wall time
	evalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jacbench_evaluator_duration_seconds",
			Help:    "Wall time of one artifact evaluation",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

// recordEvalFinished increments the finished counter and observes duration
func recordEvalFinished(status string, elapsed time.Duration) {
	evalsFinished.WithLabelValues(status).Inc()
	if elapsed > 0 {
		evalDuration.Observe(elapsed.Seconds())
	}
}

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

package fs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeWrites counts persistence attempts by kind and outcome
	storeWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_store_writes_total",
			Help: "Store writes by kind (artifact, evaluation) and outcome (ok, conflict, error)",
		},
		[]string{"kind", "outcome"},
	)

	// storeDeletes counts artifact deletions by outcome
	storeDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_store_deletes_total",
			Help: "Artifact deletions by outcome (ok, referenced, error)",
		},
		[]string{"outcome"},
	)
)

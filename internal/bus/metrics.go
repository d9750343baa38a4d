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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsPublished tracks events published by kind
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_bus_events_published_total",
			Help: "Total events published to the bus by event kind",
		},
		[]string{"kind"},
	)

	// eventsDropped tracks subscriber queue overflow drops
	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jacbench_bus_events_dropped_total",
			Help: "Total events dropped from full subscriber queues by topic family",
		},
		[]string{"topic"},
	)

	// activeSubscribers tracks open subscriptions
	activeSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jacbench_bus_subscribers",
			Help: "Number of open subscriptions by topic family",
		},
		[]string{"topic"},
	)
)

// recordPublished increments the published counter
func recordPublished(kind string) {
	eventsPublished.WithLabelValues(kind).Inc()
}

// recordDropped increments the dropped counter
func recordDropped(topic string) {
	eventsDropped.WithLabelValues(topic).Inc()
}

// recordSubscribed increments the subscriber gauge
func recordSubscribed(topic string) {
	activeSubscribers.WithLabelValues(topic).Inc()
}

// recordUnsubscribed decrements the subscriber gauge
func recordUnsubscribed(topic string) {
	activeSubscribers.WithLabelValues(topic).Dec()
}

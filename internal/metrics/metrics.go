// Copyright 2025 The AP Engine Authors
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

// Package metrics exposes Prometheus counters and histograms for the
// job lifecycle, the dispatcher's worker pool, and reference fetching.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apengine_jobs_accepted_total",
			Help: "Total jobs accepted, by process ID",
		},
		[]string{"process_id"},
	)

	JobsTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apengine_jobs_terminal_total",
			Help: "Total jobs reaching a terminal state, by process ID and final status",
		},
		[]string{"process_id", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apengine_job_duration_seconds",
			Help:    "Wall-clock duration from accepted to terminal, by process ID",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"process_id"},
	)

	WorkerPoolActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apengine_worker_pool_active",
			Help: "Number of worker pool slots currently occupied",
		},
	)

	WorkerPoolQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apengine_worker_pool_queued",
			Help: "Number of jobs waiting for a free worker slot",
		},
	)

	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apengine_fetch_attempts_total",
			Help: "Total reference fetch attempts, by scheme and outcome",
		},
		[]string{"scheme", "outcome"},
	)

	ContainerExecDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apengine_container_exec_duration_seconds",
			Help:    "Container execution duration, by exit classification",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"classification"},
	)
)

// RecordJobAccepted increments the accepted counter for a process.
func RecordJobAccepted(processID string) {
	JobsAccepted.WithLabelValues(processID).Inc()
}

// RecordJobTerminal increments the terminal counter and observes the
// job's total duration.
func RecordJobTerminal(processID, status string, duration time.Duration) {
	JobsTerminal.WithLabelValues(processID, status).Inc()
	JobDuration.WithLabelValues(processID).Observe(duration.Seconds())
}

// RecordFetchAttempt increments the fetch-attempt counter for a scheme
// and outcome ("success", "retry", "error").
func RecordFetchAttempt(scheme, outcome string) {
	FetchAttempts.WithLabelValues(scheme, outcome).Inc()
}

// RecordContainerExec observes a container execution's duration under
// its exit classification ("success", "retryable", "permanent").
func RecordContainerExec(classification string, duration time.Duration) {
	ContainerExecDuration.WithLabelValues(classification).Observe(duration.Seconds())
}

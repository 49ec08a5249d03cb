// Copyright 2026 The Riff Authors
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

// Package observability exposes prometheus metrics for the workflow
// execution core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riff_workflow_steps_started_total",
			Help: "Total workflow steps started, by step kind",
		},
		[]string{"workflow", "kind"},
	)

	stepsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riff_workflow_steps_completed_total",
			Help: "Total workflow steps completed, by step kind and outcome",
		},
		[]string{"workflow", "kind", "outcome"},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riff_workflow_step_duration_seconds",
			Help:    "Wall-clock duration of workflow steps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow", "kind"},
	)

	stepRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riff_workflow_step_retries_total",
			Help: "Total step retry attempts",
		},
		[]string{"workflow", "kind"},
	)

	permissionAsks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riff_workflow_permission_asks_total",
			Help: "Total permission asks parked, by final outcome",
		},
		[]string{"workflow", "outcome"},
	)

	runsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riff_workflow_runs_total",
			Help: "Total workflow runs, by outcome",
		},
		[]string{"workflow", "outcome"},
	)
)

// RecordStepStarted increments the started counter for a step.
func RecordStepStarted(workflow, kind string) {
	stepsStarted.WithLabelValues(workflow, kind).Inc()
}

// RecordStepCompleted records a step's terminal state and duration.
func RecordStepCompleted(workflow, kind, outcome string, seconds float64) {
	stepsCompleted.WithLabelValues(workflow, kind, outcome).Inc()
	stepDuration.WithLabelValues(workflow, kind).Observe(seconds)
}

// RecordRetry increments the retry counter for a step.
func RecordRetry(workflow, kind string) {
	stepRetries.WithLabelValues(workflow, kind).Inc()
}

// RecordPermissionAsk records a resolved (or cancelled) permission ask.
func RecordPermissionAsk(workflow, outcome string) {
	permissionAsks.WithLabelValues(workflow, outcome).Inc()
}

// RecordRunFinished records a run's terminal outcome.
func RecordRunFinished(workflow, outcome string) {
	runsFinished.WithLabelValues(workflow, outcome).Inc()
}

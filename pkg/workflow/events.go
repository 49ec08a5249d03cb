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

package workflow

import "time"

// EventType identifies a lifecycle event emitted during a run.
type EventType string

const (
	// EventStepStarted is emitted when a step enters Running.
	EventStepStarted EventType = "step_started"

	// EventStepCompleted is emitted when a step succeeds.
	EventStepCompleted EventType = "step_completed"

	// EventStepFailed is emitted when a step reaches terminal failure.
	EventStepFailed EventType = "step_failed"

	// EventRetrying is emitted before each retry attempt.
	EventRetrying EventType = "retrying"

	// EventPermissionAsked is emitted when a step parks on an Ask decision.
	EventPermissionAsked EventType = "permission_asked"

	// EventLoopProgress is emitted as loop iterations complete.
	EventLoopProgress EventType = "loop_progress"

	// EventSwitchRouted is emitted when a switch picks a route.
	EventSwitchRouted EventType = "switch_routed"
)

// Event is one lifecycle notification. Events are observability output
// only; the executor never reads them back.
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Workflow  string                 `json:"workflow"`
	StepID    string                 `json:"step_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventSink receives lifecycle events. Implementations must not block:
// the executor emits synchronously on the run's hot path.
type EventSink interface {
	Emit(event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(event Event) { f(event) }

// ChannelSink forwards events to a channel, dropping on a full buffer so
// a slow consumer can never stall a run.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, size)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Emit implements EventSink with a non-blocking send.
func (s *ChannelSink) Emit(event Event) {
	select {
	case s.ch <- event:
	default:
	}
}

// Close closes the event channel. Call only after the run has finished.
func (s *ChannelSink) Close() { close(s.ch) }

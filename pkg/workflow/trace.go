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

// RoutingTrace records why a Condition or Switch step routed the way it
// did. Diagnostic only; collected per run when tracing is enabled.
type RoutingTrace struct {
	// StepID is the condition or switch step that routed.
	StepID string `json:"step_id"`

	// Kind is the routing step kind ("condition" or "switch").
	Kind StepKind `json:"kind"`

	// Branch is the target the step routed to ("" when the run ended here).
	Branch string `json:"branch"`

	// Reason describes the decision: the matched case, "default", or the
	// condition result.
	Reason string `json:"reason"`
}

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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents a load-time workflow definition defect.
// Loading is all-or-nothing: a workflow with any validation defect is
// never partially usable.
type ValidationError struct {
	// Workflow is the name of the workflow being validated (may be empty
	// for definition-level defects discovered before the name is known)
	Workflow string

	// Step identifies which step carries the defect, when applicable
	Step string

	// Field identifies which field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Workflow != "" {
		msg = fmt.Sprintf("workflow %q: %s", e.Workflow, msg)
	}
	if e.Step != "" {
		msg = fmt.Sprintf("%s at step %q", msg, e.Step)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s on %s", msg, e.Field)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// ConfigError represents configuration problems.
// Use this for missing collaborators, bad settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a step deadline being exceeded.
// Timeouts are retried only when the retry policy explicitly retries them.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "tool invocation", "wait poll")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ToolError represents a failure reported by an external tool invoker.
// Retried per the step's retry policy unless the tool reports itself
// non-idempotent.
type ToolError struct {
	// Tool is the invoked tool name (e.g., "transform.jq")
	Tool string

	// Message is the human-readable failure description
	Message string

	// NonIdempotent marks operations that must not be retried blindly
	NonIdempotent bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

// AgentError represents a failure reported by an agent runner.
type AgentError struct {
	// Agent is the agent name
	Agent string

	// Message is the human-readable failure description
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Agent, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// PermissionDeniedError represents an explicit Deny decision from the
// permission mediator. Never retried: a policy decision is not transient.
type PermissionDeniedError struct {
	// Resource is the denied resource pattern subject (e.g., a tool name)
	Resource string

	// Scope names the policy scope whose pattern produced the denial
	Scope string
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("permission denied for %s (scope %s)", e.Resource, e.Scope)
	}
	return fmt.Sprintf("permission denied for %s", e.Resource)
}

// RecursionError represents a nested-workflow structural guard firing:
// either the depth limit was exceeded or a workflow re-entered itself
// through a chain of workflow steps. Always fatal; never retried and
// never eligible for continue-on-error, since it indicates a structural
// defect rather than a transient condition.
type RecursionError struct {
	// Workflow is the workflow whose invocation tripped the guard
	Workflow string

	// Depth is the recursion depth at the point of failure
	Depth int

	// Mutual is true when the failure is a mutual-recursion cycle rather
	// than a plain depth overflow
	Mutual bool

	// Chain is the active workflow call stack, outermost first
	Chain []string
}

// Error implements the error interface.
func (e *RecursionError) Error() string {
	if e.Mutual {
		return fmt.Sprintf("mutual recursion detected: workflow %q already active in call chain %v", e.Workflow, e.Chain)
	}
	return fmt.Sprintf("recursion limit exceeded: workflow %q at depth %d", e.Workflow, e.Depth)
}

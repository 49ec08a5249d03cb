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

// Package workflow implements the workflow execution core: definition
// loading and validation, the condition engine, and the step state machine
// that drives tools, agents and nested workflows under a permission policy.
//
// Definitions are written in YAML or JSON against the same schema. The
// executor walks the step graph from a named entrypoint, threading each
// step's output through a shared execution context that expressions read
// with $-paths.
package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/riffware/riff/pkg/errors"
)

// StepKind identifies how a step executes. The set is closed; the executor
// dispatches with an exhaustive switch.
type StepKind string

const (
	// StepTool invokes a tool through the ToolInvoker collaborator.
	StepTool StepKind = "tool"

	// StepSkill invokes a named skill; skills share the tool gateway but are
	// addressed in their own namespace.
	StepSkill StepKind = "skill"

	// StepAgent runs one agent turn through the AgentRunner collaborator.
	StepAgent StepKind = "agent"

	// StepWorkflow executes another workflow as a nested run.
	StepWorkflow StepKind = "workflow"

	// StepCondition evaluates a condition group and routes on the result.
	StepCondition StepKind = "condition"

	// StepWait sleeps for a duration or polls an expression until truthy.
	StepWait StepKind = "wait"

	// StepLoop iterates a body step over an array, sequentially or in
	// bounded-parallel batches.
	StepLoop StepKind = "loop"

	// StepMerge combines several evaluated inputs into one value.
	StepMerge StepKind = "merge"

	// StepSwitch routes on an evaluated value across exact and pattern cases.
	StepSwitch StepKind = "switch"
)

// knownKinds is the closed set accepted by the validator.
var knownKinds = map[StepKind]bool{
	StepTool: true, StepSkill: true, StepAgent: true, StepWorkflow: true,
	StepCondition: true, StepWait: true, StepLoop: true, StepMerge: true,
	StepSwitch: true,
}

// Definition is a loaded workflow: immutable once returned by Load.
type Definition struct {
	// Name is the workflow identifier, used for mutual-recursion detection.
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable context (optional).
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Version tracks the definition version (optional, defaults to "1.0").
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Entrypoints name the steps a run may start from. Every workflow has at
	// least one; "default" is used when the caller does not pick one.
	Entrypoints map[string]Entrypoint `yaml:"entrypoints" json:"entrypoints"`

	// Steps are the nodes of the execution graph.
	Steps []Step `yaml:"steps" json:"steps"`

	// Execution holds run-wide policy defaults, overridable per step.
	Execution *ExecutionPolicy `yaml:"execution,omitempty" json:"execution,omitempty"`

	// index maps step id to position in Steps, resolved during validation.
	index map[string]int
}

// Entrypoint names the step a run starts at.
type Entrypoint struct {
	Step string `yaml:"step" json:"step"`
}

// Step is one node in the workflow graph.
type Step struct {
	// ID is unique within the workflow.
	ID string `yaml:"id" json:"id"`

	// Kind selects the dispatch variant.
	Kind StepKind `yaml:"kind" json:"kind"`

	// Config is the kind-specific payload, decoded lazily per kind.
	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`

	// Next is the unconditional successor when no other routing applies.
	Next string `yaml:"next,omitempty" json:"next,omitempty"`

	// OnSuccess routes a succeeded step; takes priority over Next.
	OnSuccess string `yaml:"on_success,omitempty" json:"on_success,omitempty"`

	// OnFailure routes a failed step; takes priority over Next.
	OnFailure string `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`

	// When is an optional guard expression (expr-lang syntax) evaluated
	// against the context before the step runs; false skips the step.
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// ContinueOnError, when set, overrides the workflow error policy for
	// this step: a terminal failure becomes a routable synthetic output.
	ContinueOnError *bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`

	// Outputs renames fields of the step result before publishing: local
	// result key to context key under this step's namespace.
	Outputs map[string]string `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	// Retry overrides the workflow retry defaults.
	Retry *RetryPolicy `yaml:"retry,omitempty" json:"retry,omitempty"`

	// TimeoutSeconds overrides the workflow step timeout. Zero means the
	// workflow default applies.
	TimeoutSeconds float64 `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// RetryPolicy controls retry-with-backoff around one step.
type RetryPolicy struct {
	// Count is the number of retries after the initial attempt.
	Count int `yaml:"count" json:"count"`

	// BackoffBaseMS is the first retry delay in milliseconds.
	BackoffBaseMS int `yaml:"backoff_base_ms,omitempty" json:"backoff_base_ms,omitempty"`

	// Multiplier grows the delay each attempt; values below 1 are treated
	// as 1 (constant backoff).
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`

	// MaxDelayMS caps the computed delay. Zero means no cap.
	MaxDelayMS int `yaml:"max_delay_ms,omitempty" json:"max_delay_ms,omitempty"`

	// RetryTimeouts opts timeout failures into the retry policy. Off by
	// default: a deadline miss usually repeats.
	RetryTimeouts bool `yaml:"retry_timeouts,omitempty" json:"retry_timeouts,omitempty"`
}

// Error policy presets for ExecutionPolicy.ErrorPolicy.
const (
	// ErrorPolicyAbort fails the whole run on a step's terminal failure.
	ErrorPolicyAbort = "abort"

	// ErrorPolicyRouteAsFailure converts terminal failures into routable
	// synthetic outputs for every step, like continue_on_error everywhere.
	ErrorPolicyRouteAsFailure = "route_as_failure"
)

// Switch case match ordering for ExecutionPolicy.SwitchMatchOrder.
const (
	// MatchExactFirst tries every exact case before any pattern case.
	MatchExactFirst = "exact_first"

	// MatchPatternFirst tries pattern cases before exact ones.
	MatchPatternFirst = "pattern_first"
)

// ExecutionPolicy carries run-wide defaults. Per-step settings win over
// these; a step that sets continue_on_error contradicting ErrorPolicy is
// reported at load time and the step-level value is authoritative.
type ExecutionPolicy struct {
	// Retry is the default retry policy for steps without their own.
	Retry *RetryPolicy `yaml:"retry,omitempty" json:"retry,omitempty"`

	// TimeoutSeconds is the default per-step timeout. Zero disables it.
	TimeoutSeconds float64 `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`

	// ErrorPolicy is "abort" (default) or "route_as_failure".
	ErrorPolicy string `yaml:"error_policy,omitempty" json:"error_policy,omitempty"`

	// StrictPaths switches expression path resolution from lenient
	// (missing is null) to strict (missing is an error).
	StrictPaths bool `yaml:"strict_paths,omitempty" json:"strict_paths,omitempty"`

	// SwitchMatchOrder is "exact_first" (default) or "pattern_first".
	SwitchMatchOrder string `yaml:"switch_match_order,omitempty" json:"switch_match_order,omitempty"`

	// MaxRecursionDepth bounds nested workflow calls. Default 16.
	MaxRecursionDepth int `yaml:"max_recursion_depth,omitempty" json:"max_recursion_depth,omitempty"`

	// MaxLoopIterations bounds loop size. Default 1000.
	MaxLoopIterations int `yaml:"max_loop_iterations,omitempty" json:"max_loop_iterations,omitempty"`

	// MaxConditionDepth bounds condition group nesting. Default 5.
	MaxConditionDepth int `yaml:"max_condition_depth,omitempty" json:"max_condition_depth,omitempty"`
}

// Defaults for ExecutionPolicy fields left unset.
const (
	DefaultVersion           = "1.0"
	DefaultMaxRecursionDepth = 16
	DefaultMaxLoopIterations = 1000
	DefaultMaxConditionDepth = 5
)

// Load parses, schema-checks and validates a workflow definition document.
// YAML and JSON are both accepted. Loading is all-or-nothing: any defect
// returns a ValidationError and no Definition.
func Load(data []byte) (*Definition, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &errors.ValidationError{
			Field:   "definition",
			Message: fmt.Sprintf("failed to parse workflow: %v", err),
		}
	}
	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and loads a workflow definition from disk.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	def, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return def, nil
}

func (d *Definition) applyDefaults() {
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	if d.Execution == nil {
		d.Execution = &ExecutionPolicy{}
	}
	if d.Execution.ErrorPolicy == "" {
		d.Execution.ErrorPolicy = ErrorPolicyAbort
	}
	if d.Execution.SwitchMatchOrder == "" {
		d.Execution.SwitchMatchOrder = MatchExactFirst
	}
	if d.Execution.MaxRecursionDepth == 0 {
		d.Execution.MaxRecursionDepth = DefaultMaxRecursionDepth
	}
	if d.Execution.MaxLoopIterations == 0 {
		d.Execution.MaxLoopIterations = DefaultMaxLoopIterations
	}
	if d.Execution.MaxConditionDepth == 0 {
		d.Execution.MaxConditionDepth = DefaultMaxConditionDepth
	}
}

// Step returns the step with the given id, or nil.
func (d *Definition) Step(id string) *Step {
	if idx, ok := d.index[id]; ok {
		return &d.Steps[idx]
	}
	return nil
}

// EntrypointStep resolves an entrypoint name ("" means "default") to its
// starting step.
func (d *Definition) EntrypointStep(name string) (*Step, error) {
	if name == "" {
		name = "default"
	}
	ep, ok := d.Entrypoints[name]
	if !ok {
		return nil, &errors.ValidationError{
			Workflow: d.Name,
			Field:    "entrypoints",
			Message:  fmt.Sprintf("entrypoint %q not defined", name),
		}
	}
	step := d.Step(ep.Step)
	if step == nil {
		return nil, &errors.ValidationError{
			Workflow: d.Name,
			Field:    "entrypoints." + name,
			Message:  fmt.Sprintf("entrypoint step %q not found", ep.Step),
		}
	}
	return step, nil
}

// Marshal serializes the definition back to YAML. A reloaded copy is
// executor-equivalent to the original.
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// decodeConfig unpacks a step's kind-specific config into a typed struct
// via a YAML round trip, so config structs reuse the same tags as the
// definition format.
func decodeConfig(config map[string]interface{}, out interface{}) error {
	raw, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

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

// Kind-specific step config payloads, decoded from Step.Config.

// ToolConfig configures a tool or skill step. Args values are resolved
// against the context before invocation: strings starting with "$" are
// evaluated as expressions, recursively through nested maps and arrays.
type ToolConfig struct {
	// Tool is the tool name for tool steps ("transform.jq", "util.echo").
	Tool string `yaml:"tool,omitempty" json:"tool,omitempty"`

	// Skill is the skill name for skill steps.
	Skill string `yaml:"skill,omitempty" json:"skill,omitempty"`

	// Args are the invocation arguments, expression-resolved.
	Args map[string]interface{} `yaml:"args,omitempty" json:"args,omitempty"`

	// PermissionMode is the fallback decision when no policy pattern
	// matches this tool: "allow", "ask" or "deny". Empty means allow.
	PermissionMode string `yaml:"permission_mode,omitempty" json:"permission_mode,omitempty"`
}

// AgentConfig configures an agent step.
type AgentConfig struct {
	// Agent is the agent name.
	Agent string `yaml:"agent" json:"agent"`

	// Message is the turn input, expression-resolved like tool args.
	Message interface{} `yaml:"message,omitempty" json:"message,omitempty"`

	// ToolsAllowed restricts which tools the agent may call this turn.
	ToolsAllowed []string `yaml:"tools_allowed,omitempty" json:"tools_allowed,omitempty"`

	// BudgetTokens caps the turn's token spend. Zero means runner default.
	BudgetTokens int `yaml:"budget_tokens,omitempty" json:"budget_tokens,omitempty"`

	// Effectful routes the call through the permission gateway, like a
	// tool invocation.
	Effectful bool `yaml:"effectful,omitempty" json:"effectful,omitempty"`
}

// SubworkflowConfig configures a nested workflow step.
type SubworkflowConfig struct {
	// Workflow names the workflow to run, resolved by the executor's
	// workflow resolver.
	Workflow string `yaml:"workflow" json:"workflow"`

	// Entrypoint selects the nested entrypoint; empty means "default".
	Entrypoint string `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`

	// Inputs seed the nested run's workflow namespace, expression-resolved.
	Inputs map[string]interface{} `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// ConditionConfig configures a condition step. Either the legacy single
// comparison fields or Group is set, never both.
type ConditionConfig struct {
	// Legacy single-comparison form, inline.
	Path       string      `yaml:"path,omitempty" json:"path,omitempty"`
	Expression string      `yaml:"expression,omitempty" json:"expression,omitempty"`
	Operator   string      `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value      interface{} `yaml:"value,omitempty" json:"value,omitempty"`

	// Group is the full condition tree form.
	Group *ConditionGroup `yaml:"group,omitempty" json:"group,omitempty"`
}

// legacy reports whether any legacy inline field is set.
func (c *ConditionConfig) legacy() bool {
	return c.Path != "" || c.Expression != "" || c.Operator != ""
}

// WaitConfig configures a wait step: a fixed sleep or a polled expression.
// Exactly one of DurationSeconds and UntilExpression is set.
type WaitConfig struct {
	// DurationSeconds sleeps for a fixed time.
	DurationSeconds float64 `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`

	// UntilExpression polls an expression until it is truthy.
	UntilExpression string `yaml:"until_expression,omitempty" json:"until_expression,omitempty"`

	// CheckIntervalSeconds is the polling interval; default 1s.
	CheckIntervalSeconds float64 `yaml:"check_interval_seconds,omitempty" json:"check_interval_seconds,omitempty"`

	// TimeoutSeconds bounds the poll; expiry is a terminal failure unless
	// TimeoutSucceeds is set.
	TimeoutSeconds float64 `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`

	// TimeoutSucceeds treats poll expiry as success with no output.
	TimeoutSucceeds bool `yaml:"timeout_succeeds,omitempty" json:"timeout_succeeds,omitempty"`
}

// Loop execution modes.
const (
	LoopSequential = "sequential"
	LoopParallel   = "parallel"
)

// LoopConfig configures a loop step.
type LoopConfig struct {
	// Items is an expression evaluating to the array to iterate.
	Items string `yaml:"items" json:"items"`

	// ItemVariable binds each element under loop.<ItemVariable>.
	ItemVariable string `yaml:"item_variable" json:"item_variable"`

	// IndexVariable optionally binds the index under loop.<IndexVariable>.
	IndexVariable string `yaml:"index_variable,omitempty" json:"index_variable,omitempty"`

	// BodyStep is the step executed once per element.
	BodyStep string `yaml:"body_step" json:"body_step"`

	// Mode is "sequential" (default) or "parallel".
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// BatchSize bounds parallel concurrency; defaults to the item count.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// ContinueOnIterationError records a failed iteration as an error entry
	// and keeps looping instead of aborting the loop.
	ContinueOnIterationError bool `yaml:"continue_on_iteration_error,omitempty" json:"continue_on_iteration_error,omitempty"`

	// MaxIterations overrides the workflow loop bound for this step.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// Merge modes.
const (
	MergeShallow   = "merge"
	MergeAppend    = "append"
	MergeCombine   = "combine"
	MergeMultiplex = "multiplex"
)

// MergeConfig configures a merge step.
type MergeConfig struct {
	// Mode is one of merge, append, combine, multiplex.
	Mode string `yaml:"mode" json:"mode"`

	// Inputs maps input names to expressions evaluated against the context.
	Inputs map[string]string `yaml:"inputs" json:"inputs"`

	// Transform is an optional jq program applied to the combined value.
	Transform string `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// SwitchCase is one route in a switch step: an exact Value match or a
// regex Pattern match, sending execution to Next.
type SwitchCase struct {
	// Value matches by equality against the evaluated switch value.
	Value interface{} `yaml:"value,omitempty" json:"value,omitempty"`

	// Pattern matches the stringified switch value against a regex.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Next is the step routed to on match.
	Next string `yaml:"next" json:"next"`
}

// SwitchConfig configures a switch step.
type SwitchConfig struct {
	// Value is the expression whose result is matched against cases.
	Value string `yaml:"value" json:"value"`

	// Cases are tried per the workflow's switch match order.
	Cases []SwitchCase `yaml:"cases" json:"cases"`

	// Default is the step routed to when no case matches.
	Default string `yaml:"default" json:"default"`
}

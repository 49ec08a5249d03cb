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

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/workflow/expression"
)

// defect is one validation finding, folded into the aggregated
// ValidationError at the end of Validate.
type defect struct {
	step  string
	field string
	msg   string
}

// Validate checks the definition's semantic invariants: unique ids,
// resolvable routing targets, acyclic step graph from every entrypoint,
// condition depth, and per-kind required config. All defects found in one
// pass are aggregated into a single ValidationError; a definition with any
// defect is never partially usable.
func (d *Definition) Validate() error {
	var defects []defect
	add := func(step, field, msg string, args ...interface{}) {
		defects = append(defects, defect{step: step, field: field, msg: fmt.Sprintf(msg, args...)})
	}

	if d.Name == "" {
		add("", "name", "workflow name is required")
	}
	if len(d.Steps) == 0 {
		add("", "steps", "workflow has no steps")
	}

	d.index = make(map[string]int, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		if step.ID == "" {
			add("", fmt.Sprintf("steps[%d].id", i), "step id is required")
			continue
		}
		if _, dup := d.index[step.ID]; dup {
			add(step.ID, "id", "duplicate step id")
			continue
		}
		d.index[step.ID] = i
	}

	if len(d.Entrypoints) == 0 {
		add("", "entrypoints", "workflow has no entrypoints")
	}
	for name, ep := range d.Entrypoints {
		if _, ok := d.index[ep.Step]; !ok {
			add("", "entrypoints."+name, "entrypoint step %q not found", ep.Step)
		}
	}

	for i := range d.Steps {
		d.validateStep(&d.Steps[i], add)
	}

	d.detectCycles(add)

	if len(defects) == 0 {
		return nil
	}

	msgs := make([]string, len(defects))
	for i, df := range defects {
		switch {
		case df.step != "" && df.field != "":
			msgs[i] = fmt.Sprintf("step %q %s: %s", df.step, df.field, df.msg)
		case df.step != "":
			msgs[i] = fmt.Sprintf("step %q: %s", df.step, df.msg)
		case df.field != "":
			msgs[i] = fmt.Sprintf("%s: %s", df.field, df.msg)
		default:
			msgs[i] = df.msg
		}
	}
	return &errors.ValidationError{
		Workflow: d.Name,
		Step:     defects[0].step,
		Field:    defects[0].field,
		Message:  strings.Join(msgs, "; "),
	}
}

type addDefect func(step, field, msg string, args ...interface{})

func (d *Definition) validateStep(step *Step, add addDefect) {
	if !knownKinds[step.Kind] {
		add(step.ID, "kind", "unknown step kind %q", step.Kind)
		return
	}

	d.checkTarget(step, "next", step.Next, add)
	d.checkTarget(step, "on_success", step.OnSuccess, add)
	d.checkTarget(step, "on_failure", step.OnFailure, add)

	// Step-level continue_on_error is authoritative over the workflow
	// preset, but a contradiction is a defect worth rejecting loudly
	// rather than silently picking one.
	if step.ContinueOnError != nil && !*step.ContinueOnError &&
		d.Execution != nil && d.Execution.ErrorPolicy == ErrorPolicyRouteAsFailure {
		add(step.ID, "continue_on_error",
			"continue_on_error: false contradicts execution.error_policy: route_as_failure; remove one")
	}

	switch step.Kind {
	case StepTool, StepSkill:
		var cfg ToolConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		if step.Kind == StepTool && cfg.Tool == "" {
			add(step.ID, "config.tool", "tool steps require a tool name")
		}
		if step.Kind == StepSkill && cfg.Skill == "" {
			add(step.ID, "config.skill", "skill steps require a skill name")
		}
		d.checkArgExpressions(step.ID, "config.args", cfg.Args, add)

	case StepAgent:
		var cfg AgentConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		if cfg.Agent == "" {
			add(step.ID, "config.agent", "agent steps require an agent name")
		}

	case StepWorkflow:
		var cfg SubworkflowConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		if cfg.Workflow == "" {
			add(step.ID, "config.workflow", "workflow steps require a workflow name")
		}

	case StepCondition:
		d.validateConditionStep(step, add)

	case StepWait:
		var cfg WaitConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		hasDuration := cfg.DurationSeconds > 0
		hasUntil := cfg.UntilExpression != ""
		if hasDuration == hasUntil {
			add(step.ID, "config", "wait steps require exactly one of duration_seconds and until_expression")
		}
		if hasUntil {
			d.checkExpression(step.ID, "config.until_expression", cfg.UntilExpression, add)
		}

	case StepLoop:
		var cfg LoopConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		if cfg.Items == "" {
			add(step.ID, "config.items", "loop steps require an items expression")
		} else {
			d.checkExpression(step.ID, "config.items", cfg.Items, add)
		}
		if cfg.ItemVariable == "" {
			add(step.ID, "config.item_variable", "loop steps require item_variable")
		}
		if cfg.BodyStep == "" {
			add(step.ID, "config.body_step", "loop steps require body_step")
		} else {
			d.checkTarget(step, "config.body_step", cfg.BodyStep, add)
		}
		if cfg.Mode != "" && cfg.Mode != LoopSequential && cfg.Mode != LoopParallel {
			add(step.ID, "config.mode", "loop mode must be %q or %q, got %q", LoopSequential, LoopParallel, cfg.Mode)
		}

	case StepMerge:
		var cfg MergeConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		switch cfg.Mode {
		case MergeShallow, MergeAppend, MergeCombine, MergeMultiplex:
		case "":
			add(step.ID, "config.mode", "merge steps require a mode")
		default:
			add(step.ID, "config.mode", "unknown merge mode %q", cfg.Mode)
		}
		if len(cfg.Inputs) == 0 {
			add(step.ID, "config.inputs", "merge steps require at least one input")
		}
		for name, expr := range cfg.Inputs {
			d.checkExpression(step.ID, "config.inputs."+name, expr, add)
		}
		if cfg.Transform != "" {
			if err := mergeTransformer.Validate(cfg.Transform); err != nil {
				add(step.ID, "config.transform", "%v", err)
			}
		}

	case StepSwitch:
		var cfg SwitchConfig
		if err := decodeConfig(step.Config, &cfg); err != nil {
			add(step.ID, "config", "invalid config: %v", err)
			return
		}
		if cfg.Value == "" {
			add(step.ID, "config.value", "switch steps require a value expression")
		} else {
			d.checkExpression(step.ID, "config.value", cfg.Value, add)
		}
		if len(cfg.Cases) == 0 {
			add(step.ID, "config.cases", "switch steps require at least one case")
		}
		// Default is optional: no match and no default ends the branch.
		d.checkTarget(step, "config.default", cfg.Default, add)
		for i, c := range cfg.Cases {
			field := fmt.Sprintf("config.cases[%d]", i)
			if c.Next == "" {
				add(step.ID, field+".next", "case requires a next target")
			} else {
				d.checkTarget(step, field+".next", c.Next, add)
			}
			if c.Value == nil && c.Pattern == "" {
				add(step.ID, field, "case requires a value or a pattern")
			}
			if c.Pattern != "" {
				if _, err := regexp.Compile(c.Pattern); err != nil {
					add(step.ID, field+".pattern", "invalid pattern: %v", err)
				}
			}
		}
	}
}

func (d *Definition) validateConditionStep(step *Step, add addDefect) {
	var cfg ConditionConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		add(step.ID, "config", "invalid config: %v", err)
		return
	}

	if cfg.legacy() && cfg.Group != nil {
		add(step.ID, "config", "legacy condition fields and group are mutually exclusive")
		return
	}

	if cfg.Group != nil {
		maxDepth := DefaultMaxConditionDepth
		if d.Execution != nil && d.Execution.MaxConditionDepth > 0 {
			maxDepth = d.Execution.MaxConditionDepth
		}
		if cfg.Group.depth() > maxDepth {
			add(step.ID, "config.group", "condition group nesting exceeds maximum depth %d", maxDepth)
		}
		d.validateGroup(step.ID, "config.group", cfg.Group, true, add)
		return
	}

	if !cfg.legacy() {
		add(step.ID, "config", "condition steps require a comparison or a group")
		return
	}
	d.validateLeaf(step.ID, "config", &Condition{
		Path: cfg.Path, Expression: cfg.Expression,
		Operator: cfg.Operator, Value: cfg.Value,
	}, add)
}

// validateGroup walks a condition tree. Empty groups are tolerated only at
// the top level, where an empty All group is vacuously true.
func (d *Definition) validateGroup(stepID, field string, g *ConditionGroup, top bool, add addDefect) {
	switch g.Operator {
	case GroupAll, GroupAny:
	case "":
		add(stepID, field+".operator", "condition group requires an operator (all or any)")
	default:
		add(stepID, field+".operator", "unknown group operator %q", g.Operator)
	}

	if g.empty() && !top {
		add(stepID, field, "nested condition group is empty")
	}

	for i := range g.Conditions {
		d.validateLeaf(stepID, fmt.Sprintf("%s.conditions[%d]", field, i), &g.Conditions[i], add)
	}
	for i := range g.Groups {
		d.validateGroup(stepID, fmt.Sprintf("%s.groups[%d]", field, i), &g.Groups[i], false, add)
	}
}

func (d *Definition) validateLeaf(stepID, field string, c *Condition, add addDefect) {
	if (c.Path == "") == (c.Expression == "") {
		add(stepID, field, "condition requires exactly one of path and expression")
	}
	if !knownOperators[c.Operator] {
		add(stepID, field+".operator", "unknown operator %q", c.Operator)
	}
	if c.Path != "" {
		d.checkExpression(stepID, field+".path", c.Path, add)
	}
	if c.Expression != "" {
		d.checkExpression(stepID, field+".expression", c.Expression, add)
	}
	if c.Operator == OpMatches {
		pattern, ok := c.Value.(string)
		if !ok {
			add(stepID, field+".value", "matches requires a string pattern value")
		} else if _, err := regexp.Compile(pattern); err != nil {
			add(stepID, field+".value", "invalid pattern: %v", err)
		}
	}
}

// checkArgExpressions parses every $-prefixed string in an args tree so
// malformed argument expressions fail at load, not mid-run.
func (d *Definition) checkArgExpressions(stepID, field string, args interface{}, add addDefect) {
	switch v := args.(type) {
	case string:
		if strings.HasPrefix(strings.TrimSpace(v), "$") {
			d.checkExpression(stepID, field, v, add)
		}
	case map[string]interface{}:
		for k, item := range v {
			d.checkArgExpressions(stepID, field+"."+k, item, add)
		}
	case []interface{}:
		for i, item := range v {
			d.checkArgExpressions(stepID, fmt.Sprintf("%s[%d]", field, i), item, add)
		}
	}
}

func (d *Definition) checkExpression(stepID, field, src string, add addDefect) {
	if _, err := expression.Parse(src); err != nil {
		add(stepID, field, "invalid expression: %v", err)
	}
}

func (d *Definition) checkTarget(step *Step, field, target string, add addDefect) {
	if target == "" {
		return
	}
	if _, ok := d.index[target]; !ok {
		add(step.ID, field, "target step %q not found", target)
	}
}

// detectCycles runs a DFS with an explicit recursion stack from every
// entrypoint. A step id already on the stack is a cycle, reported with the
// full chain (a -> b -> a).
func (d *Definition) detectCycles(add addDefect) {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(d.Steps))
	var chain []string

	var visit func(id string) bool
	visit = func(id string) bool {
		idx, ok := d.index[id]
		if !ok {
			return false // dangling targets are reported elsewhere
		}
		switch state[id] {
		case done:
			return false
		case inStack:
			start := 0
			for i, c := range chain {
				if c == id {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, chain[start:]...), id)
			add(id, "steps", "cycle detected: %s", strings.Join(cycle, " -> "))
			return true
		}
		state[id] = inStack
		chain = append(chain, id)
		for _, next := range d.successors(&d.Steps[idx]) {
			if visit(next) {
				// Keep reporting only the first cycle per branch.
				break
			}
		}
		chain = chain[:len(chain)-1]
		state[id] = done
		return false
	}

	for _, ep := range d.Entrypoints {
		visit(ep.Step)
	}
}

// successors lists every step id reachable from a step in one routing hop,
// including switch case routes and the loop body.
func (d *Definition) successors(step *Step) []string {
	var out []string
	push := func(id string) {
		if id != "" {
			out = append(out, id)
		}
	}
	push(step.Next)
	push(step.OnSuccess)
	push(step.OnFailure)

	switch step.Kind {
	case StepSwitch:
		var cfg SwitchConfig
		if err := decodeConfig(step.Config, &cfg); err == nil {
			for _, c := range cfg.Cases {
				push(c.Next)
			}
			push(cfg.Default)
		}
	case StepLoop:
		var cfg LoopConfig
		if err := decodeConfig(step.Config, &cfg); err == nil {
			push(cfg.BodyStep)
		}
	}
	return out
}

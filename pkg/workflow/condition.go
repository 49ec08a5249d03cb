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
	"log/slog"
	"regexp"
	"strings"

	"github.com/riffware/riff/pkg/workflow/expression"
)

// Condition operators supported by leaf conditions.
const (
	OpExists             = "exists"
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpGreaterThan        = "greater_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThan           = "less_than"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpContains           = "contains"
	OpMatches            = "matches"
	OpTruthy             = "truthy"
	OpFalsy              = "falsy"
)

var knownOperators = map[string]bool{
	OpExists: true, OpEquals: true, OpNotEquals: true,
	OpGreaterThan: true, OpGreaterThanOrEqual: true,
	OpLessThan: true, OpLessThanOrEqual: true,
	OpContains: true, OpMatches: true, OpTruthy: true, OpFalsy: true,
}

// Condition is a single comparison: resolve an operand from the context by
// path or expression, then apply an operator against a fixed value.
type Condition struct {
	// Path resolves the operand with a $-path. Exactly one of Path and
	// Expression is set.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Expression resolves the operand with a full expression.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`

	// Operator selects the comparison.
	Operator string `yaml:"operator" json:"operator"`

	// Value is the right-hand side for binary operators.
	Value interface{} `yaml:"value,omitempty" json:"value,omitempty"`
}

// Group combinators.
const (
	GroupAll = "all"
	GroupAny = "any"
)

// ConditionGroup combines leaf conditions and nested groups under All or
// Any semantics.
type ConditionGroup struct {
	// Operator is "all" (every child true) or "any" (at least one true).
	Operator string `yaml:"operator" json:"operator"`

	// Conditions are the leaf comparisons, evaluated before nested groups.
	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`

	// Groups are nested subgroups.
	Groups []ConditionGroup `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// depth returns the nesting depth of the group tree: a group with no
// subgroups has depth 1.
func (g *ConditionGroup) depth() int {
	deepest := 0
	for i := range g.Groups {
		if d := g.Groups[i].depth(); d > deepest {
			deepest = d
		}
	}
	return 1 + deepest
}

// empty reports a group with no conditions and no subgroups.
func (g *ConditionGroup) empty() bool {
	return len(g.Conditions) == 0 && len(g.Groups) == 0
}

// conditionEngine evaluates condition groups against an execution context.
// A leaf whose evaluation errors is logged and treated as false, so one
// malformed condition degrades a branch instead of aborting the run.
type conditionEngine struct {
	eval   *expression.Evaluator
	logger *slog.Logger
}

// EvaluateGroup evaluates a condition group tree. Children are all
// evaluated (no short-circuit) so degraded leaves are all logged; the
// combinator result is standard boolean algebra over the child results.
// An empty top-level All group is vacuously true.
func (c *conditionEngine) EvaluateGroup(group *ConditionGroup, ctx expression.Context) bool {
	results := make([]bool, 0, len(group.Conditions)+len(group.Groups))
	for i := range group.Conditions {
		results = append(results, c.evaluateLeaf(&group.Conditions[i], ctx))
	}
	for i := range group.Groups {
		results = append(results, c.EvaluateGroup(&group.Groups[i], ctx))
	}

	if group.Operator == GroupAny {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	// All, including the vacuous empty case.
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// evaluateLeaf resolves the operand and applies the operator. Errors are
// logged and yield false.
func (c *conditionEngine) evaluateLeaf(cond *Condition, ctx expression.Context) bool {
	operand, err := c.resolveOperand(cond, ctx)
	if err != nil {
		c.logger.Warn("condition operand failed to evaluate, treating as false",
			"path", cond.Path, "expression", cond.Expression, "error", err.Error())
		return false
	}
	result, err := applyOperator(cond.Operator, operand, cond.Value)
	if err != nil {
		c.logger.Warn("condition comparison failed, treating as false",
			"operator", cond.Operator, "error", err.Error())
		return false
	}
	return result
}

func (c *conditionEngine) resolveOperand(cond *Condition, ctx expression.Context) (interface{}, error) {
	if cond.Expression != "" {
		return c.eval.Evaluate(cond.Expression, ctx)
	}
	return c.eval.Evaluate(cond.Path, ctx)
}

// applyOperator implements the leaf comparison semantics. Null-aware:
// null equals only null, and any ordering or containment against null is
// false rather than an error.
func applyOperator(op string, operand, value interface{}) (bool, error) {
	switch op {
	case OpExists:
		return operand != nil, nil
	case OpTruthy:
		return expression.Truthy(operand), nil
	case OpFalsy:
		return !expression.Truthy(operand), nil
	case OpEquals:
		return expression.Equal(operand, value), nil
	case OpNotEquals:
		return !expression.Equal(operand, value), nil
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		if operand == nil || value == nil {
			return false, nil
		}
		cmp, err := expression.Compare(operand, value)
		if err != nil {
			return false, err
		}
		switch op {
		case OpGreaterThan:
			return cmp > 0, nil
		case OpGreaterThanOrEqual:
			return cmp >= 0, nil
		case OpLessThan:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case OpContains:
		return contains(operand, value)
	case OpMatches:
		if operand == nil {
			return false, nil
		}
		pattern, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("matches pattern must be a string, got %s", expression.KindOf(value))
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid matches pattern: %w", err)
		}
		return re.MatchString(expression.Stringify(operand)), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", op)
	}
}

// contains is substring match for string operands and element membership
// for array operands.
func contains(operand, value interface{}) (bool, error) {
	switch o := operand.(type) {
	case string:
		s, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string requires a string value, got %s", expression.KindOf(value))
		}
		return strings.Contains(o, s), nil
	case []interface{}:
		for _, item := range o {
			if expression.Equal(item, value) {
				return true, nil
			}
		}
		return false, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("contains requires a string or array operand, got %s", expression.KindOf(operand))
	}
}

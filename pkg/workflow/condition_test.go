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
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffware/riff/pkg/workflow/expression"
)

func newConditionEngine(logger *slog.Logger) *conditionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &conditionEngine{
		eval:   expression.New(expression.WithLogger(logger)),
		logger: logger,
	}
}

func TestApplyOperator(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		operand interface{}
		value   interface{}
		want    bool
	}{
		{"exists non-null", OpExists, "x", nil, true},
		{"exists null", OpExists, nil, nil, false},
		{"equals strings", OpEquals, "a", "a", true},
		{"equals cross-kind", OpEquals, "1", 1.0, false},
		{"equals null only null", OpEquals, nil, nil, true},
		{"not_equals", OpNotEquals, 1.0, 2.0, true},
		{"greater_than", OpGreaterThan, 3.0, 2.0, true},
		{"greater_than equal values", OpGreaterThan, 2.0, 2.0, false},
		{"greater_than_or_equal", OpGreaterThanOrEqual, 2.0, 2.0, true},
		{"less_than strings", OpLessThan, "apple", "banana", true},
		{"less_than_or_equal", OpLessThanOrEqual, 5.0, 4.0, false},
		{"ordering against null is false", OpGreaterThan, nil, 1.0, false},
		{"ordering null rhs is false", OpLessThan, 1.0, nil, false},
		{"contains substring", OpContains, "workflow", "flow", true},
		{"contains missing substring", OpContains, "workflow", "xyz", false},
		{"contains array membership", OpContains, []interface{}{1.0, 2.0}, 2.0, true},
		{"contains array miss", OpContains, []interface{}{1.0}, 3.0, false},
		{"contains null operand", OpContains, nil, "x", false},
		{"matches", OpMatches, "build-123", `^build-\d+$`, true},
		{"matches null operand", OpMatches, nil, ".*", false},
		{"matches numbers via string form", OpMatches, 42.0, `^42$`, true},
		{"truthy string", OpTruthy, "x", nil, true},
		{"truthy empty array", OpTruthy, []interface{}{}, nil, false},
		{"falsy zero", OpFalsy, 0.0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyOperator(tt.op, tt.operand, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyOperator_Errors(t *testing.T) {
	_, err := applyOperator(OpGreaterThan, []interface{}{}, []interface{}{})
	assert.Error(t, err)

	_, err = applyOperator(OpContains, 1.0, "x")
	assert.Error(t, err)

	_, err = applyOperator(OpMatches, "x", 5.0)
	assert.Error(t, err)

	_, err = applyOperator("resembles", "a", "b")
	assert.Error(t, err)
}

func TestEvaluateGroup_AllAny(t *testing.T) {
	ctx := expression.Context{
		"workflow": map[string]interface{}{"count": 5.0, "status": "open"},
	}
	engine := newConditionEngine(nil)

	countOK := Condition{Path: "$workflow.count", Operator: OpGreaterThan, Value: 3.0}
	countBad := Condition{Path: "$workflow.count", Operator: OpGreaterThan, Value: 10.0}
	statusOK := Condition{Path: "$workflow.status", Operator: OpEquals, Value: "open"}

	tests := []struct {
		name  string
		group ConditionGroup
		want  bool
	}{
		{"all true", ConditionGroup{Operator: GroupAll, Conditions: []Condition{countOK, statusOK}}, true},
		{"all with one false", ConditionGroup{Operator: GroupAll, Conditions: []Condition{countOK, countBad}}, false},
		{"any with one true", ConditionGroup{Operator: GroupAny, Conditions: []Condition{countBad, statusOK}}, true},
		{"any all false", ConditionGroup{Operator: GroupAny, Conditions: []Condition{countBad}}, false},
		{"empty all vacuously true", ConditionGroup{Operator: GroupAll}, true},
		{"empty any false", ConditionGroup{Operator: GroupAny}, false},
		{
			"nested group folds into parent",
			ConditionGroup{
				Operator:   GroupAll,
				Conditions: []Condition{statusOK},
				Groups: []ConditionGroup{
					{Operator: GroupAny, Conditions: []Condition{countBad, countOK}},
				},
			},
			true,
		},
		{
			"nested group can fail parent",
			ConditionGroup{
				Operator:   GroupAll,
				Conditions: []Condition{statusOK},
				Groups: []ConditionGroup{
					{Operator: GroupAll, Conditions: []Condition{countBad}},
				},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.EvaluateGroup(&tt.group, ctx))
		})
	}
}

func TestEvaluateLeaf_DegradedLeafIsFalseAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	engine := newConditionEngine(logger)

	ctx := expression.Context{"workflow": map[string]interface{}{"items": []interface{}{1.0}}}

	// Ordering an array is a comparison error, not a crash: the leaf
	// degrades to false and the warning names the operator.
	leaf := Condition{Path: "$workflow.items", Operator: OpGreaterThan, Value: 1.0}
	assert.False(t, engine.evaluateLeaf(&leaf, ctx))
	assert.Contains(t, buf.String(), "treating as false")
}

func TestEvaluateLeaf_ExpressionOperand(t *testing.T) {
	engine := newConditionEngine(nil)
	ctx := expression.Context{"workflow": map[string]interface{}{"nums": []interface{}{1.0, 2.0, 3.0}}}

	leaf := Condition{Expression: "$workflow.nums.sum()", Operator: OpEquals, Value: 6.0}
	assert.True(t, engine.evaluateLeaf(&leaf, ctx))
}

func TestConditionGroupDepth(t *testing.T) {
	flat := ConditionGroup{Operator: GroupAll, Conditions: []Condition{{Path: "$a", Operator: OpExists}}}
	assert.Equal(t, 1, flat.depth())

	nested := ConditionGroup{Operator: GroupAll, Groups: []ConditionGroup{
		{Operator: GroupAny, Groups: []ConditionGroup{flat}},
	}}
	assert.Equal(t, 3, nested.depth())
}

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

	"github.com/riffware/riff/pkg/errors"
)

// executeCondition evaluates the step's condition and routes the result:
// true takes on_success, false takes on_failure. The boolean is published
// as {"result": <bool>} so later steps can read it.
func (e *Executor) executeCondition(rs *run, step *Step) stepOutcome {
	var cfg ConditionConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return stepOutcome{state: StateFailed, err: &errors.ConfigError{Key: "config", Reason: err.Error()}}
	}

	var result bool
	var reason string
	if cfg.Group != nil {
		result = rs.cond.EvaluateGroup(cfg.Group, rs.context)
		reason = fmt.Sprintf("group(%s) = %t", cfg.Group.Operator, result)
	} else {
		// Legacy single comparison: an inline leaf, evaluated through the
		// same degraded-leaf semantics as grouped conditions.
		leaf := Condition{Path: cfg.Path, Expression: cfg.Expression, Operator: cfg.Operator, Value: cfg.Value}
		result = rs.cond.evaluateLeaf(&leaf, rs.context)
		reason = fmt.Sprintf("%s = %t", cfg.Operator, result)
	}

	rs.traces = append(rs.traces, RoutingTrace{
		StepID: step.ID,
		Kind:   StepCondition,
		Branch: conditionBranch(step, result),
		Reason: reason,
	})

	return stepOutcome{
		state:        StateSucceeded,
		output:       map[string]interface{}{"result": result},
		failedBranch: !result,
	}
}

func conditionBranch(step *Step, result bool) string {
	if result {
		if step.OnSuccess != "" {
			return step.OnSuccess
		}
		return step.Next
	}
	if step.OnFailure != "" {
		return step.OnFailure
	}
	return step.Next
}

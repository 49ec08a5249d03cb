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

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/workflow/expression"
)

// executeSwitch evaluates the switch value and picks a route. Match
// priority is global across all cases, not per case position: with the
// default exact_first order, every exact case is tried before any pattern
// case; pattern_first inverts that. First case in declaration order wins
// within a phase. No match routes to default.
func (e *Executor) executeSwitch(rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg SwitchConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	value, err := rs.eval.Evaluate(cfg.Value, rs.context)
	if err != nil {
		return fail(err)
	}

	order := MatchExactFirst
	if rs.def.Execution != nil && rs.def.Execution.SwitchMatchOrder != "" {
		order = rs.def.Execution.SwitchMatchOrder
	}

	phases := [2]func(*SwitchCase, interface{}) (bool, error){matchExact, matchPattern}
	if order == MatchPatternFirst {
		phases[0], phases[1] = matchPattern, matchExact
	}

	route, reason := cfg.Default, "default"
	for _, phase := range phases {
		matched := false
		for i := range cfg.Cases {
			ok, err := phase(&cfg.Cases[i], value)
			if err != nil {
				return fail(err)
			}
			if ok {
				route = cfg.Cases[i].Next
				reason = fmt.Sprintf("case[%d]", i)
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	rs.traces = append(rs.traces, RoutingTrace{
		StepID: step.ID,
		Kind:   StepSwitch,
		Branch: route,
		Reason: reason,
	})
	e.emit(rs, EventSwitchRouted, step.ID, map[string]interface{}{
		"branch": route, "reason": reason,
	})

	return stepOutcome{
		state:    StateSucceeded,
		output:   map[string]interface{}{"value": value, "branch": route},
		route:    route,
		hasRoute: true,
	}
}

func matchExact(c *SwitchCase, value interface{}) (bool, error) {
	if c.Value == nil {
		return false, nil
	}
	return expression.Equal(c.Value, value), nil
}

func matchPattern(c *SwitchCase, value interface{}) (bool, error) {
	if c.Pattern == "" {
		return false, nil
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return false, &errors.ConfigError{Key: "pattern", Reason: err.Error()}
	}
	return re.MatchString(expression.Stringify(value)), nil
}

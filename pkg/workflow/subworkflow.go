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
	"context"
	"fmt"

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/workflow/expression"
)

// executeSubworkflow runs another workflow as a nested run sharing this
// executor's collaborators. Two structural guards apply independently of
// the load-time cycle check (which only covers intra-workflow graphs):
// a recursion depth limit, and a mutual-recursion check against the active
// workflow call stack.
func (e *Executor) executeSubworkflow(ctx context.Context, rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg SubworkflowConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	maxDepth := DefaultMaxRecursionDepth
	if rs.def.Execution != nil && rs.def.Execution.MaxRecursionDepth > 0 {
		maxDepth = rs.def.Execution.MaxRecursionDepth
	}
	if rs.depth+1 > maxDepth {
		return fail(&errors.RecursionError{
			Workflow: cfg.Workflow,
			Depth:    rs.depth + 1,
			Chain:    append([]string{}, rs.stack...),
		})
	}

	for _, active := range rs.stack {
		if active == cfg.Workflow {
			return fail(&errors.RecursionError{
				Workflow: cfg.Workflow,
				Depth:    rs.depth,
				Mutual:   true,
				Chain:    append(append([]string{}, rs.stack...), cfg.Workflow),
			})
		}
	}

	if e.resolver == nil {
		return fail(&errors.ConfigError{Key: "resolver", Reason: "no workflow resolver configured"})
	}
	nestedDef, err := e.resolver.Resolve(ctx, cfg.Workflow)
	if err != nil {
		return fail(fmt.Errorf("resolving workflow %q: %w", cfg.Workflow, err))
	}

	resolved, err := rs.resolveArgs(cfg.Inputs)
	if err != nil {
		return fail(err)
	}
	inputs, _ := resolved.(map[string]interface{})

	nested := &run{
		def:     nestedDef,
		runID:   rs.runID,
		context: expression.Context{"workflow": toValue(inputs)},
		eval:    rs.eval,
		cond:    rs.cond,
		depth:   rs.depth + 1,
		stack:   append(append([]string{}, rs.stack...), cfg.Workflow),
		logger:  rs.logger.With("workflow", nestedDef.Name),
	}

	result := e.execute(ctx, nested, cfg.Entrypoint)
	rs.traces = append(rs.traces, result.Traces...)

	switch result.Outcome {
	case OutcomeCancelled:
		return fail(ctx.Err())
	case OutcomeFailed:
		return fail(fmt.Errorf("nested workflow %q failed at step %q: %w",
			cfg.Workflow, result.FailedStep, result.Err))
	}
	return stepOutcome{state: StateSucceeded, output: map[string]interface{}(result.Context)}
}

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
	"sort"

	"github.com/riffware/riff/internal/jq"
	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/workflow/expression"
)

// mergeTransformer applies optional jq transforms to merge outputs.
var mergeTransformer = jq.NewExecutor(0, 0)

// executeMerge evaluates each named input expression and combines the
// results per the configured mode. Input names are processed in sorted
// order so later-keys-win merging and append concatenation are
// deterministic.
func (e *Executor) executeMerge(ctx context.Context, rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg MergeConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	names := make([]string, 0, len(cfg.Inputs))
	for name := range cfg.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]interface{}, len(names))
	for _, name := range names {
		v, err := rs.eval.Evaluate(cfg.Inputs[name], rs.context)
		if err != nil {
			return fail(fmt.Errorf("evaluating merge input %q: %w", name, err))
		}
		values[name] = v
	}

	var combined interface{}
	switch cfg.Mode {
	case MergeShallow:
		out := make(map[string]interface{})
		for _, name := range names {
			obj, ok := values[name].(map[string]interface{})
			if !ok {
				return fail(&errors.ValidationError{
					Workflow: rs.def.Name, Step: step.ID, Field: "config.inputs." + name,
					Message: fmt.Sprintf("merge mode requires object inputs, got %s", expression.KindOf(values[name])),
				})
			}
			for k, v := range obj {
				out[k] = v
			}
		}
		combined = out

	case MergeAppend:
		var out []interface{}
		for _, name := range names {
			arr, ok := values[name].([]interface{})
			if !ok {
				return fail(&errors.ValidationError{
					Workflow: rs.def.Name, Step: step.ID, Field: "config.inputs." + name,
					Message: fmt.Sprintf("append mode requires array inputs, got %s", expression.KindOf(values[name])),
				})
			}
			out = append(out, arr...)
		}
		if out == nil {
			out = []interface{}{}
		}
		combined = out

	case MergeCombine:
		out := make(map[string]interface{}, len(names))
		for _, name := range names {
			out[name] = values[name]
		}
		combined = out

	case MergeMultiplex:
		// Pass evaluated inputs through unchanged for fan-out consumers.
		out := make(map[string]interface{}, len(names))
		for _, name := range names {
			out[name] = values[name]
		}
		combined = out

	default:
		return fail(&errors.ConfigError{Key: "mode", Reason: fmt.Sprintf("unknown merge mode %q", cfg.Mode)})
	}

	if cfg.Transform != "" {
		transformed, err := mergeTransformer.Execute(ctx, cfg.Transform, combined)
		if err != nil {
			return fail(fmt.Errorf("merge transform: %w", err))
		}
		combined = transformed
	}

	return stepOutcome{state: StateSucceeded, output: combined}
}

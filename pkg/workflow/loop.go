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
	"sync"
	"sync/atomic"

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/workflow/expression"
)

// executeLoop iterates the body step over an evaluated array. Sequential
// mode runs one iteration at a time; parallel mode runs batches bounded by
// a semaphore. Results are assembled in input index order regardless of
// completion order, so replays are reproducible.
//
// Each iteration executes against a private copy of the context with the
// loop namespace bound; the outer context never sees loop.* and iterations
// never see each other's writes.
func (e *Executor) executeLoop(ctx context.Context, rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg LoopConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	itemsVal, err := rs.eval.Evaluate(cfg.Items, rs.context)
	if err != nil {
		return fail(fmt.Errorf("evaluating loop items: %w", err))
	}
	items, ok := itemsVal.([]interface{})
	if !ok {
		if itemsVal == nil {
			items = nil
		} else {
			return fail(&errors.ConfigError{
				Key:    "items",
				Reason: fmt.Sprintf("loop items must evaluate to an array, got %s", expression.KindOf(itemsVal)),
			})
		}
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxLoopIterations
		if rs.def.Execution != nil && rs.def.Execution.MaxLoopIterations > 0 {
			maxIterations = rs.def.Execution.MaxLoopIterations
		}
	}
	if len(items) > maxIterations {
		return fail(&errors.ConfigError{
			Key:    "items",
			Reason: fmt.Sprintf("loop has %d iterations, exceeding the maximum %d", len(items), maxIterations),
		})
	}

	body := rs.def.Step(cfg.BodyStep)
	if body == nil {
		return fail(&errors.ConfigError{Key: "body_step", Reason: fmt.Sprintf("body step %q not found", cfg.BodyStep)})
	}

	// Empty input produces empty results without touching the body.
	if len(items) == 0 {
		return stepOutcome{state: StateSucceeded, output: map[string]interface{}{
			"results": []interface{}{}, "count": float64(0),
		}}
	}

	var results []interface{}
	if cfg.Mode == LoopParallel {
		results, err = e.runLoopParallel(ctx, rs, step, &cfg, body, items)
	} else {
		results, err = e.runLoopSequential(ctx, rs, step, &cfg, body, items)
	}
	if err != nil {
		return fail(err)
	}

	return stepOutcome{state: StateSucceeded, output: map[string]interface{}{
		"results": results, "count": float64(len(results)),
	}}
}

// runIteration executes the body step against a private context copy with
// the loop namespace bound, returning the body's published output.
func (e *Executor) runIteration(ctx context.Context, rs *run, cfg *LoopConfig, body *Step, index int, item interface{}) (interface{}, error) {
	iterContext := expression.DeepCopy(map[string]interface{}(rs.context)).(map[string]interface{})
	loopNS := map[string]interface{}{cfg.ItemVariable: item}
	if cfg.IndexVariable != "" {
		loopNS[cfg.IndexVariable] = float64(index)
	}
	iterContext["loop"] = loopNS

	iterRun := &run{
		def:     rs.def,
		runID:   rs.runID,
		context: expression.Context(iterContext),
		eval:    rs.eval,
		cond:    rs.cond,
		depth:   rs.depth,
		stack:   rs.stack,
		logger:  rs.logger.With("loop_index", index),
	}

	outcome := e.executeStep(ctx, iterRun, body)
	if outcome.err != nil {
		return nil, outcome.err
	}
	iterRun.publish(body, outcome.output)
	return iterRun.context[body.ID], nil
}

func (e *Executor) runLoopSequential(ctx context.Context, rs *run, step *Step, cfg *LoopConfig, body *Step, items []interface{}) ([]interface{}, error) {
	results := make([]interface{}, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, err := e.runIteration(ctx, rs, cfg, body, i, item)
		if err != nil {
			if isCancellation(ctx, err) || !cfg.ContinueOnIterationError {
				return nil, fmt.Errorf("loop iteration %d: %w", i, err)
			}
			value = iterationErrorEntry(err)
		}
		results = append(results, value)
		e.emit(rs, EventLoopProgress, step.ID, map[string]interface{}{
			"completed": i + 1, "total": len(items),
		})
	}
	return results, nil
}

// runLoopParallel dispatches iterations as concurrent tasks bounded by a
// semaphore sized to batch_size. Cancellation stops dispatching new
// iterations; started ones observe cancellation themselves.
func (e *Executor) runLoopParallel(ctx context.Context, rs *run, step *Step, cfg *LoopConfig, body *Step, items []interface{}) ([]interface{}, error) {
	batch := cfg.BatchSize
	if batch <= 0 || batch > len(items) {
		batch = len(items)
	}

	results := make([]interface{}, len(items))
	iterErrs := make([]error, len(items))
	sem := make(chan struct{}, batch)
	var wg sync.WaitGroup
	var completed atomic.Int64

	for i, item := range items {
		if ctx.Err() != nil {
			iterErrs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(index int, item interface{}) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				iterErrs[index] = err
				return
			}
			value, err := e.runIteration(ctx, rs, cfg, body, index, item)
			if err != nil {
				iterErrs[index] = err
				return
			}
			results[index] = value
			e.emit(rs, EventLoopProgress, step.ID, map[string]interface{}{
				"completed": completed.Add(1), "total": len(items),
			})
		}(i, item)
	}
	wg.Wait()

	for i, err := range iterErrs {
		if err == nil {
			continue
		}
		if isCancellation(ctx, err) || !cfg.ContinueOnIterationError {
			return nil, fmt.Errorf("loop iteration %d: %w", i, err)
		}
		results[i] = iterationErrorEntry(err)
	}
	return results, nil
}

func iterationErrorEntry(err error) map[string]interface{} {
	return map[string]interface{}{
		"_error":      err.Error(),
		"_error_kind": errors.Kind(err),
	}
}

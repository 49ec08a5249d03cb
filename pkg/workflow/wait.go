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
	"time"

	"github.com/riffware/riff/pkg/errors"
)

// executeWait sleeps for a fixed duration or polls an expression until it
// turns truthy. Cancellation is observed at every sleep and poll interval,
// so a cancelled run terminates within one check interval.
func (e *Executor) executeWait(ctx context.Context, rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg WaitConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	if cfg.UntilExpression == "" {
		if err := sleepCtx(ctx, secondsToDuration(cfg.DurationSeconds)); err != nil {
			return fail(err)
		}
		return stepOutcome{state: StateSucceeded, output: map[string]interface{}{
			"waited_seconds": cfg.DurationSeconds,
		}}
	}

	interval := secondsToDuration(cfg.CheckIntervalSeconds)
	if interval <= 0 {
		interval = time.Second
	}

	var deadline <-chan time.Time
	if cfg.TimeoutSeconds > 0 {
		timer := time.NewTimer(secondsToDuration(cfg.TimeoutSeconds))
		defer timer.Stop()
		deadline = timer.C
	}

	started := time.Now()
	for {
		ok, err := rs.eval.EvaluateBool(cfg.UntilExpression, rs.context)
		if err != nil {
			return fail(err)
		}
		if ok {
			return stepOutcome{state: StateSucceeded, output: map[string]interface{}{
				"waited_seconds": time.Since(started).Seconds(),
			}}
		}

		ticker := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			ticker.Stop()
			return fail(ctx.Err())
		case <-deadline:
			ticker.Stop()
			if cfg.TimeoutSucceeds {
				return stepOutcome{state: StateSucceeded}
			}
			return fail(&errors.TimeoutError{
				Operation: "wait poll",
				Duration:  secondsToDuration(cfg.TimeoutSeconds),
			})
		case <-ticker.C:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

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

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/observability"
	"github.com/riffware/riff/pkg/permissions"
)

// authorize runs the permission gateway for one effectful invocation.
// Every tool call, skill call and effectful agent call passes through here
// exactly once per attempt. An Ask parks this branch until resolved; other
// branches of the run are unaffected.
func (e *Executor) authorize(ctx context.Context, rs *run, step *Step, resource string, fallback permissions.Decision) error {
	if e.mediator == nil {
		return nil
	}

	decision, scope, err := e.mediator.Check(ctx, e.session, resource, fallback)
	if err != nil {
		return err
	}
	switch decision {
	case permissions.Allow:
		return nil
	case permissions.Deny:
		return &errors.PermissionDeniedError{Resource: resource, Scope: string(scope)}
	}

	// Ask: park until an external actor resolves.
	e.emit(rs, EventPermissionAsked, step.ID, map[string]interface{}{"resource": resource})
	rs.logger.Info("step parked on permission ask", "step", step.ID, "resource", resource)

	outcome, err := e.mediator.RequestAsk(ctx, e.session, resource)
	if err != nil {
		return err
	}
	observability.RecordPermissionAsk(rs.def.Name, string(outcome))
	if outcome == permissions.OutcomeDeny {
		return &errors.PermissionDeniedError{Resource: resource, Scope: string(permissions.ScopeSession)}
	}
	return nil
}

// executeTool runs a tool or skill step: authorize, resolve args, invoke.
func (e *Executor) executeTool(ctx context.Context, rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg ToolConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	resource := cfg.Tool
	if step.Kind == StepSkill {
		resource = "skill." + cfg.Skill
	}

	if err := e.authorize(ctx, rs, step, resource, permissions.Decision(cfg.PermissionMode)); err != nil {
		return fail(err)
	}

	if e.tools == nil {
		return fail(&errors.ConfigError{Key: "tools", Reason: "no tool invoker configured"})
	}

	resolved, err := rs.resolveArgs(cfg.Args)
	if err != nil {
		return fail(err)
	}
	args, _ := resolved.(map[string]interface{})

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	output, err := e.tools.Invoke(ctx, resource, args)
	if err != nil {
		return fail(err)
	}
	return stepOutcome{state: StateSucceeded, output: output}
}

// executeAgent runs one agent turn. Agent calls flagged effectful pass the
// permission gateway like tools.
func (e *Executor) executeAgent(ctx context.Context, rs *run, step *Step) stepOutcome {
	fail := func(err error) stepOutcome { return stepOutcome{state: StateFailed, err: err} }

	var cfg AgentConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return fail(&errors.ConfigError{Key: "config", Reason: err.Error()})
	}

	if cfg.Effectful {
		if err := e.authorize(ctx, rs, step, "agent."+cfg.Agent, ""); err != nil {
			return fail(err)
		}
	}

	if e.agents == nil {
		return fail(&errors.ConfigError{Key: "agents", Reason: "no agent runner configured"})
	}

	message, err := rs.resolveArgs(cfg.Message)
	if err != nil {
		return fail(err)
	}

	if e.limiter != nil && cfg.Effectful {
		if err := e.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	result, err := e.agents.RunTurn(ctx, cfg.Agent, AgentTurnRequest{
		Message:      message,
		ToolsAllowed: cfg.ToolsAllowed,
		BudgetTokens: cfg.BudgetTokens,
	})
	if err != nil {
		return fail(err)
	}
	return stepOutcome{state: StateSucceeded, output: result.Output}
}

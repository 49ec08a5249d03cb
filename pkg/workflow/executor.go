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
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/observability"
	"github.com/riffware/riff/pkg/permissions"
	"github.com/riffware/riff/pkg/workflow/expression"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	// OutcomeSucceeded means the run reached the end of a branch.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means a step failed terminally and aborted the run.
	OutcomeFailed Outcome = "failed"

	// OutcomeCancelled means the run observed cancellation. Distinct from
	// Failed: nothing was wrong with the workflow.
	OutcomeCancelled Outcome = "cancelled"
)

// StepState is the per-invocation state machine. Transitions only move
// forward: Pending -> Running -> one of the terminal states.
type StepState string

const (
	StatePending   StepState = "pending"
	StateRunning   StepState = "running"
	StateSucceeded StepState = "succeeded"
	StateFailed    StepState = "failed"
	StateSkipped   StepState = "skipped"
)

// RunResult is what a finished run returns. Partial progress (the context
// accumulated before a failure) is always preserved for diagnosis.
type RunResult struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Outcome is the terminal classification.
	Outcome Outcome `json:"outcome"`

	// Context is the final execution context: step id to output.
	Context map[string]interface{} `json:"context"`

	// FailedStep is the step at which a Failed run stopped.
	FailedStep string `json:"failed_step,omitempty"`

	// ErrorKind classifies the terminal error for Failed runs.
	ErrorKind string `json:"error_kind,omitempty"`

	// Err is the terminal error for Failed runs.
	Err error `json:"-"`

	// Traces records condition/switch routing decisions.
	Traces []RoutingTrace `json:"traces,omitempty"`
}

// Executor drives workflow runs. One Executor may serve many concurrent
// runs; all per-run state lives in the run, not the Executor.
type Executor struct {
	tools    ToolInvoker
	agents   AgentRunner
	resolver WorkflowResolver
	mediator *permissions.Mediator
	sink     EventSink
	logger   *slog.Logger
	limiter  *rate.Limiter
	session  string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTools sets the tool invoker used by tool and skill steps.
func WithTools(t ToolInvoker) ExecutorOption {
	return func(e *Executor) { e.tools = t }
}

// WithAgents sets the agent runner used by agent steps.
func WithAgents(a AgentRunner) ExecutorOption {
	return func(e *Executor) { e.agents = a }
}

// WithResolver sets the resolver for nested workflow steps.
func WithResolver(r WorkflowResolver) ExecutorOption {
	return func(e *Executor) { e.resolver = r }
}

// WithMediator routes effectful invocations through a permission mediator.
// Without one, everything is allowed.
func WithMediator(m *permissions.Mediator) ExecutorOption {
	return func(e *Executor) { e.mediator = m }
}

// WithEventSink sets the lifecycle event sink.
func WithEventSink(s EventSink) ExecutorOption {
	return func(e *Executor) { e.sink = s }
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithRateLimit bounds effectful invocations to rps with the given burst.
func WithRateLimit(rps float64, burst int) ExecutorOption {
	return func(e *Executor) { e.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithSession sets the permission session id for this executor's runs.
func WithSession(id string) ExecutorOption {
	return func(e *Executor) { e.session = id }
}

// NewExecutor creates an executor. Collaborators a workflow never uses may
// be left unset; a step that needs a missing one fails with a ConfigError.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the per-run mutable state: the context, routing traces and
// the nested-workflow call stack. Owned by exactly one run.
type run struct {
	def     *Definition
	runID   string
	context expression.Context
	eval    *expression.Evaluator
	cond    *conditionEngine
	traces  []RoutingTrace
	depth   int
	stack   []string // active workflow names, outermost first
	logger  *slog.Logger
}

// Run executes a workflow from the named entrypoint ("" means "default")
// with the given initial inputs, available to expressions as $workflow.*.
// The returned error is non-nil only for invocation mistakes (nil
// definition); execution failures are reported in the RunResult.
func (e *Executor) Run(ctx context.Context, def *Definition, entrypoint string, inputs map[string]interface{}) (*RunResult, error) {
	if def == nil {
		return nil, &errors.ConfigError{Key: "definition", Reason: "no workflow definition provided"}
	}

	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID, "workflow", def.Name)

	mode := expression.Lenient
	if def.Execution != nil && def.Execution.StrictPaths {
		mode = expression.Strict
	}
	eval := expression.New(expression.WithMode(mode), expression.WithLogger(logger))

	rs := &run{
		def:     def,
		runID:   runID,
		context: expression.Context{"workflow": toValue(inputs)},
		eval:    eval,
		cond:    &conditionEngine{eval: eval, logger: logger},
		stack:   []string{def.Name},
		logger:  logger,
	}

	result := e.execute(ctx, rs, entrypoint)
	observability.RecordRunFinished(def.Name, string(result.Outcome))
	return result, nil
}

// execute walks the step graph from an entrypoint to a terminal outcome.
func (e *Executor) execute(ctx context.Context, rs *run, entrypoint string) *RunResult {
	finish := func(outcome Outcome, failedStep string, err error) *RunResult {
		res := &RunResult{
			RunID:   rs.runID,
			Outcome: outcome,
			Context: rs.context,
			Traces:  rs.traces,
		}
		if err != nil {
			res.FailedStep = failedStep
			res.ErrorKind = errors.Kind(err)
			res.Err = err
		}
		return res
	}

	step, err := rs.def.EntrypointStep(entrypoint)
	if err != nil {
		return finish(OutcomeFailed, "", err)
	}

	for step != nil {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, step.ID, nil)
		}

		outcome := e.executeStep(ctx, rs, step)

		if outcome.err != nil {
			if isCancellation(ctx, outcome.err) {
				rs.logger.Info("run cancelled", "step", step.ID)
				return finish(OutcomeCancelled, step.ID, nil)
			}
			if !e.continueOnError(rs.def, step, outcome.err) {
				rs.logger.Error("step failed, aborting run",
					"step", step.ID, "error", outcome.err.Error())
				return finish(OutcomeFailed, step.ID, outcome.err)
			}

			// Failure becomes a routable synthetic output.
			rs.logger.Warn("step failed, continuing per error policy",
				"step", step.ID, "error", outcome.err.Error())
			rs.publish(step, map[string]interface{}{
				"_error":      outcome.err.Error(),
				"_error_kind": errors.Kind(outcome.err),
			})
			step = e.routeAfterFailure(rs, step)
			continue
		}

		if outcome.state == StateSkipped {
			rs.logger.Debug("step skipped by guard", "step", step.ID)
			step = rs.def.Step(step.Next)
			continue
		}

		rs.publish(step, outcome.output)
		step = e.route(rs, step, outcome)
	}
	return finish(OutcomeSucceeded, "", nil)
}

// stepOutcome is what one step invocation produced.
type stepOutcome struct {
	state  StepState
	output interface{}
	err    error

	// route is an explicit target chosen by the step (switch cases).
	route    string
	hasRoute bool

	// failedBranch requests on_failure routing without an error
	// (condition steps evaluating false).
	failedBranch bool
}

// executeStep wraps kind dispatch with the when-guard, timeout and retry
// decorators, and emits lifecycle events and metrics.
func (e *Executor) executeStep(ctx context.Context, rs *run, step *Step) stepOutcome {
	if step.When != "" {
		pass, err := e.evalGuard(rs, step.When)
		if err != nil {
			return stepOutcome{state: StateFailed, err: err}
		}
		if !pass {
			return stepOutcome{state: StateSkipped}
		}
	}

	e.emit(rs, EventStepStarted, step.ID, nil)
	observability.RecordStepStarted(rs.def.Name, string(step.Kind))
	started := time.Now()

	outcome := e.executeWithRetry(ctx, rs, step)

	elapsed := time.Since(started)
	observability.RecordStepCompleted(rs.def.Name, string(step.Kind), string(outcome.state), elapsed.Seconds())
	if outcome.err != nil {
		e.emit(rs, EventStepFailed, step.ID, map[string]interface{}{
			"error": outcome.err.Error(), "error_kind": errors.Kind(outcome.err),
		})
	} else {
		e.emit(rs, EventStepCompleted, step.ID, map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
		})
	}
	return outcome
}

// executeWithRetry runs attempts under the step's retry policy. Permission
// denials, recursion guards and cancellations are never retried; timeouts
// only when the policy opts in; non-idempotent tool failures never.
func (e *Executor) executeWithRetry(ctx context.Context, rs *run, step *Step) stepOutcome {
	policy := e.retryPolicy(rs.def, step)
	attempts := 1
	if policy != nil {
		attempts += policy.Count
	}

	var outcome stepOutcome
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			e.emit(rs, EventRetrying, step.ID, map[string]interface{}{"attempt": attempt})
			observability.RecordRetry(rs.def.Name, string(step.Kind))
			if err := waitBackoff(ctx, policy, attempt-1); err != nil {
				return stepOutcome{state: StateFailed, err: err}
			}
		}

		outcome = e.executeAttempt(ctx, rs, step)
		if outcome.err == nil {
			return outcome
		}
		if !retryable(outcome.err, policy) || isCancellation(ctx, outcome.err) {
			return outcome
		}
		rs.logger.Warn("step attempt failed",
			"step", step.ID, "attempt", attempt, "error", outcome.err.Error())
	}
	return outcome
}

// executeAttempt runs a single attempt under the step's timeout.
func (e *Executor) executeAttempt(ctx context.Context, rs *run, step *Step) stepOutcome {
	timeout := e.stepTimeout(rs.def, step)
	if timeout <= 0 {
		return e.dispatch(ctx, rs, step)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := e.dispatch(attemptCtx, rs, step)
	if outcome.err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		outcome.err = &errors.TimeoutError{
			Operation: fmt.Sprintf("step %s", step.ID),
			Duration:  timeout,
			Cause:     outcome.err,
		}
	}
	return outcome
}

// dispatch executes the kind-specific behavior. The kind set is closed;
// unknown kinds are rejected at load time.
func (e *Executor) dispatch(ctx context.Context, rs *run, step *Step) stepOutcome {
	switch step.Kind {
	case StepTool, StepSkill:
		return e.executeTool(ctx, rs, step)
	case StepAgent:
		return e.executeAgent(ctx, rs, step)
	case StepWorkflow:
		return e.executeSubworkflow(ctx, rs, step)
	case StepCondition:
		return e.executeCondition(rs, step)
	case StepWait:
		return e.executeWait(ctx, rs, step)
	case StepLoop:
		return e.executeLoop(ctx, rs, step)
	case StepMerge:
		return e.executeMerge(ctx, rs, step)
	case StepSwitch:
		return e.executeSwitch(rs, step)
	default:
		return stepOutcome{state: StateFailed, err: &errors.ConfigError{
			Key: "kind", Reason: fmt.Sprintf("unknown step kind %q", step.Kind),
		}}
	}
}

// route resolves the next step after a completed one, in priority order:
// explicit switch route, on_failure for failed branches, on_success, next.
func (e *Executor) route(rs *run, step *Step, outcome stepOutcome) *Step {
	if outcome.hasRoute {
		return rs.def.Step(outcome.route)
	}
	if outcome.failedBranch {
		if step.OnFailure != "" {
			return rs.def.Step(step.OnFailure)
		}
		return rs.def.Step(step.Next)
	}
	if step.OnSuccess != "" {
		return rs.def.Step(step.OnSuccess)
	}
	return rs.def.Step(step.Next)
}

// routeAfterFailure routes a continue-on-error failure: on_failure wins,
// then next, else the branch ends.
func (e *Executor) routeAfterFailure(rs *run, step *Step) *Step {
	if step.OnFailure != "" {
		return rs.def.Step(step.OnFailure)
	}
	return rs.def.Step(step.Next)
}

// continueOnError decides whether a terminal failure routes forward. The
// step-level flag is authoritative over the workflow error policy.
// Recursion guards are structural defects and always abort.
func (e *Executor) continueOnError(def *Definition, step *Step, err error) bool {
	if errors.IsRecursion(err) {
		return false
	}
	if step.ContinueOnError != nil {
		return *step.ContinueOnError
	}
	return def.Execution != nil && def.Execution.ErrorPolicy == ErrorPolicyRouteAsFailure
}

func (e *Executor) retryPolicy(def *Definition, step *Step) *RetryPolicy {
	if step.Retry != nil {
		return step.Retry
	}
	if def.Execution != nil {
		return def.Execution.Retry
	}
	return nil
}

func (e *Executor) stepTimeout(def *Definition, step *Step) time.Duration {
	seconds := step.TimeoutSeconds
	if seconds <= 0 && def.Execution != nil {
		seconds = def.Execution.TimeoutSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// retryable classifies an error for the retry policy.
func retryable(err error, policy *RetryPolicy) bool {
	if policy == nil || policy.Count == 0 {
		return false
	}
	if errors.IsPermissionDenied(err) || errors.IsRecursion(err) {
		return false
	}
	var toolErr *errors.ToolError
	if stderrors.As(err, &toolErr) && toolErr.NonIdempotent {
		return false
	}
	if errors.IsTimeout(err) {
		return policy.RetryTimeouts
	}
	return true
}

// isCancellation distinguishes run cancellation from a step's own deadline:
// the run context being done means the failure is the run winding down, not
// a defect in the step.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && err != nil
}

// publish writes a step's output into the context, applying the step's
// outputs rename map when present.
func (rs *run) publish(step *Step, output interface{}) {
	if len(step.Outputs) == 0 {
		rs.context[step.ID] = output
		return
	}
	obj, ok := output.(map[string]interface{})
	if !ok {
		rs.context[step.ID] = output
		return
	}
	renamed := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if target, renameOK := step.Outputs[k]; renameOK {
			renamed[target] = v
		} else {
			renamed[k] = v
		}
	}
	rs.context[step.ID] = renamed
}

// emit sends a lifecycle event. Fire-and-forget: a nil or slow sink never
// blocks the run.
func (e *Executor) emit(rs *run, typ EventType, stepID string, data map[string]interface{}) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(Event{
		Type:      typ,
		RunID:     rs.runID,
		Workflow:  rs.def.Name,
		StepID:    stepID,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// evalGuard evaluates a step's when guard. Guards use expr-lang syntax with
// the execution context as the environment, so they read step outputs by
// bare name (fetch.status_code == 200) rather than $-paths.
func (e *Executor) evalGuard(rs *run, guard string) (bool, error) {
	program, err := expr.Compile(guard, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compiling when guard: %w", err)
	}
	out, err := expr.Run(program, map[string]interface{}(rs.context))
	if err != nil {
		return false, fmt.Errorf("evaluating when guard: %w", err)
	}
	pass, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("when guard must evaluate to a boolean")
	}
	return pass, nil
}

// resolveArgs walks an args tree, evaluating $-prefixed strings as
// expressions against the context.
func (rs *run) resolveArgs(args interface{}) (interface{}, error) {
	switch v := args.(type) {
	case string:
		if isExpressionString(v) {
			return rs.eval.Evaluate(v, rs.context)
		}
		return v, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			resolved, err := rs.resolveArgs(item)
			if err != nil {
				return nil, fmt.Errorf("resolving arg %q: %w", k, err)
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			resolved, err := rs.resolveArgs(item)
			if err != nil {
				return nil, fmt.Errorf("resolving arg [%d]: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func isExpressionString(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '$':
			return true
		default:
			return false
		}
	}
	return false
}

// toValue normalizes arbitrary decoded input into the context value shape.
func toValue(v map[string]interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v
}

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/permissions"
)

// fakeTools is a scriptable ToolInvoker recording invocation order.
type fakeTools struct {
	mu    sync.Mutex
	calls []string
	times []time.Time
	fn    func(tool string, args map[string]interface{}) (interface{}, error)
}

func (f *fakeTools) Invoke(_ context.Context, tool string, args map[string]interface{}) (interface{}, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tool)
	f.times = append(f.times, time.Now())
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(tool, args)
	}
	return map[string]interface{}{"ok": true}, nil
}

func (f *fakeTools) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func mustLoad(t *testing.T, doc string) *Definition {
	t.Helper()
	def, err := Load([]byte(doc))
	require.NoError(t, err)
	return def
}

func TestExecutor_LinearRun(t *testing.T) {
	def := mustLoad(t, `
name: linear
entrypoints:
  default: {step: first}
steps:
  - id: first
    kind: tool
    config: {tool: util.echo, args: {value: "$workflow.input"}}
    next: second
  - id: second
    kind: tool
    config: {tool: util.echo, args: {value: "$first.value"}}
`)

	tools := &fakeTools{fn: func(_ string, args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"value": args["value"]}, nil
	}}
	exec := NewExecutor(WithTools(tools))

	result, err := exec.Run(context.Background(), def, "", map[string]interface{}{"input": "hello"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, []string{"util.echo", "util.echo"}, tools.calls)

	second, ok := result.Context["second"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", second["value"])
}

func TestExecutor_OutputRename(t *testing.T) {
	def := mustLoad(t, `
name: rename
entrypoints:
  default: {step: fetch}
steps:
  - id: fetch
    kind: tool
    config: {tool: util.echo}
    outputs: {ok: succeeded}
`)

	tools := &fakeTools{}
	exec := NewExecutor(WithTools(tools))
	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)

	out := result.Context["fetch"].(map[string]interface{})
	assert.Equal(t, true, out["succeeded"])
	assert.NotContains(t, out, "ok")
}

func TestExecutor_RetryBackoffTiming(t *testing.T) {
	def := mustLoad(t, `
name: retrying
entrypoints:
  default: {step: flaky}
steps:
  - id: flaky
    kind: tool
    config: {tool: flaky.op}
    retry: {count: 2, backoff_base_ms: 100, multiplier: 2}
`)

	tools := &fakeTools{fn: func(string, map[string]interface{}) (interface{}, error) {
		return nil, &errors.ToolError{Tool: "flaky.op", Message: "always fails"}
	}}
	exec := NewExecutor(WithTools(tools))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)

	// 1 initial + 2 retries, spaced >= 100ms then >= 200ms.
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "flaky", result.FailedStep)
	require.Equal(t, 3, tools.callCount())
	assert.GreaterOrEqual(t, tools.times[1].Sub(tools.times[0]), 100*time.Millisecond)
	assert.GreaterOrEqual(t, tools.times[2].Sub(tools.times[1]), 200*time.Millisecond)
}

func TestExecutor_NonIdempotentNotRetried(t *testing.T) {
	def := mustLoad(t, `
name: nonidem
entrypoints:
  default: {step: charge}
steps:
  - id: charge
    kind: tool
    config: {tool: billing.charge}
    retry: {count: 5, backoff_base_ms: 1}
`)

	tools := &fakeTools{fn: func(string, map[string]interface{}) (interface{}, error) {
		return nil, &errors.ToolError{Tool: "billing.charge", Message: "wire dropped", NonIdempotent: true}
	}}
	exec := NewExecutor(WithTools(tools))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, tools.callCount())
}

func TestExecutor_ContinueOnError(t *testing.T) {
	def := mustLoad(t, `
name: coe
entrypoints:
  default: {step: broken}
steps:
  - id: broken
    kind: tool
    config: {tool: broken.op}
    continue_on_error: true
    on_failure: cleanup
  - id: cleanup
    kind: tool
    config: {tool: util.echo, args: {reason: "$broken._error_kind"}}
`)

	tools := &fakeTools{fn: func(tool string, args map[string]interface{}) (interface{}, error) {
		if tool == "broken.op" {
			return nil, &errors.ToolError{Tool: tool, Message: "boom"}
		}
		return map[string]interface{}{"reason": args["reason"]}, nil
	}}
	exec := NewExecutor(WithTools(tools))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)

	broken := result.Context["broken"].(map[string]interface{})
	assert.Equal(t, "tool_error", broken["_error_kind"])
	assert.Contains(t, broken["_error"], "boom")

	cleanup := result.Context["cleanup"].(map[string]interface{})
	assert.Equal(t, "tool_error", cleanup["reason"])
}

func TestExecutor_AbortWithoutContinueOnError(t *testing.T) {
	def := mustLoad(t, `
name: abort
entrypoints:
  default: {step: broken}
steps:
  - id: broken
    kind: tool
    config: {tool: broken.op}
    next: never
  - id: never
    kind: tool
    config: {tool: util.echo}
`)

	tools := &fakeTools{fn: func(tool string, _ map[string]interface{}) (interface{}, error) {
		if tool == "broken.op" {
			return nil, &errors.ToolError{Tool: tool, Message: "boom"}
		}
		return nil, nil
	}}
	exec := NewExecutor(WithTools(tools))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "broken", result.FailedStep)
	assert.Equal(t, "tool_error", result.ErrorKind)
	assert.Equal(t, 1, tools.callCount())

	// Partial progress is preserved for diagnosis.
	assert.Contains(t, result.Context, "workflow")
}

func TestExecutor_PermissionDenyNeverRetriedNeverMasked(t *testing.T) {
	store := permissions.NewMemoryStore()
	store.SetPatterns(permissions.ScopeGlobal, &permissions.PatternSet{
		Deny: []string{"shell.*"},
	})
	mediator := permissions.NewMediator(store)

	def := mustLoad(t, `
name: denied
entrypoints:
  default: {step: danger}
steps:
  - id: danger
    kind: tool
    config: {tool: shell.run}
    retry: {count: 3, backoff_base_ms: 1}
    continue_on_error: true
    next: after
  - id: after
    kind: tool
    config: {tool: util.echo}
`)

	tools := &fakeTools{}
	exec := NewExecutor(WithTools(tools), WithMediator(mediator), WithSession("s1"))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)

	// continue_on_error routes forward, but never converts the denial into
	// ordinary success: the synthetic output keeps the classification.
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	danger := result.Context["danger"].(map[string]interface{})
	assert.Equal(t, "permission_denied", danger["_error_kind"])

	// The denied tool was never invoked, and never retried.
	assert.Equal(t, []string{"util.echo"}, tools.calls)
}

func TestExecutor_PermissionAskParksAndResumes(t *testing.T) {
	store := permissions.NewMemoryStore()
	store.SetPatterns(permissions.ScopeProject, &permissions.PatternSet{
		Ask: []string{"http.request"},
	})
	mediator := permissions.NewMediator(store)

	def := mustLoad(t, `
name: asked
entrypoints:
  default: {step: call}
steps:
  - id: call
    kind: tool
    config: {tool: http.request}
`)

	tools := &fakeTools{}
	exec := NewExecutor(WithTools(tools), WithMediator(mediator), WithSession("s1"))

	done := make(chan *RunResult, 1)
	go func() {
		result, _ := exec.Run(context.Background(), def, "", nil)
		done <- result
	}()

	// The run parks; resolve the ask externally.
	var pending []*permissions.PendingDecision
	require.Eventually(t, func() bool {
		pending = mediator.Pending()
		return len(pending) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "http.request", pending[0].Resource)

	require.NoError(t, mediator.Resolve(context.Background(), pending[0].ID, permissions.AllowOnce))

	result := <-done
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 1, tools.callCount())
}

func TestExecutor_WhenGuardSkips(t *testing.T) {
	def := mustLoad(t, `
name: guarded
entrypoints:
  default: {step: first}
steps:
  - id: first
    kind: tool
    config: {tool: util.echo}
    next: guarded
  - id: guarded
    kind: tool
    config: {tool: never.runs}
    when: "first.ok == false"
    next: last
  - id: last
    kind: tool
    config: {tool: util.echo}
`)

	tools := &fakeTools{}
	exec := NewExecutor(WithTools(tools))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, []string{"util.echo", "util.echo"}, tools.calls)
	assert.NotContains(t, result.Context, "guarded")
}

func TestExecutor_CancellationMidWaitPoll(t *testing.T) {
	def := mustLoad(t, `
name: cancelwait
entrypoints:
  default: {step: poll}
steps:
  - id: poll
    kind: wait
    config:
      until_expression: "$workflow.never == true"
      check_interval_seconds: 0.02
      timeout_seconds: 30
`)

	exec := NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *RunResult, 1)
	go func() {
		result, _ := exec.Run(ctx, def, "", nil)
		done <- result
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		assert.Equal(t, OutcomeCancelled, result.Outcome)
		assert.Nil(t, result.Err)
	case <-time.After(time.Second):
		t.Fatal("run did not terminate within one check interval of cancellation")
	}
}

func TestExecutor_StepTimeoutIsFailure(t *testing.T) {
	def := mustLoad(t, `
name: slow
entrypoints:
  default: {step: slow}
steps:
  - id: slow
    kind: wait
    config: {duration_seconds: 5}
    timeout_seconds: 0.05
`)

	exec := NewExecutor()
	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "timeout", result.ErrorKind)
}

func TestExecutor_EventsEmitted(t *testing.T) {
	def := mustLoad(t, `
name: events
entrypoints:
  default: {step: only}
steps:
  - id: only
    kind: tool
    config: {tool: util.echo}
`)

	sink := NewChannelSink(16)
	exec := NewExecutor(WithTools(&fakeTools{}), WithEventSink(sink))

	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	sink.Close()

	var types []EventType
	for ev := range sink.Events() {
		types = append(types, ev.Type)
		assert.Equal(t, result.RunID, ev.RunID)
		assert.Equal(t, "events", ev.Workflow)
	}
	assert.Equal(t, []EventType{EventStepStarted, EventStepCompleted}, types)
}

func TestExecutor_RoutingPriority(t *testing.T) {
	// on_success wins over next for succeeded steps.
	def := mustLoad(t, `
name: routing
entrypoints:
  default: {step: first}
steps:
  - id: first
    kind: tool
    config: {tool: util.echo}
    on_success: winner
    next: loser
  - id: winner
    kind: tool
    config: {tool: win.op}
  - id: loser
    kind: tool
    config: {tool: lose.op}
`)

	tools := &fakeTools{}
	exec := NewExecutor(WithTools(tools))
	result, err := exec.Run(context.Background(), def, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, []string{"util.echo", "win.op"}, tools.calls)
}

func TestExecutor_MissingDefinition(t *testing.T) {
	exec := NewExecutor()
	_, err := exec.Run(context.Background(), nil, "", nil)
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestExecutor_UnknownEntrypoint(t *testing.T) {
	def := mustLoad(t, `
name: eps
entrypoints:
  default: {step: only}
steps:
  - id: only
    kind: tool
    config: {tool: util.echo}
`)

	exec := NewExecutor(WithTools(&fakeTools{}))
	result, err := exec.Run(context.Background(), def, "nope", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "validation", result.ErrorKind)
}

func TestRetryBackoffComputation(t *testing.T) {
	policy := &RetryPolicy{BackoffBaseMS: 100, Multiplier: 2, MaxDelayMS: 350}

	assert.Equal(t, 100*time.Millisecond, computeBackoff(policy, 0))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(policy, 1))
	// Capped at max_delay.
	assert.Equal(t, 350*time.Millisecond, computeBackoff(policy, 2))

	constant := &RetryPolicy{BackoffBaseMS: 50}
	for attempt := 0; attempt < 3; attempt++ {
		assert.Equal(t, 50*time.Millisecond, computeBackoff(constant, attempt))
	}
}

func TestExecutor_SubworkflowRecursionGuards(t *testing.T) {
	selfCall := mustLoad(t, `
name: selfish
entrypoints:
  default: {step: again}
steps:
  - id: again
    kind: workflow
    config: {workflow: selfish}
`)

	resolver := WorkflowResolverFunc(func(_ context.Context, name string) (*Definition, error) {
		if name == "selfish" {
			return selfCall, nil
		}
		return nil, fmt.Errorf("unknown workflow %q", name)
	})

	exec := NewExecutor(WithResolver(resolver))
	result, err := exec.Run(context.Background(), selfCall, "", nil)
	require.NoError(t, err)

	// The self-call trips the mutual-recursion guard, which is structural:
	// never retried, never continue_on_error-eligible.
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "recursion", result.ErrorKind)
}

func TestExecutor_RecursionGuardIgnoresContinueOnError(t *testing.T) {
	var inner *Definition
	outer := mustLoad(t, `
name: outer
entrypoints:
  default: {step: call}
steps:
  - id: call
    kind: workflow
    config: {workflow: outer}
    continue_on_error: true
    next: after
  - id: after
    kind: tool
    config: {tool: util.echo}
`)
	inner = outer

	resolver := WorkflowResolverFunc(func(_ context.Context, _ string) (*Definition, error) {
		return inner, nil
	})
	exec := NewExecutor(WithResolver(resolver), WithTools(&fakeTools{}))

	result, err := exec.Run(context.Background(), outer, "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "recursion", result.ErrorKind)
}

func TestExecutor_NestedWorkflowThreadsInputs(t *testing.T) {
	child := mustLoad(t, `
name: child
entrypoints:
  default: {step: echo}
steps:
  - id: echo
    kind: tool
    config: {tool: util.echo, args: {got: "$workflow.seed"}}
`)
	parent := mustLoad(t, `
name: parent
entrypoints:
  default: {step: call}
steps:
  - id: call
    kind: workflow
    config:
      workflow: child
      inputs: {seed: "$workflow.start"}
`)

	resolver := WorkflowResolverFunc(func(_ context.Context, name string) (*Definition, error) {
		if name == "child" {
			return child, nil
		}
		return nil, fmt.Errorf("unknown workflow %q", name)
	})
	tools := &fakeTools{fn: func(_ string, args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"got": args["got"]}, nil
	}}
	exec := NewExecutor(WithResolver(resolver), WithTools(tools))

	result, err := exec.Run(context.Background(), parent, "", map[string]interface{}{"start": "x"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, result.Outcome)

	call := result.Context["call"].(map[string]interface{})
	echo := call["echo"].(map[string]interface{})
	assert.Equal(t, "x", echo["got"])
}

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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewDoc = `
name: review
description: triage incoming reviews
version: "2.1"
entrypoints:
  default: {step: classify}
  rush: {step: notify}
execution:
  strict_paths: true
  max_loop_iterations: 50
steps:
  - id: classify
    kind: switch
    config:
      value: "$workflow.priority"
      cases:
        - {value: high, next: notify}
      default: archive
  - id: notify
    kind: tool
    config: {tool: notify.send, args: {channel: reviews}}
    retry: {count: 1, backoff_base_ms: 50}
  - id: archive
    kind: tool
    config: {tool: store.archive}
`

func TestLoad_Defaults(t *testing.T) {
	def := mustLoad(t, `
name: minimal
entrypoints:
  default: {step: only}
steps:
  - id: only
    kind: tool
    config: {tool: t.a}
`)

	assert.Equal(t, DefaultVersion, def.Version)
	require.NotNil(t, def.Execution)
	assert.Equal(t, ErrorPolicyAbort, def.Execution.ErrorPolicy)
	assert.Equal(t, MatchExactFirst, def.Execution.SwitchMatchOrder)
	assert.Equal(t, DefaultMaxRecursionDepth, def.Execution.MaxRecursionDepth)
	assert.Equal(t, DefaultMaxLoopIterations, def.Execution.MaxLoopIterations)
	assert.Equal(t, DefaultMaxConditionDepth, def.Execution.MaxConditionDepth)
}

func TestLoad_ExplicitFieldsPreserved(t *testing.T) {
	def := mustLoad(t, reviewDoc)

	assert.Equal(t, "review", def.Name)
	assert.Equal(t, "2.1", def.Version)
	assert.True(t, def.Execution.StrictPaths)
	assert.Equal(t, 50, def.Execution.MaxLoopIterations)
	require.Len(t, def.Steps, 3)

	notify := def.Step("notify")
	require.NotNil(t, notify)
	require.NotNil(t, notify.Retry)
	assert.Equal(t, 1, notify.Retry.Count)
}

func TestLoad_JSONDocument(t *testing.T) {
	def := mustLoad(t, `{
  "name": "jsonflow",
  "entrypoints": {"default": {"step": "only"}},
  "steps": [{"id": "only", "kind": "tool", "config": {"tool": "t.a"}}]
}`)
	assert.Equal(t, "jsonflow", def.Name)
	require.NotNil(t, def.Step("only"))
}

func TestLoad_NotYAMLOrJSON(t *testing.T) {
	_, err := Load([]byte("{{nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid YAML or JSON")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte(reviewDoc), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "review", def.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading workflow file")
}

func TestEntrypointStep(t *testing.T) {
	def := mustLoad(t, reviewDoc)

	step, err := def.EntrypointStep("")
	require.NoError(t, err)
	assert.Equal(t, "classify", step.ID)

	step, err = def.EntrypointStep("rush")
	require.NoError(t, err)
	assert.Equal(t, "notify", step.ID)

	_, err = def.EntrypointStep("nightly")
	require.Error(t, err)
}

// A marshalled definition reloads to something executor-equivalent: same
// routing, same outputs.
func TestMarshal_RoundTripEquivalence(t *testing.T) {
	def := mustLoad(t, statusSwitch)

	data, err := def.Marshal()
	require.NoError(t, err)
	reloaded, err := Load(data)
	require.NoError(t, err)

	for _, status := range []string{"active", "pending_x", "closed"} {
		inputs := map[string]interface{}{"status": status}

		first := &fakeTools{}
		r1, err := NewExecutor(WithTools(first)).Run(context.Background(), def, "", inputs)
		require.NoError(t, err)

		second := &fakeTools{}
		r2, err := NewExecutor(WithTools(second)).Run(context.Background(), reloaded, "", inputs)
		require.NoError(t, err)

		assert.Equal(t, r1.Outcome, r2.Outcome)
		assert.Equal(t, first.calls, second.calls)
	}
}

func TestStepLookup(t *testing.T) {
	def := mustLoad(t, reviewDoc)
	assert.NotNil(t, def.Step("archive"))
	assert.Nil(t, def.Step("ghost"))
	assert.Nil(t, def.Step(""))
}

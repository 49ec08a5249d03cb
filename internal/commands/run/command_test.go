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

package run

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffware/riff/internal/commands/shared"
)

func writeWorkflow(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_Succeeds(t *testing.T) {
	path := writeWorkflow(t, `
name: hello
entrypoints:
  default: {step: greet}
steps:
  - id: greet
    kind: tool
    config: {tool: util.echo, args: {greeting: hello}}
`)

	out, err := execute(t, path, "--no-permissions")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, `"greeting": "hello"`)
}

func TestRun_InputsReachTheWorkflow(t *testing.T) {
	path := writeWorkflow(t, `
name: inputs
entrypoints:
  default: {step: echo}
steps:
  - id: echo
    kind: tool
    config: {tool: util.echo, args: {who: "$workflow.name", count: "$workflow.count"}}
`)

	out, err := execute(t, path, "--no-permissions", "--json",
		"-i", "name=ada", "-i", "count=3")
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "succeeded", payload["outcome"])

	runCtx := payload["context"].(map[string]interface{})
	echo := runCtx["echo"].(map[string]interface{})
	assert.Equal(t, "ada", echo["who"])
	assert.Equal(t, 3.0, echo["count"])
}

func TestRun_InputFileWithFlagOverride(t *testing.T) {
	inputsPath := filepath.Join(t.TempDir(), "inputs.json")
	require.NoError(t, os.WriteFile(inputsPath, []byte(`{"env": "dev", "region": "eu"}`), 0o644))

	path := writeWorkflow(t, `
name: override
entrypoints:
  default: {step: echo}
steps:
  - id: echo
    kind: tool
    config: {tool: util.echo, args: {env: "$workflow.env", region: "$workflow.region"}}
`)

	out, err := execute(t, path, "--no-permissions", "--json",
		"--input-file", inputsPath, "-i", "env=prod")
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	echo := payload["context"].(map[string]interface{})["echo"].(map[string]interface{})
	assert.Equal(t, "prod", echo["env"])
	assert.Equal(t, "eu", echo["region"])
}

func TestRun_FailureExitCode(t *testing.T) {
	path := writeWorkflow(t, `
name: broken
entrypoints:
  default: {step: boom}
steps:
  - id: boom
    kind: tool
    config: {tool: no.such.tool, args: {}}
`)

	out, err := execute(t, path, "--no-permissions")
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitExecutionFailed, exitErr.Code)
	assert.Contains(t, out, "failed")
}

func TestRun_InvalidWorkflowExitCode(t *testing.T) {
	path := writeWorkflow(t, `
name: invalid
entrypoints:
  default: {step: missing}
steps:
  - id: present
    kind: tool
    config: {tool: util.echo, args: {}}
`)

	_, err := execute(t, path, "--no-permissions")
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitInvalidWorkflow, exitErr.Code)
}

func TestRun_MissingFile(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "nope.yaml"), "--no-permissions")
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitInvalidWorkflow, exitErr.Code)
}

func TestRun_BadInputFlag(t *testing.T) {
	path := writeWorkflow(t, `
name: hello
entrypoints:
  default: {step: greet}
steps:
  - id: greet
    kind: tool
    config: {tool: util.echo, args: {}}
`)

	_, err := execute(t, path, "--no-permissions", "-i", "no-equals-sign")
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitUsage, exitErr.Code)
}

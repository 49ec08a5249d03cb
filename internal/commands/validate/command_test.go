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

package validate

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

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestValidate_ValidWorkflow(t *testing.T) {
	path := writeWorkflow(t, `
name: triage
entrypoints:
  default: {step: classify}
steps:
  - id: classify
    kind: tool
    config: {tool: util.echo, args: {}}
`)

	out, _, err := execute(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, `"triage"`)
}

func TestValidate_CycleReported(t *testing.T) {
	path := writeWorkflow(t, `
name: cyclic
entrypoints:
  default: {step: a}
steps:
  - id: a
    kind: tool
    config: {tool: util.echo, args: {}}
    next: b
  - id: b
    kind: tool
    config: {tool: util.echo, args: {}}
    next: a
`)

	_, errOut, err := execute(t, path)
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitInvalidWorkflow, exitErr.Code)
	assert.Contains(t, errOut, "a -> b -> a")
}

func TestValidate_JSONOutput(t *testing.T) {
	path := writeWorkflow(t, `
name: nameless
entrypoints:
  default: {step: missing}
steps:
  - id: present
    kind: tool
    config: {tool: util.echo, args: {}}
`)

	out, _, err := execute(t, path, "--json")
	require.Error(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, false, payload["valid"])
	assert.Contains(t, payload["message"], "missing")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitInvalidWorkflow, exitErr.Code)
}

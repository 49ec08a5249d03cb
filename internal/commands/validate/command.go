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

// Package validate implements `riff validate`: load a workflow file and
// report every structural defect without executing anything.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riffware/riff/internal/commands/shared"
	"github.com/riffware/riff/pkg/errors"
	"github.com/riffware/riff/pkg/workflow"
)

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Validate a workflow definition",
		Long: `Validate loads a workflow definition (YAML or JSON) and checks it against
the schema and the structural rules: unique step IDs, resolvable routing
targets, acyclic step graphs, per-kind required configuration, and condition
nesting limits. All defects are reported in one pass.`,
		Example: `  riff validate deploy.yaml
  riff validate pipeline.json --json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFile(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print defects as JSON")

	return cmd
}

func validateFile(cmd *cobra.Command, path string, jsonOutput bool) error {
	def, err := workflow.LoadFile(path)
	if err != nil {
		if jsonOutput {
			printDefectsJSON(cmd, path, err)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: invalid\n%v\n", path, err)
		}
		return &shared.ExitError{Code: shared.ExitInvalidWorkflow, Message: "invalid workflow"}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"file":  path,
			"valid": true,
			"name":  def.Name,
			"steps": len(def.Steps),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%q, %d steps)\n", path, def.Name, len(def.Steps))
	return nil
}

func printDefectsJSON(cmd *cobra.Command, path string, err error) {
	payload := map[string]interface{}{
		"file":  path,
		"valid": false,
	}
	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		payload["workflow"] = verr.Workflow
		payload["step"] = verr.Step
		payload["field"] = verr.Field
		payload["message"] = verr.Message
		if verr.Suggestion != "" {
			payload["suggestion"] = verr.Suggestion
		}
	} else {
		payload["message"] = err.Error()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

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

// Package run implements `riff run`: load a workflow file, execute it with
// the built-in tool set, and print the result.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/riffware/riff/internal/builtin"
	"github.com/riffware/riff/internal/commands/shared"
	"github.com/riffware/riff/internal/log"
	"github.com/riffware/riff/internal/permstore"
	"github.com/riffware/riff/pkg/permissions"
	"github.com/riffware/riff/pkg/workflow"
)

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var (
		inputs     []string
		inputFile  string
		entrypoint string
		jsonOutput bool
		noPerms    bool
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Execute a workflow",
		Long: `Run loads a workflow definition (YAML or JSON) and executes it with the
built-in tool set. Step outputs accumulate in the run context and the final
context is printed when the run finishes.

Inputs:
  -i key=value      Set an input (repeatable; values parse as JSON scalars)
  --input-file f    Load inputs from a JSON object file ("-" for stdin)

Exit codes:
  0  run succeeded
  1  run failed
  2  run was cancelled
  3  the workflow definition is invalid`,
		Example: `  riff run deploy.yaml -i environment=staging
  riff run triage.yaml --input-file inputs.json --entrypoint rush
  cat inputs.json | riff run pipeline.yaml --input-file - --json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args[0], inputs, inputFile, entrypoint, jsonOutput, noPerms, dbPath)
		},
	}

	cmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "Workflow input in key=value format")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "JSON file with inputs (use '-' for stdin)")
	cmd.Flags().StringVar(&entrypoint, "entrypoint", "", "Entrypoint to start from (default: \"default\")")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full run result as JSON")
	cmd.Flags().BoolVar(&noPerms, "no-permissions", false, "Skip the permission mediator (everything is allowed)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Permission database path (default: ~/.riff/riff.db)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, path string, inputFlags []string, inputFile, entrypoint string, jsonOutput, noPerms bool, dbPath string) error {
	logger := log.New(log.FromEnv())

	def, err := workflow.LoadFile(path)
	if err != nil {
		return &shared.ExitError{Code: shared.ExitInvalidWorkflow, Message: "invalid workflow", Cause: err}
	}

	inputs, err := shared.ParseInputs(inputFlags, inputFile)
	if err != nil {
		return &shared.ExitError{Code: shared.ExitUsage, Message: "parsing inputs", Cause: err}
	}

	opts := []workflow.ExecutorOption{
		workflow.WithTools(builtin.NewRegistry()),
		workflow.WithExecutorLogger(logger),
		workflow.WithSession(uuid.NewString()),
	}
	if !noPerms {
		mediator, closeStore, err := openMediator(dbPath)
		if err != nil {
			return err
		}
		defer closeStore()
		opts = append(opts, workflow.WithMediator(mediator))
		go resolveAsksInteractively(cmd, mediator)
	}
	exec := workflow.NewExecutor(opts...)

	// Ctrl-C cancels the run; the executor reports Cancelled rather than
	// dying mid-step.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := exec.Run(ctx, def, entrypoint, inputs)
	if err != nil {
		return &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "starting run", Cause: err}
	}

	if err := printResult(cmd, result, jsonOutput); err != nil {
		return err
	}

	switch result.Outcome {
	case workflow.OutcomeSucceeded:
		return nil
	case workflow.OutcomeCancelled:
		return &shared.ExitError{Code: shared.ExitCancelled, Message: "run cancelled"}
	default:
		return &shared.ExitError{
			Code:    shared.ExitExecutionFailed,
			Message: fmt.Sprintf("run failed at step %q (%s)", result.FailedStep, result.ErrorKind),
			Cause:   result.Err,
		}
	}
}

func openMediator(dbPath string) (*permissions.Mediator, func(), error) {
	if dbPath == "" {
		var err error
		dbPath, err = permstore.DefaultPath()
		if err != nil {
			return nil, nil, &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "locating permission database", Cause: err}
		}
	}
	store, err := permstore.Open(dbPath)
	if err != nil {
		return nil, nil, &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "opening permission database", Cause: err}
	}
	return permissions.NewMediator(store), func() { _ = store.Close() }, nil
}

// resolveAsksInteractively polls for parked permission asks and prompts on
// the terminal. Non-interactive sessions deny by default via EOF.
func resolveAsksInteractively(cmd *cobra.Command, mediator *permissions.Mediator) {
	for {
		pendings := mediator.Pending()
		if len(pendings) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		for _, pending := range pendings {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"permission needed for %q [o]nce / [s]ession / [d]eny: ", pending.Resource)
			var answer string
			if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
				answer = "d"
			}
			outcome := permissions.OutcomeDeny
			switch strings.ToLower(strings.TrimSpace(answer)) {
			case "o", "once":
				outcome = permissions.AllowOnce
			case "s", "session":
				outcome = permissions.AllowInSession
			}
			if err := mediator.Resolve(context.Background(), pending.ID, outcome); err != nil {
				return
			}
		}
	}
}

func printResult(cmd *cobra.Command, result *workflow.RunResult, jsonOutput bool) error {
	out := cmd.OutOrStdout()

	if jsonOutput {
		payload := map[string]interface{}{
			"run_id":  result.RunID,
			"outcome": result.Outcome,
			"context": result.Context,
		}
		if result.FailedStep != "" {
			payload["failed_step"] = result.FailedStep
			payload["error_kind"] = result.ErrorKind
			payload["error"] = result.Err.Error()
		}
		if len(result.Traces) > 0 {
			payload["traces"] = result.Traces
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Fprintf(out, "run %s: %s\n", result.RunID, result.Outcome)
	if result.FailedStep != "" {
		fmt.Fprintf(out, "failed at step %q: %v\n", result.FailedStep, result.Err)
	}
	data, err := json.MarshalIndent(result.Context, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run context: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

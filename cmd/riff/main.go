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

// Command riff runs and validates agentic workflows.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riffware/riff/internal/commands/permcmd"
	"github.com/riffware/riff/internal/commands/run"
	"github.com/riffware/riff/internal/commands/shared"
	"github.com/riffware/riff/internal/commands/validate"
	"github.com/riffware/riff/internal/commands/version"
)

func main() {
	root := &cobra.Command{
		Use:   "riff",
		Short: "Agentic workflow runtime",
		Long: `Riff executes declarative agentic workflows: YAML or JSON definitions
whose steps invoke tools, run sub-workflows, branch on conditions, loop over
collections, and merge parallel results. Tool invocations pass through a
permission mediator before they run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		run.NewCommand(),
		validate.NewCommand(),
		permcmd.NewCommand(),
		version.NewCommand(),
	)

	if err := root.Execute(); err != nil {
		var exitErr *shared.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "riff: %v\n", exitErr)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "riff: %v\n", err)
		os.Exit(shared.ExitUsage)
	}
}

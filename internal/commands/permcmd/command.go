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

// Package permcmd implements `riff permissions`: pattern management and
// decision audit over the permission database.
package permcmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riffware/riff/internal/commands/shared"
	"github.com/riffware/riff/internal/permstore"
	"github.com/riffware/riff/pkg/permissions"
)

// NewCommand creates the permissions command with its subcommands.
func NewCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Manage permission patterns and inspect decisions",
		Long: `Permissions manages the resource patterns the run-time mediator consults
before invoking tools, skills, and agents. Patterns live in one of three
scopes (session, project, global) and carry a kind: allow, ask, or deny.
Within a scope deny beats ask beats allow; across scopes the narrowest
scope with a match wins.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Permission database path (default: ~/.riff/riff.db)")

	cmd.AddCommand(
		newAddCommand(&dbPath),
		newRemoveCommand(&dbPath),
		newListCommand(&dbPath),
		newDecisionsCommand(&dbPath),
	)

	return cmd
}

func openStore(dbPath string) (*permstore.SQLiteStore, error) {
	if dbPath == "" {
		var err error
		dbPath, err = permstore.DefaultPath()
		if err != nil {
			return nil, &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "locating permission database", Cause: err}
		}
	}
	store, err := permstore.Open(dbPath)
	if err != nil {
		return nil, &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "opening permission database", Cause: err}
	}
	return store, nil
}

func parseScope(s string) (permissions.Scope, error) {
	switch permissions.Scope(s) {
	case permissions.ScopeSession, permissions.ScopeProject, permissions.ScopeGlobal:
		return permissions.Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q (want session, project, or global)", s)
	}
}

func newAddCommand(dbPath *string) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "add <allow|ask|deny> <pattern>",
		Short: "Add a permission pattern",
		Example: `  riff permissions add deny "shell.**"
  riff permissions add ask "net.*" --scope project
  riff permissions add allow "util.echo" --scope global`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := parseScope(scope)
			if err != nil {
				return &shared.ExitError{Code: shared.ExitUsage, Message: "parsing scope", Cause: err}
			}
			store, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.AddPattern(cmd.Context(), sc, args[0], args[1]); err != nil {
				return &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "adding pattern", Cause: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s pattern %q in scope %s\n", args[0], args[1], sc)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", string(permissions.ScopeGlobal), "Pattern scope: session, project, or global")
	return cmd
}

func newRemoveCommand(dbPath *string) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:           "remove <allow|ask|deny> <pattern>",
		Short:         "Remove a permission pattern",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := parseScope(scope)
			if err != nil {
				return &shared.ExitError{Code: shared.ExitUsage, Message: "parsing scope", Cause: err}
			}
			store, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RemovePattern(cmd.Context(), sc, args[0], args[1]); err != nil {
				return &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "removing pattern", Cause: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s pattern %q from scope %s\n", args[0], args[1], sc)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", string(permissions.ScopeGlobal), "Pattern scope: session, project, or global")
	return cmd
}

func newListCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List permission patterns in every scope",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			scopes := []permissions.Scope{permissions.ScopeSession, permissions.ScopeProject, permissions.ScopeGlobal}
			out := make(map[string]*permissions.PatternSet, len(scopes))
			for _, sc := range scopes {
				set, err := store.LoadPatterns(cmd.Context(), sc)
				if err != nil {
					return &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "loading patterns", Cause: err}
				}
				out[string(sc)] = set
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	return cmd
}

func newDecisionsCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "decisions <session-id>",
		Short:         "Show the decision audit log for a session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Decisions(cmd.Context(), args[0])
			if err != nil {
				return &shared.ExitError{Code: shared.ExitExecutionFailed, Message: "loading decisions", Cause: err}
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s  %-8s  %s\n",
					rec.DecidedAt.Format("2006-01-02 15:04:05"), rec.Outcome, rec.Scope, rec.Resource)
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no decisions recorded for session %q\n", args[0])
			}
			return nil
		},
	}
	return cmd
}

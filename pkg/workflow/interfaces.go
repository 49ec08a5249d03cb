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

import "context"

// ToolInvoker executes tool (and skill) invocations on behalf of the
// executor. Implementations must honor ctx cancellation and deadlines.
// Failures should be reported as *errors.ToolError so the retry policy can
// see the NonIdempotent flag; a non-idempotent failure is never retried.
type ToolInvoker interface {
	// Invoke runs one tool call with already-resolved arguments.
	Invoke(ctx context.Context, tool string, args map[string]interface{}) (interface{}, error)
}

// AgentTurnRequest is one agent invocation.
type AgentTurnRequest struct {
	// Message is the turn input, already expression-resolved.
	Message interface{}

	// ToolsAllowed restricts the agent's tool access for this turn.
	ToolsAllowed []string

	// BudgetTokens caps token spend; zero means runner default.
	BudgetTokens int
}

// AgentTurnResult is what an agent turn produced.
type AgentTurnResult struct {
	// Output is the turn's result value, published to the context.
	Output interface{}

	// TokensUsed reports actual spend, for observability.
	TokensUsed int
}

// AgentRunner executes agent turns on behalf of the executor.
type AgentRunner interface {
	RunTurn(ctx context.Context, agent string, req AgentTurnRequest) (*AgentTurnResult, error)
}

// WorkflowResolver resolves a workflow name to its loaded definition for
// nested workflow steps.
type WorkflowResolver interface {
	Resolve(ctx context.Context, name string) (*Definition, error)
}

// WorkflowResolverFunc adapts a function to the WorkflowResolver interface.
type WorkflowResolverFunc func(ctx context.Context, name string) (*Definition, error)

// Resolve implements WorkflowResolver.
func (f WorkflowResolverFunc) Resolve(ctx context.Context, name string) (*Definition, error) {
	return f(ctx, name)
}

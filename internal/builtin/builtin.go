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

// Package builtin provides the built-in tool set: utility operations
// (echo, timestamps, uuids, sleep) and jq data transforms. The registry
// implements the executor's ToolInvoker, so workflows run out of the box
// without an external tool host.
package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riffware/riff/internal/jq"
	"github.com/riffware/riff/pkg/errors"
)

// Handler executes one tool invocation.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Registry maps tool names to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry preloaded with the built-in tools.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.registerBuiltins()
	return r
}

// Register adds a tool handler. Registering a duplicate name is an error so
// built-ins cannot be silently shadowed.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("cannot register nil handler for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.handlers[name] = h
	return nil
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Invoke implements workflow.ToolInvoker.
func (r *Registry) Invoke(ctx context.Context, tool string, args map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	h, ok := r.handlers[tool]
	r.mu.RUnlock()
	if !ok {
		return nil, &errors.ToolError{Tool: tool, Message: "unknown tool"}
	}
	out, err := h(ctx, args)
	if err != nil {
		var toolErr *errors.ToolError
		if errors.As(err, &toolErr) {
			return nil, err
		}
		return nil, &errors.ToolError{Tool: tool, Message: err.Error(), Cause: err}
	}
	return out, nil
}

// jqTransformer runs transform.jq programs with a guard against runaway
// queries.
var jqTransformer = jq.NewExecutor(10*time.Second, 10*1024*1024)

func (r *Registry) registerBuiltins() {
	r.handlers["util.echo"] = echoTool
	r.handlers["util.now"] = nowTool
	r.handlers["util.uuid"] = uuidTool
	r.handlers["util.sleep"] = sleepTool
	r.handlers["transform.jq"] = jqTool
}

// echoTool returns its arguments unchanged, which makes it the standard
// fixture for wiring and routing tests.
func echoTool(_ context.Context, args map[string]interface{}) (interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out, nil
}

func nowTool(_ context.Context, args map[string]interface{}) (interface{}, error) {
	now := time.Now().UTC()
	format := time.RFC3339
	if f, ok := args["format"].(string); ok && f != "" {
		format = f
	}
	return map[string]interface{}{
		"timestamp": now.Format(format),
		"unix":      float64(now.Unix()),
	}, nil
}

func uuidTool(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"uuid": uuid.NewString()}, nil
}

func sleepTool(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	seconds, ok := args["seconds"].(float64)
	if !ok || seconds < 0 {
		return nil, fmt.Errorf("sleep requires a non-negative seconds argument")
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return map[string]interface{}{"slept_seconds": seconds}, nil
}

func jqTool(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("transform.jq requires a query argument")
	}
	result, err := jqTransformer.Execute(ctx, query, args["input"])
	if err != nil {
		return nil, fmt.Errorf("jq query failed: %w", err)
	}
	return map[string]interface{}{"result": result}, nil
}

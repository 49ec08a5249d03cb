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

package jq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		name  string
		query string
		data  interface{}
		want  interface{}
	}{
		{
			name:  "empty query returns data as-is",
			query: "",
			data:  map[string]interface{}{"foo": "bar"},
			want:  map[string]interface{}{"foo": "bar"},
		},
		{
			name:  "field extraction",
			query: ".foo",
			data:  map[string]interface{}{"foo": "bar"},
			want:  "bar",
		},
		{
			name:  "array map",
			query: "map(.x)",
			data:  []interface{}{map[string]interface{}{"x": 1.0}, map[string]interface{}{"x": 2.0}},
			want:  []interface{}{1.0, 2.0},
		},
		{
			name:  "object construction",
			query: "{total: (.nums | add)}",
			data:  map[string]interface{}{"nums": []interface{}{1.0, 2.0, 3.0}},
			want:  map[string]interface{}{"total": 6.0},
		},
		{
			name:  "multiple outputs collect into an array",
			query: ".[]",
			data:  []interface{}{"a", "b"},
			want:  []interface{}{"a", "b"},
		},
		{
			name:  "no output is nil",
			query: "empty",
			data:  map[string]interface{}{},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewExecutor(DefaultTimeout, DefaultMaxInputSize)
			got, err := executor.Execute(context.Background(), tt.query, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_Errors(t *testing.T) {
	executor := NewExecutor(DefaultTimeout, DefaultMaxInputSize)

	_, err := executor.Execute(context.Background(), ".[", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")

	// Runtime errors surface too.
	_, err = executor.Execute(context.Background(), ".foo | keys", map[string]interface{}{"foo": 1.0})
	assert.Error(t, err)
}

func TestExecute_InputSizeLimit(t *testing.T) {
	executor := NewExecutor(DefaultTimeout, 16)

	_, err := executor.Execute(context.Background(), ".", map[string]interface{}{
		"payload": "this is well over sixteen bytes of JSON",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestExecute_Timeout(t *testing.T) {
	executor := NewExecutor(100*time.Millisecond, DefaultMaxInputSize)

	_, err := executor.Execute(context.Background(), "while(true; . + 1)", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestValidate(t *testing.T) {
	executor := NewExecutor(DefaultTimeout, DefaultMaxInputSize)

	assert.NoError(t, executor.Validate(""))
	assert.NoError(t, executor.Validate(".foo"))
	assert.NoError(t, executor.Validate("{total: (.nums | add)}"))
	assert.Error(t, executor.Validate(".["))
}

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

package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffware/riff/pkg/errors"
)

func TestInvoke_Echo(t *testing.T) {
	r := NewRegistry()
	out, err := r.Invoke(context.Background(), "util.echo", map[string]interface{}{
		"message": "hello", "count": 3.0,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message": "hello", "count": 3.0}, out)
}

func TestInvoke_UnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "no.such.tool", nil)
	require.Error(t, err)
	var toolErr *errors.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "no.such.tool", toolErr.Tool)
}

func TestInvoke_Now(t *testing.T) {
	r := NewRegistry()
	out, err := r.Invoke(context.Background(), "util.now", nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	ts, err := time.Parse(time.RFC3339, result["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
	assert.InDelta(t, float64(time.Now().Unix()), result["unix"].(float64), 60)
}

func TestInvoke_UUID(t *testing.T) {
	r := NewRegistry()
	first, err := r.Invoke(context.Background(), "util.uuid", nil)
	require.NoError(t, err)
	second, err := r.Invoke(context.Background(), "util.uuid", nil)
	require.NoError(t, err)

	a := first.(map[string]interface{})["uuid"].(string)
	b := second.(map[string]interface{})["uuid"].(string)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestInvoke_Sleep(t *testing.T) {
	r := NewRegistry()

	started := time.Now()
	out, err := r.Invoke(context.Background(), "util.sleep", map[string]interface{}{"seconds": 0.05})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)
	assert.Equal(t, 0.05, out.(map[string]interface{})["slept_seconds"])

	_, err = r.Invoke(context.Background(), "util.sleep", map[string]interface{}{"seconds": "long"})
	assert.Error(t, err)
}

func TestInvoke_SleepCancellation(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Invoke(ctx, "util.sleep", map[string]interface{}{"seconds": 10.0})
	require.Error(t, err)
	var toolErr *errors.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.ErrorIs(t, toolErr.Cause, context.DeadlineExceeded)
}

func TestInvoke_JQTransform(t *testing.T) {
	r := NewRegistry()
	out, err := r.Invoke(context.Background(), "transform.jq", map[string]interface{}{
		"query": ".items | map(.name)",
		"input": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"name": "a"},
				map[string]interface{}{"name": "b"},
			},
		},
	})
	require.NoError(t, err)

	result := out.(map[string]interface{})["result"]
	assert.Equal(t, []interface{}{"a", "b"}, result)
}

func TestInvoke_JQRequiresQuery(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "transform.jq", map[string]interface{}{"input": 1.0})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("custom.op", func(context.Context, map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	}))
	out, err := r.Invoke(context.Background(), "custom.op", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["ok"])

	assert.Error(t, r.Register("custom.op", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, nil
	}), "duplicate registration must fail")
	assert.Error(t, r.Register("", nil))

	assert.Contains(t, r.Names(), "util.echo")
	assert.Contains(t, r.Names(), "transform.jq")
}

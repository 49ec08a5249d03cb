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

package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindBool, KindOf(true))
	assert.Equal(t, KindNumber, KindOf(float64(1)))
	assert.Equal(t, KindNumber, KindOf(int(1)))
	assert.Equal(t, KindNumber, KindOf(int64(1)))
	assert.Equal(t, KindString, KindOf("x"))
	assert.Equal(t, KindArray, KindOf([]interface{}{}))
	assert.Equal(t, KindObject, KindOf(map[string]interface{}{}))
}

func TestEqual_NullOnlyEqualsNull(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, float64(0)))
	assert.False(t, Equal(nil, ""))
	assert.False(t, Equal(nil, false))
	assert.False(t, Equal(nil, []interface{}{}))
}

func TestEqual_CrossKindNeverEqual(t *testing.T) {
	assert.False(t, Equal(float64(1), "1"))
	assert.False(t, Equal(true, float64(1)))
}

func TestEqual_NumericWidths(t *testing.T) {
	// YAML decoding can hand back ints where JSON gives float64.
	assert.True(t, Equal(int(5), float64(5)))
	assert.True(t, Equal(int64(5), float64(5)))
}

func TestEqual_Deep(t *testing.T) {
	a := map[string]interface{}{"x": []interface{}{float64(1), "two"}}
	b := map[string]interface{}{"x": []interface{}{float64(1), "two"}}
	c := map[string]interface{}{"x": []interface{}{float64(1), "three"}}
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestCompare(t *testing.T) {
	cmp, err := Compare(float64(1), float64(2))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Compare("b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = Compare(false, true)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	_, err = Compare(float64(1), "1")
	assert.Error(t, err)

	_, err = Compare([]interface{}{}, []interface{}{})
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy([]interface{}{}))
	assert.False(t, Truthy(map[string]interface{}{}))

	assert.True(t, Truthy(true))
	assert.True(t, Truthy(float64(0.5)))
	assert.True(t, Truthy("no"))
	assert.True(t, Truthy([]interface{}{nil}))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "null", Stringify(nil))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "42", Stringify(float64(42)))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, `[1, "a"]`, Stringify([]interface{}{float64(1), "a"}))
	assert.Equal(t, `{"a": 1, "b": "x"}`,
		Stringify(map[string]interface{}{"b": "x", "a": float64(1)}))
}

func TestDeepCopy_Isolation(t *testing.T) {
	src := map[string]interface{}{
		"arr": []interface{}{float64(1)},
		"obj": map[string]interface{}{"k": "v"},
	}
	cp := DeepCopy(src).(map[string]interface{})
	cp["obj"].(map[string]interface{})["k"] = "mutated"
	cp["arr"].([]interface{})[0] = float64(9)

	assert.Equal(t, "v", src["obj"].(map[string]interface{})["k"])
	assert.Equal(t, float64(1), src["arr"].([]interface{})[0])
}

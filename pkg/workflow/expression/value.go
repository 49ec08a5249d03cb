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
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the dynamic type of a JSON-like value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name as used in error messages and the type()
// library function.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf returns the Kind of a JSON-like value. Integer types produced by
// YAML decoding count as numbers.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case string:
		return KindString
	case []interface{}:
		return KindArray
	case map[string]interface{}:
		return KindObject
	default:
		return KindNull
	}
}

// AsNumber converts any numeric value to float64.
// The second return is false for non-numeric values.
func AsNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Equal reports deep equality between two values under the language's
// null-aware rules: null equals only null; values of different kinds are
// never equal; numbers compare as float64.
func Equal(a, b interface{}) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindNull:
		return true
	case KindBool:
		return a.(bool) == b.(bool)
	case KindNumber:
		na, _ := AsNumber(a)
		nb, _ := AsNumber(b)
		return na == nb
	case KindString:
		return a.(string) == b.(string)
	case KindArray:
		aa, ba := a.([]interface{}), b.([]interface{})
		if len(aa) != len(ba) {
			return false
		}
		for i := range aa {
			if !Equal(aa[i], ba[i]) {
				return false
			}
		}
		return true
	case KindObject:
		ao, bo := a.(map[string]interface{}), b.(map[string]interface{})
		if len(ao) != len(bo) {
			return false
		}
		for k, av := range ao {
			bv, ok := bo[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two same-kind values, returning -1, 0 or 1.
// Ordering is defined for numbers, strings and booleans (false < true).
// Any other combination is an invalid operation.
func Compare(a, b interface{}) (int, error) {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return 0, evalErrf(EvalInvalidOperation, "cannot compare %s with %s", ka, kb)
	}
	switch ka {
	case KindNumber:
		na, _ := AsNumber(a)
		nb, _ := AsNumber(b)
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		default:
			return 0, nil
		}
	case KindString:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		default:
			return 0, nil
		}
	case KindBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case !ba && bb:
			return -1, nil
		case ba && !bb:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, evalErrf(EvalInvalidOperation, "values of kind %s are not ordered", ka)
	}
}

// Truthy reports the boolean interpretation of a value: null and false are
// falsy; zero, empty string, empty array and empty object are falsy;
// everything else is truthy.
func Truthy(v interface{}) bool {
	switch KindOf(v) {
	case KindNull:
		return false
	case KindBool:
		return v.(bool)
	case KindNumber:
		n, _ := AsNumber(v)
		return n != 0
	case KindString:
		return v.(string) != ""
	case KindArray:
		return len(v.([]interface{})) > 0
	case KindObject:
		return len(v.(map[string]interface{})) > 0
	}
	return false
}

// Stringify renders a value the way to_string and join do: strings pass
// through unquoted, numbers drop a trailing .0, containers render as
// compact JSON-ish text with sorted object keys for determinism.
func Stringify(v interface{}) string {
	switch KindOf(v) {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.(bool))
	case KindNumber:
		n, _ := AsNumber(v)
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case KindString:
		return v.(string)
	case KindArray:
		arr := v.([]interface{})
		out := "["
		for i, item := range arr {
			if i > 0 {
				out += ", "
			}
			out += stringifyQuoted(item)
		}
		return out + "]"
	case KindObject:
		obj := v.(map[string]interface{})
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%q: %s", k, stringifyQuoted(obj[k]))
		}
		return out + "}"
	}
	return ""
}

// stringifyQuoted is Stringify except strings are quoted, for use inside
// container renderings.
func stringifyQuoted(v interface{}) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return Stringify(v)
}

// DeepCopy returns a structural copy of a JSON-like value. Scalars are
// returned as-is; arrays and objects are copied recursively.
func DeepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

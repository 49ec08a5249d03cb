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
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// evalCall dispatches a library function call. Method-style calls fold the
// receiver in as the first argument, so $s.split(",") and split($s, ",") are
// the same invocation.
func (e *Evaluator) evalCall(call *CallExpr, sc *scope) (interface{}, error) {
	// map/filter/flat_map take a lambda, which must not be evaluated as a
	// plain expression.
	switch call.Name {
	case "map", "filter", "flat_map":
		return e.evalHigherOrder(call, sc)
	}

	args := make([]interface{}, 0, len(call.Args)+1)
	if call.Recv != nil {
		recv, err := e.eval(call.Recv, sc)
		if err != nil {
			return nil, err
		}
		args = append(args, recv)
	}
	for _, a := range call.Args {
		if _, isLambda := a.(*LambdaExpr); isLambda {
			return nil, &EvalError{Kind: EvalInvalidContext, Function: call.Name,
				Message: "lambda is only valid as the argument to map, filter or flat_map"}
		}
		v, err := e.eval(a, sc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return e.applyFunction(call.Name, args)
}

// evalHigherOrder handles map, filter and flat_map: one array receiver (or
// first argument) plus exactly one lambda.
func (e *Evaluator) evalHigherOrder(call *CallExpr, sc *scope) (interface{}, error) {
	var arrExpr Expr
	var lambda *LambdaExpr
	switch {
	case call.Recv != nil && len(call.Args) == 1:
		arrExpr = call.Recv
		lambda, _ = call.Args[0].(*LambdaExpr)
	case call.Recv == nil && len(call.Args) == 2:
		arrExpr = call.Args[0]
		lambda, _ = call.Args[1].(*LambdaExpr)
	default:
		return nil, badArgs(call.Name, "expects an array and a lambda")
	}
	if lambda == nil {
		return nil, badArgs(call.Name, "second argument must be a lambda (x => ...)")
	}

	recv, err := e.eval(arrExpr, sc)
	if err != nil {
		return nil, err
	}
	arr, ok := recv.([]interface{})
	if !ok {
		if recv == nil {
			arr = nil
		} else {
			return nil, badArgs(call.Name, "receiver must be an array, got "+KindOf(recv).String())
		}
	}

	switch call.Name {
	case "map":
		out := make([]interface{}, len(arr))
		for i, item := range arr {
			v, err := e.eval(lambda.Body, sc.bind(lambda.Param, item))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case "filter":
		out := make([]interface{}, 0, len(arr))
		for i, item := range arr {
			v, err := e.eval(lambda.Body, sc.bind(lambda.Param, item))
			if err != nil {
				// A broken predicate skips the element rather than aborting
				// the whole filter.
				e.logger.Warn("filter predicate failed, skipping element",
					"index", i, "error", err.Error())
				continue
			}
			b, ok := v.(bool)
			if !ok {
				e.logger.Warn("filter predicate returned non-boolean, skipping element",
					"index", i, "kind", KindOf(v).String())
				continue
			}
			if b {
				out = append(out, item)
			}
		}
		return out, nil

	case "flat_map":
		var out []interface{}
		for i := range arr {
			v, err := e.eval(lambda.Body, sc.bind(lambda.Param, arr[i]))
			if err != nil {
				return nil, err
			}
			if inner, ok := v.([]interface{}); ok {
				out = append(out, inner...)
			} else {
				out = append(out, v)
			}
		}
		if out == nil {
			out = []interface{}{}
		}
		return out, nil
	}
	return nil, &EvalError{Kind: EvalUnknownFunction, Function: call.Name, Message: "unknown function"}
}

func badArgs(fn, msg string) *EvalError {
	return &EvalError{Kind: EvalBadArgument, Function: fn, Message: msg}
}

func invalidOp(fn, msg string) *EvalError {
	return &EvalError{Kind: EvalInvalidOperation, Function: fn, Message: msg}
}

// applyFunction runs a non-higher-order library function over already
// evaluated arguments.
func (e *Evaluator) applyFunction(name string, args []interface{}) (interface{}, error) {
	switch name {
	// String functions.
	case "upper":
		s, err := oneString(name, args)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	case "lower":
		s, err := oneString(name, args)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	case "trim":
		s, err := oneString(name, args)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	case "split":
		if len(args) != 2 {
			return nil, badArgs(name, "expects a string and a separator")
		}
		s, ok := args[0].(string)
		sep, ok2 := args[1].(string)
		if !ok || !ok2 {
			return nil, badArgs(name, "both arguments must be strings")
		}
		parts := strings.Split(s, sep)
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "join":
		if len(args) != 2 {
			return nil, badArgs(name, "expects an array and a separator")
		}
		arr, ok := args[0].([]interface{})
		sep, ok2 := args[1].(string)
		if !ok || !ok2 {
			return nil, badArgs(name, "expects an array and a string separator")
		}
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, sep), nil
	case "replace":
		if len(args) != 3 {
			return nil, badArgs(name, "expects a string, old and new")
		}
		s, ok := args[0].(string)
		old, ok2 := args[1].(string)
		repl, ok3 := args[2].(string)
		if !ok || !ok2 || !ok3 {
			return nil, badArgs(name, "all arguments must be strings")
		}
		return strings.ReplaceAll(s, old, repl), nil
	case "substring":
		if len(args) != 2 && len(args) != 3 {
			return nil, badArgs(name, "expects a string, start and optional end")
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, badArgs(name, "first argument must be a string")
		}
		start, ok := AsNumber(args[1])
		if !ok {
			return nil, badArgs(name, "start must be a number")
		}
		end := float64(len(s))
		if len(args) == 3 {
			if end, ok = AsNumber(args[2]); !ok {
				return nil, badArgs(name, "end must be a number")
			}
		}
		return substring(s, int(start), int(end)), nil
	case "length":
		if len(args) != 1 {
			return nil, badArgs(name, "expects one argument")
		}
		switch v := args[0].(type) {
		case string:
			return float64(len([]rune(v))), nil
		case []interface{}:
			return float64(len(v)), nil
		case map[string]interface{}:
			return float64(len(v)), nil
		case nil:
			return float64(0), nil
		default:
			return nil, invalidOp(name, "length of "+KindOf(args[0]).String()+" is undefined")
		}
	case "matches":
		if len(args) != 2 {
			return nil, badArgs(name, "expects a string and a pattern")
		}
		subject := Stringify(args[0])
		pattern, ok := args[1].(string)
		if !ok {
			return nil, badArgs(name, "pattern must be a string")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, badArgs(name, "invalid pattern: "+err.Error())
		}
		return re.MatchString(subject), nil
	case "replace_regex":
		if len(args) != 3 {
			return nil, badArgs(name, "expects a string, pattern and replacement")
		}
		s, ok := args[0].(string)
		pattern, ok2 := args[1].(string)
		repl, ok3 := args[2].(string)
		if !ok || !ok2 || !ok3 {
			return nil, badArgs(name, "all arguments must be strings")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, badArgs(name, "invalid pattern: "+err.Error())
		}
		return re.ReplaceAllString(s, repl), nil

	// Number functions.
	case "abs", "floor", "ceil", "round":
		if len(args) != 1 {
			return nil, badArgs(name, "expects one number")
		}
		n, ok := AsNumber(args[0])
		if !ok {
			return nil, badArgs(name, "argument must be a number, got "+KindOf(args[0]).String())
		}
		switch name {
		case "abs":
			return math.Abs(n), nil
		case "floor":
			return math.Floor(n), nil
		case "ceil":
			return math.Ceil(n), nil
		default:
			return math.Round(n), nil
		}

	// Array functions.
	case "first", "last":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			return nil, nil
		}
		if name == "first" {
			return arr[0], nil
		}
		return arr[len(arr)-1], nil
	case "at":
		if len(args) != 2 {
			return nil, badArgs(name, "expects an array and an index")
		}
		arr, ok := args[0].([]interface{})
		if !ok {
			return nil, badArgs(name, "first argument must be an array")
		}
		idx, ok := AsNumber(args[1])
		if !ok {
			return nil, badArgs(name, "index must be a number")
		}
		i := int(idx)
		if i < 0 || i >= len(arr) {
			return nil, nil
		}
		return arr[i], nil
	case "take", "skip":
		if len(args) != 2 {
			return nil, badArgs(name, "expects an array and a count")
		}
		arr, ok := args[0].([]interface{})
		if !ok {
			return nil, badArgs(name, "first argument must be an array")
		}
		nf, ok := AsNumber(args[1])
		if !ok {
			return nil, badArgs(name, "count must be a number")
		}
		n := int(nf)
		if n < 0 {
			n = 0
		}
		if n > len(arr) {
			n = len(arr)
		}
		if name == "take" {
			return append([]interface{}{}, arr[:n]...), nil
		}
		return append([]interface{}{}, arr[n:]...), nil
	case "reverse":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(arr))
		for i, item := range arr {
			out[len(arr)-1-i] = item
		}
		return out, nil
	case "sort":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		out := append([]interface{}{}, arr...)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			cmp, err := Compare(out[i], out[j])
			if err != nil && sortErr == nil {
				sortErr = err
			}
			return cmp < 0
		})
		if sortErr != nil {
			return nil, invalidOp(name, sortErr.Error())
		}
		return out, nil
	case "unique":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(arr))
		for _, item := range arr {
			dup := false
			for _, seen := range out {
				if Equal(item, seen) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, item)
			}
		}
		return out, nil
	case "sum", "avg":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		if name == "avg" && len(arr) == 0 {
			return nil, invalidOp(name, "avg of an empty array is undefined")
		}
		total := 0.0
		for _, item := range arr {
			n, ok := AsNumber(item)
			if !ok {
				return nil, invalidOp(name, "array contains a non-number ("+KindOf(item).String()+")")
			}
			total += n
		}
		if name == "sum" {
			return total, nil
		}
		return total / float64(len(arr)), nil
	case "min", "max":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			return nil, invalidOp(name, name+" of an empty array is undefined")
		}
		best := arr[0]
		for _, item := range arr[1:] {
			cmp, err := Compare(item, best)
			if err != nil {
				return nil, invalidOp(name, err.Error())
			}
			if (name == "min" && cmp < 0) || (name == "max" && cmp > 0) {
				best = item
			}
		}
		return best, nil
	case "count":
		arr, err := oneArray(name, args)
		if err != nil {
			return nil, err
		}
		return float64(len(arr)), nil

	// Object functions.
	case "keys":
		obj, err := oneObject(name, args)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	case "values":
		obj, err := oneObject(name, args)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = obj[k]
		}
		return out, nil
	case "get":
		if len(args) != 2 && len(args) != 3 {
			return nil, badArgs(name, "expects an object, a key and an optional default")
		}
		obj, ok := args[0].(map[string]interface{})
		if !ok {
			return nil, badArgs(name, "first argument must be an object")
		}
		key, ok := args[1].(string)
		if !ok {
			return nil, badArgs(name, "key must be a string")
		}
		if v, ok := obj[key]; ok {
			return v, nil
		}
		if len(args) == 3 {
			return args[2], nil
		}
		return nil, nil
	case "has":
		if len(args) != 2 {
			return nil, badArgs(name, "expects an object and a key")
		}
		obj, ok := args[0].(map[string]interface{})
		if !ok {
			return nil, badArgs(name, "first argument must be an object")
		}
		key, ok := args[1].(string)
		if !ok {
			return nil, badArgs(name, "key must be a string")
		}
		_, found := obj[key]
		return found, nil

	// Type functions.
	case "to_string":
		if len(args) != 1 {
			return nil, badArgs(name, "expects one argument")
		}
		return Stringify(args[0]), nil
	case "to_number":
		if len(args) != 1 {
			return nil, badArgs(name, "expects one argument")
		}
		switch v := args[0].(type) {
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, invalidOp(name, "cannot convert "+strconv.Quote(v)+" to a number")
			}
			return n, nil
		case bool:
			if v {
				return float64(1), nil
			}
			return float64(0), nil
		default:
			if n, ok := AsNumber(args[0]); ok {
				return n, nil
			}
			return nil, invalidOp(name, "cannot convert "+KindOf(args[0]).String()+" to a number")
		}
	case "to_boolean":
		if len(args) != 1 {
			return nil, badArgs(name, "expects one argument")
		}
		return Truthy(args[0]), nil
	case "type":
		if len(args) != 1 {
			return nil, badArgs(name, "expects one argument")
		}
		return KindOf(args[0]).String(), nil

	default:
		return nil, &EvalError{Kind: EvalUnknownFunction, Function: name, Message: "unknown function"}
	}
}

func oneString(fn string, args []interface{}) (string, error) {
	if len(args) != 1 {
		return "", badArgs(fn, "expects one string")
	}
	s, ok := args[0].(string)
	if !ok {
		return "", badArgs(fn, "argument must be a string, got "+KindOf(args[0]).String())
	}
	return s, nil
}

func oneArray(fn string, args []interface{}) ([]interface{}, error) {
	if len(args) != 1 {
		return nil, badArgs(fn, "expects one array")
	}
	if args[0] == nil {
		return nil, nil
	}
	arr, ok := args[0].([]interface{})
	if !ok {
		return nil, badArgs(fn, "argument must be an array, got "+KindOf(args[0]).String())
	}
	return arr, nil
}

func oneObject(fn string, args []interface{}) (map[string]interface{}, error) {
	if len(args) != 1 {
		return nil, badArgs(fn, "expects one object")
	}
	obj, ok := args[0].(map[string]interface{})
	if !ok {
		return nil, badArgs(fn, "argument must be an object, got "+KindOf(args[0]).String())
	}
	return obj, nil
}

// substring slices by rune index, clamping out-of-range bounds.
func substring(s string, start, end int) string {
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

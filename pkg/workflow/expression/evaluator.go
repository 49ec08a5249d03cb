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
	"log/slog"
	"strconv"
	"sync"
)

// Mode controls how path resolution treats missing data.
type Mode int

const (
	// Lenient resolves missing keys and out-of-range indexes to null.
	Lenient Mode = iota
	// Strict turns a missing-path access into an EvalPathNotFound error.
	Strict
)

// Context is the value graph expressions read: step id (or reserved
// namespace) to that step's output.
type Context map[string]interface{}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMode sets lenient or strict path resolution.
func WithMode(m Mode) Option {
	return func(e *Evaluator) { e.mode = m }
}

// WithMaxDepth overrides the parser depth limit.
func WithMaxDepth(d int) Option {
	return func(e *Evaluator) { e.maxDepth = d }
}

// WithLogger sets the logger used for per-element filter errors and other
// degraded-but-not-fatal evaluation events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// Evaluator parses and evaluates expressions against a Context. Parsed ASTs
// are cached by source text; the cache is safe for concurrent use.
type Evaluator struct {
	mode     Mode
	maxDepth int
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]Expr
}

// New returns an Evaluator in lenient mode with the default depth limit.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		mode:     Lenient,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
		cache:    make(map[string]Expr),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses src, consulting the evaluator's AST cache.
func (e *Evaluator) Parse(src string) (Expr, error) {
	e.mu.RLock()
	expr, ok := e.cache[src]
	e.mu.RUnlock()
	if ok {
		return expr, nil
	}
	expr, err := ParseWithDepth(src, e.maxDepth)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[src] = expr
	e.mu.Unlock()
	return expr, nil
}

// Evaluate parses src and evaluates it against ctx.
func (e *Evaluator) Evaluate(src string, ctx Context) (interface{}, error) {
	expr, err := e.Parse(src)
	if err != nil {
		return nil, err
	}
	return e.EvaluateExpr(expr, ctx)
}

// EvaluateExpr evaluates an already-parsed expression against ctx.
func (e *Evaluator) EvaluateExpr(expr Expr, ctx Context) (interface{}, error) {
	return e.eval(expr, &scope{ctx: ctx})
}

// EvaluateBool evaluates src and reports the truthiness of the result.
func (e *Evaluator) EvaluateBool(src string, ctx Context) (bool, error) {
	v, err := e.Evaluate(src, ctx)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// scope carries the context plus any lambda parameter bindings in effect.
type scope struct {
	ctx  Context
	vars map[string]interface{}
}

func (s *scope) bind(name string, v interface{}) *scope {
	child := &scope{ctx: s.ctx, vars: map[string]interface{}{name: v}}
	for k, val := range s.vars {
		if k != name {
			child.vars[k] = val
		}
	}
	return child
}

func (e *Evaluator) eval(expr Expr, sc *scope) (interface{}, error) {
	switch n := expr.(type) {
	case *LiteralExpr:
		return n.Value, nil

	case *PathExpr:
		return e.resolvePath(n, sc.ctx)

	case *VarExpr:
		v, ok := sc.vars[n.Name]
		if !ok {
			return nil, evalErrf(EvalInvalidContext, "unknown identifier %q", n.Name)
		}
		return v, nil

	case *MemberExpr:
		recv, err := e.eval(n.Recv, sc)
		if err != nil {
			return nil, err
		}
		key, err := e.eval(n.Key, sc)
		if err != nil {
			return nil, err
		}
		return e.member(recv, key)

	case *CallExpr:
		return e.evalCall(n, sc)

	case *LambdaExpr:
		return nil, evalErrf(EvalInvalidContext, "lambda is only valid as the argument to map, filter or flat_map")

	case *UnaryExpr:
		operand, err := e.eval(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case tokNot:
			return !Truthy(operand), nil
		case tokMinus:
			num, ok := AsNumber(operand)
			if !ok {
				return nil, evalErrf(EvalInvalidOperation, "cannot negate %s", KindOf(operand))
			}
			return -num, nil
		}
		return nil, evalErrf(EvalInvalidOperation, "unknown unary operator")

	case *BinaryExpr:
		return e.evalBinary(n, sc)

	default:
		return nil, evalErrf(EvalInvalidOperation, "unknown expression node")
	}
}

func (e *Evaluator) evalBinary(n *BinaryExpr, sc *scope) (interface{}, error) {
	left, err := e.eval(n.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.Right, sc)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case tokAnd:
		return Truthy(left) && Truthy(right), nil
	case tokOr:
		return Truthy(left) || Truthy(right), nil
	case tokEq:
		return Equal(left, right), nil
	case tokNeq:
		return !Equal(left, right), nil
	case tokGt, tokGte, tokLt, tokLte:
		// Null ordered against anything is false, matching null-aware
		// equality rather than erroring.
		if left == nil || right == nil {
			return false, nil
		}
		cmp, err := Compare(left, right)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case tokGt:
			return cmp > 0, nil
		case tokGte:
			return cmp >= 0, nil
		case tokLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case tokPlus:
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
		return e.arith(n.Op, left, right)
	case tokMinus, tokStar, tokSlash, tokPercent:
		return e.arith(n.Op, left, right)
	default:
		return nil, evalErrf(EvalInvalidOperation, "unknown binary operator")
	}
}

func (e *Evaluator) arith(op tokenType, left, right interface{}) (interface{}, error) {
	ln, lok := AsNumber(left)
	rn, rok := AsNumber(right)
	if !lok || !rok {
		return nil, evalErrf(EvalInvalidOperation, "operator %s requires numbers, got %s and %s",
			op, KindOf(left), KindOf(right))
	}
	switch op {
	case tokPlus:
		return ln + rn, nil
	case tokMinus:
		return ln - rn, nil
	case tokStar:
		return ln * rn, nil
	case tokSlash:
		if rn == 0 {
			return nil, evalErrf(EvalInvalidOperation, "division by zero")
		}
		return ln / rn, nil
	case tokPercent:
		if rn == 0 {
			return nil, evalErrf(EvalInvalidOperation, "modulo by zero")
		}
		return float64(int64(ln) % int64(rn)), nil
	}
	return nil, evalErrf(EvalInvalidOperation, "unknown arithmetic operator")
}

// resolvePath walks the context from a named root. In lenient mode every
// missing hop resolves to null; strict mode reports the first missing hop.
func (e *Evaluator) resolvePath(p *PathExpr, ctx Context) (interface{}, error) {
	cur, ok := ctx[p.Root]
	if !ok {
		if e.mode == Strict {
			return nil, &EvalError{Kind: EvalPathNotFound, Path: p.String(),
				Message: "root " + strconv.Quote(p.Root) + " not in context"}
		}
		return nil, nil
	}
	for i, seg := range p.Segments {
		next, found := descend(cur, seg)
		if !found {
			if e.mode == Strict {
				return nil, &EvalError{Kind: EvalPathNotFound, Path: p.String(),
					Message: "segment " + strconv.Quote(seg) + " (position " + strconv.Itoa(i+1) + ") not found"}
			}
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

// descend resolves one path segment against a value: object key lookup, or
// decimal index into an array.
func descend(v interface{}, seg string) (interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		out, ok := val[seg]
		return out, ok
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(val) {
			return nil, false
		}
		return val[idx], true
	default:
		return nil, false
	}
}

// member resolves x.key and x[key] accesses outside path syntax, honoring
// the evaluator mode the same way resolvePath does.
func (e *Evaluator) member(recv, key interface{}) (interface{}, error) {
	switch k := key.(type) {
	case string:
		obj, ok := recv.(map[string]interface{})
		if !ok {
			if e.mode == Strict {
				return nil, evalErrf(EvalPathNotFound, "cannot access key %q on %s", k, KindOf(recv))
			}
			return nil, nil
		}
		v, ok := obj[k]
		if !ok && e.mode == Strict {
			return nil, evalErrf(EvalPathNotFound, "key %q not found", k)
		}
		return v, nil
	default:
		idx, ok := AsNumber(key)
		if !ok {
			return nil, evalErrf(EvalInvalidOperation, "index must be a string or number, got %s", KindOf(key))
		}
		arr, ok := recv.([]interface{})
		if !ok {
			if e.mode == Strict {
				return nil, evalErrf(EvalPathNotFound, "cannot index %s", KindOf(recv))
			}
			return nil, nil
		}
		i := int(idx)
		if i < 0 || i >= len(arr) {
			if e.mode == Strict {
				return nil, evalErrf(EvalPathNotFound, "index %d out of range (length %d)", i, len(arr))
			}
			return nil, nil
		}
		return arr[i], nil
	}
}

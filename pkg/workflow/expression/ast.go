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

import "strings"

// Expr is a parsed expression node.
type Expr interface {
	// depth returns the nesting depth of the subtree rooted at this node,
	// used to enforce the parser's depth limit.
	depth() int
}

// PathExpr reads a value from the context: $root.segment.0.field.
// Segments are object keys or decimal array indexes.
type PathExpr struct {
	Root     string
	Segments []string
}

func (e *PathExpr) depth() int { return 1 }

// String renders the path in its source form.
func (e *PathExpr) String() string {
	if len(e.Segments) == 0 {
		return "$" + e.Root
	}
	return "$" + e.Root + "." + strings.Join(e.Segments, ".")
}

// LiteralExpr is a string, number, boolean or null literal.
type LiteralExpr struct {
	Value interface{}
}

func (e *LiteralExpr) depth() int { return 1 }

// VarExpr references a lambda parameter inside a lambda body.
type VarExpr struct {
	Name string
}

func (e *VarExpr) depth() int { return 1 }

// MemberExpr accesses a field or index of a receiver value: x.name, $a[0].
type MemberExpr struct {
	Recv Expr
	Key  Expr // evaluated; string keys index objects, numbers index arrays
}

func (e *MemberExpr) depth() int { return 1 + max2(e.Recv.depth(), e.Key.depth()) }

// CallExpr invokes a library function. Method-style calls carry the receiver
// as the implicit first argument: $items.join(", ") has Recv=$items.
type CallExpr struct {
	Recv Expr // nil for free-standing calls like upper("x")
	Name string
	Args []Expr
}

func (e *CallExpr) depth() int {
	d := 0
	if e.Recv != nil {
		d = e.Recv.depth()
	}
	for _, a := range e.Args {
		if ad := a.depth(); ad > d {
			d = ad
		}
	}
	return 1 + d
}

// LambdaExpr is a single-parameter anonymous function: x => x.active.
// Only valid as the sole argument to map, filter and flat_map.
type LambdaExpr struct {
	Param string
	Body  Expr
}

func (e *LambdaExpr) depth() int { return 1 + e.Body.depth() }

// BinaryExpr applies a binary operator to two operands.
type BinaryExpr struct {
	Op    tokenType
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) depth() int { return 1 + max2(e.Left.depth(), e.Right.depth()) }

// UnaryExpr applies ! or unary - to an operand.
type UnaryExpr struct {
	Op      tokenType
	Operand Expr
}

func (e *UnaryExpr) depth() int { return 1 + e.Operand.depth() }

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

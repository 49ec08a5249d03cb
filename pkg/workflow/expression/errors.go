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

import "fmt"

// SyntaxErrorKind classifies expression parse failures.
type SyntaxErrorKind string

const (
	// SyntaxUnexpectedToken indicates an unexpected token during parsing.
	SyntaxUnexpectedToken SyntaxErrorKind = "unexpected_token"
	// SyntaxUnterminated indicates an unterminated string or group.
	SyntaxUnterminated SyntaxErrorKind = "unterminated"
	// SyntaxBadNumber indicates a malformed numeric literal.
	SyntaxBadNumber SyntaxErrorKind = "bad_number"
	// SyntaxDepthExceeded indicates AST nesting beyond the configured maximum.
	SyntaxDepthExceeded SyntaxErrorKind = "depth_exceeded"
)

// SyntaxError represents an expression parse failure. Fatal to the step that
// used the expression; recoverable at workflow level via continue_on_error.
type SyntaxError struct {
	Kind SyntaxErrorKind

	// Pos is the byte offset into the expression text.
	Pos int

	// Expr is the expression text being parsed.
	Expr string

	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Pos, e.Expr, e.Message)
}

// EvalErrorKind classifies expression evaluation failures.
type EvalErrorKind string

const (
	// EvalPathNotFound indicates a missing path accessed in strict mode.
	EvalPathNotFound EvalErrorKind = "path_not_found"
	// EvalInvalidOperation indicates an operation with no defined result,
	// such as avg of an empty array or comparing mismatched types.
	EvalInvalidOperation EvalErrorKind = "invalid_operation"
	// EvalInvalidContext indicates a construct used where it is not valid,
	// such as a lambda outside map/filter/flat_map.
	EvalInvalidContext EvalErrorKind = "invalid_context"
	// EvalUnknownFunction indicates a call to a function not in the library.
	EvalUnknownFunction EvalErrorKind = "unknown_function"
	// EvalBadArgument indicates a function argument of the wrong type or count.
	EvalBadArgument EvalErrorKind = "bad_argument"
)

// EvalError represents an expression evaluation failure.
type EvalError struct {
	Kind EvalErrorKind

	// Function names the library function involved, when applicable.
	Function string

	// Path is the unresolvable path, for EvalPathNotFound.
	Path string

	Message string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	switch {
	case e.Function != "":
		return fmt.Sprintf("eval error in %s: %s", e.Function, e.Message)
	case e.Path != "":
		return fmt.Sprintf("eval error at %s: %s", e.Path, e.Message)
	default:
		return fmt.Sprintf("eval error: %s", e.Message)
	}
}

func syntaxErrf(kind SyntaxErrorKind, pos int, expr, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Kind: kind, Pos: pos, Expr: expr, Message: fmt.Sprintf(format, args...)}
}

func evalErrf(kind EvalErrorKind, format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

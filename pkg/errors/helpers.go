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

package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// IsPermissionDenied reports whether err is (or wraps) a permission denial.
func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied)
}

// IsRecursion reports whether err is (or wraps) a nested-workflow guard error.
func IsRecursion(err error) bool {
	var rec *RecursionError
	return errors.As(err, &rec)
}

// IsTimeout reports whether err is (or wraps) a step timeout.
func IsTimeout(err error) bool {
	var timeout *TimeoutError
	return errors.As(err, &timeout)
}

// Kind returns a stable classification string for an error, used in run
// results and synthetic step outputs. Unrecognized errors classify as
// "step_error".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsPermissionDenied(err):
		return "permission_denied"
	case IsRecursion(err):
		return "recursion"
	case IsTimeout(err):
		return "timeout"
	default:
		var validation *ValidationError
		if errors.As(err, &validation) {
			return "validation"
		}
		var tool *ToolError
		if errors.As(err, &tool) {
			return "tool_error"
		}
		var agent *AgentError
		if errors.As(err, &agent) {
			return "agent_error"
		}
		return "step_error"
	}
}

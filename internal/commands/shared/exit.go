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

// Package shared holds helpers common to the riff commands: exit codes and
// input parsing.
package shared

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Exit codes for the riff CLI.
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitCancelled       = 2
	ExitInvalidWorkflow = 3
	ExitUsage           = 64 // EX_USAGE from sysexits.h
)

// ExitError carries an exit code through cobra's error return.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Cause }

// ParseInputs builds the workflow input map from -i key=value flags and an
// optional JSON input file ("-" reads stdin). Flag values that parse as
// JSON scalars keep their type (42 is a number, true a boolean); everything
// else stays a string. Flags win over file entries on conflict.
func ParseInputs(flags []string, inputFile string) (map[string]interface{}, error) {
	inputs := make(map[string]interface{})

	if inputFile != "" {
		var data []byte
		var err error
		if inputFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(inputFile)
		}
		if err != nil {
			return nil, fmt.Errorf("reading input file: %w", err)
		}
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("input file must be a JSON object: %w", err)
		}
	}

	for _, flag := range flags {
		key, value, found := strings.Cut(flag, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", flag)
		}
		inputs[key] = coerceValue(value)
	}
	return inputs, nil
}

// coerceValue interprets a flag value as a JSON scalar where unambiguous.
func coerceValue(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

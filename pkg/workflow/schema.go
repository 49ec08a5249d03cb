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

package workflow

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/riffware/riff/pkg/errors"
)

// definitionSchema is the structural contract for workflow documents,
// checked before semantic validation so shape defects get schema-quality
// messages instead of zero-value surprises downstream.
const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "steps", "entrypoints"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "version": {"type": "string"},
    "entrypoints": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["step"],
        "properties": {"step": {"type": "string", "minLength": 1}}
      }
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {
            "type": "string",
            "enum": ["tool", "skill", "agent", "workflow", "condition", "wait", "loop", "merge", "switch"]
          },
          "config": {"type": "object"},
          "next": {"type": "string"},
          "on_success": {"type": "string"},
          "on_failure": {"type": "string"},
          "when": {"type": "string"},
          "continue_on_error": {"type": "boolean"},
          "outputs": {"type": "object", "additionalProperties": {"type": "string"}},
          "retry": {
            "type": "object",
            "properties": {
              "count": {"type": "integer", "minimum": 0},
              "backoff_base_ms": {"type": "integer", "minimum": 0},
              "multiplier": {"type": "number", "minimum": 0},
              "max_delay_ms": {"type": "integer", "minimum": 0},
              "retry_timeouts": {"type": "boolean"}
            }
          },
          "timeout_seconds": {"type": "number", "minimum": 0}
        }
      }
    },
    "execution": {
      "type": "object",
      "properties": {
        "timeout_seconds": {"type": "number", "minimum": 0},
        "error_policy": {"type": "string", "enum": ["abort", "route_as_failure"]},
        "strict_paths": {"type": "boolean"},
        "switch_match_order": {"type": "string", "enum": ["exact_first", "pattern_first"]},
        "max_recursion_depth": {"type": "integer", "minimum": 1},
        "max_loop_iterations": {"type": "integer", "minimum": 1},
        "max_condition_depth": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(definitionSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parsing workflow schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("workflow.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("registering workflow schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("workflow.schema.json")
	})
	return compiledSchema, schemaErr
}

// validateSchema checks a raw definition document against the embedded
// JSON Schema. YAML documents are decoded first; JSON is a YAML subset so
// both syntaxes take the same route.
func validateSchema(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &errors.ValidationError{
			Field:   "definition",
			Message: fmt.Sprintf("document is not valid YAML or JSON: %v", err),
		}
	}
	if err := schema.Validate(doc); err != nil {
		return &errors.ValidationError{
			Field:      "definition",
			Message:    fmt.Sprintf("schema validation failed: %v", err),
			Suggestion: "check required fields: name, entrypoints, steps (each with id and kind)",
		}
	}
	return nil
}

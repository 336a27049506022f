package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when a raw flow document fails structural
// validation, before it is unmarshaled into a FlowDefinition.
var ErrSchemaViolation = errors.New("flow document schema violation")

const flowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "schedule", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "schedule": {"type": "string", "minLength": 1},
    "enabled": {"type": "boolean"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["fetch", "delay", "condition", "logic", "log", "notify"]},
          "id": {"type": "string"},
          "url": {"type": "string"},
          "method": {"type": "string"},
          "headers": {"type": "object", "additionalProperties": {"type": "string"}},
          "body": {"type": "string"},
          "timeout": {"type": "string"},
          "duration": {"type": "string"},
          "input": {"type": "string"},
          "operator": {"enum": ["=", "!=", "<", ">", "<=", ">="]},
          "value": {},
          "mode": {"enum": ["AND", "OR"]},
          "conditions": {"type": "array", "items": {"type": "object"}},
          "message": {"type": "string"},
          "rawPayload": {"type": "string"},
          "include": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// ValidateFlowDocument structurally validates a raw JSON flow definition
// against the document schema. Domain invariants (duplicate fetch ids,
// notify field requirements) are checked by FlowDefinition.Validate after
// unmarshaling.
func ValidateFlowDocument(document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(flowSchema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(violations, "; "))
}

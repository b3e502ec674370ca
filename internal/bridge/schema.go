package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrEnvelopeInvalid marks an inbound message rejected by the envelope schema.
var ErrEnvelopeInvalid = errors.New("bridge: envelope invalid")

const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["operation", "undo", "redo", "external_change", "snapshot"]},
    "request_id": {"type": "string", "maxLength": 128},
    "base_version": {"type": "integer", "minimum": 0},
    "operation": {"$ref": "#/$defs/operation"},
    "selection": {
      "type": "object",
      "properties": {
        "path": {"$ref": "#/$defs/path"},
        "start": {"type": "integer", "minimum": 0},
        "end": {"type": "integer", "minimum": 0}
      }
    },
    "text": {"type": "string"}
  },
  "additionalProperties": false,
  "allOf": [
    {"if": {"properties": {"type": {"const": "operation"}}}, "then": {"required": ["operation"]}},
    {"if": {"properties": {"type": {"const": "external_change"}}}, "then": {"required": ["text"]}}
  ],
  "$defs": {
    "path": {"type": "array", "items": {"type": "integer", "minimum": 0}},
    "operation": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"enum": ["insert", "delete", "replace", "move", "text_edit", "batch"]},
        "path": {"$ref": "#/$defs/path"},
        "index": {"type": "integer", "minimum": 0},
        "to_path": {"$ref": "#/$defs/path"},
        "to_index": {"type": "integer", "minimum": 0},
        "node": {"type": "object", "required": ["kind"]},
        "range": {
          "type": "object",
          "properties": {
            "start": {"type": "integer", "minimum": 0},
            "end": {"type": "integer", "minimum": 0}
          }
        },
        "text": {"type": "string"},
        "target": {"type": "string"},
        "to_target": {"type": "string"},
        "ops": {"type": "array", "items": {"$ref": "#/$defs/operation"}},
        "base_version": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

// Issue is one schema violation.
type Issue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// EnvelopeError lists the schema violations of an inbound message.
type EnvelopeError struct {
	Issues []Issue
	Cause  error
}

func (e *EnvelopeError) Error() string {
	if len(e.Issues) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", ErrEnvelopeInvalid, e.Cause)
		}
		return ErrEnvelopeInvalid.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		location := issue.Location
		if location == "" {
			location = "#"
		} else if !strings.HasPrefix(location, "#") {
			location = "#" + location
		}
		parts = append(parts, fmt.Sprintf("%s: %s", location, issue.Message))
	}
	return fmt.Sprintf("%s: %s", ErrEnvelopeInvalid, strings.Join(parts, "; "))
}

func (e *EnvelopeError) Unwrap() error { return ErrEnvelopeInvalid }

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func envelopeValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("envelope.json", strings.NewReader(envelopeSchema)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = compiler.Compile("envelope.json")
	})
	return compiled, compileErr
}

// ValidateEnvelope checks raw against the inbound envelope schema.
func ValidateEnvelope(raw []byte) error {
	schema, err := envelopeValidator()
	if err != nil {
		return fmt.Errorf("bridge: compile envelope schema: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return &EnvelopeError{Cause: err}
	}
	if err := schema.Validate(payload); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &EnvelopeError{Issues: collectIssues(verr), Cause: err}
		}
		return &EnvelopeError{Cause: err}
	}
	return nil
}

func collectIssues(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}

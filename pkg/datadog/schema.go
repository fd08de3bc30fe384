package datadog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema pins the literal defaults of the import format
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["product", "name", "message", "tags", "source", "queries", "options", "cases"],
  "properties": {
    "product": {"type": "array", "const": ["security_monitoring"]},
    "name": {"type": "string", "pattern": "^SIGMA Threshold Detection - "},
    "message": {"type": "string", "pattern": "^SIGMA Rule ID: "},
    "tags": {"type": "array", "items": {"type": "string"}},
    "source": {"type": "string"},
    "queries": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "query", "groupByFields", "distinctFields", "aggregation"],
        "properties": {
          "name": {"type": "string"},
          "query": {"type": "string", "minLength": 1},
          "groupByFields": {"type": "array", "const": ["@userIdentity.arn"]},
          "distinctFields": {"type": "array", "maxItems": 0},
          "aggregation": {"type": "string"}
        }
      }
    },
    "options": {
      "type": "object",
      "additionalProperties": false,
      "required": ["detectionMethod", "evaluationWindow", "keepAlive", "maxSignalDuration"],
      "properties": {
        "detectionMethod": {"const": "threshold"},
        "evaluationWindow": {"const": 3600},
        "keepAlive": {"const": 3600},
        "maxSignalDuration": {"const": 86400}
      }
    },
    "cases": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["status", "notifications", "name", "condition"],
        "properties": {
          "status": {"enum": ["informational", "low", "medium", "high", "critical"]},
          "notifications": {"type": "array", "maxItems": 0},
          "name": {"type": "string"},
          "condition": {"const": "a > 0"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	})
	return compiledSchema, schemaErr
}

// ErrInvalidDocument indicates that an assembled document does not conform to import format
type ErrInvalidDocument struct {
	RuleID  string
	Reasons []string
}

func (e ErrInvalidDocument) Error() string {
	return fmt.Sprintf("invalid rule document for %s: %s", e.RuleID, strings.Join(e.Reasons, "; "))
}

// ValidateDocument checks rule document against the import format schema
func ValidateDocument(ruleID string, doc *RuleDocument) error {
	if doc == nil {
		return ErrInvalidDocument{RuleID: ruleID, Reasons: []string{"document is nil"}}
	}
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("document schema: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return ErrInvalidDocument{RuleID: ruleID, Reasons: reasons}
}

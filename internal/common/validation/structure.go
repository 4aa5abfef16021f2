// Package validation checks form structure payloads announced by external
// scripts before they are stored on a pending connection.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// structureSchema describes the provider form layout: a titled form with a
// list of named fields. Scripts send this as an opaque JSON string; only the
// envelope is validated, field props stay free-form.
const structureSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"fields": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string"},
					"required": {"type": "boolean"}
				},
				"required": ["name"]
			}
		}
	},
	"required": ["fields"]
}`

var structureLoader = gojsonschema.NewStringLoader(structureSchema)

// ValidationError describes one schema violation in a structure payload.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateStructure validates a serialized form layout. It returns the list
// of violations, or an error when the payload is not even valid JSON.
func ValidateStructure(structure string) ([]ValidationError, error) {
	docLoader := gojsonschema.NewStringLoader(structure)

	result, err := gojsonschema.Validate(structureLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("structure is not valid JSON: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]ValidationError, 0, len(result.Errors()))
	for _, resErr := range result.Errors() {
		violations = append(violations, ValidationError{
			Field:   resErr.Field(),
			Message: resErr.Description(),
		})
	}
	return violations, nil
}

// FormatViolations renders violations as a single details string for error
// payloads and logs.
func FormatViolations(violations []ValidationError) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return strings.Join(parts, "; ")
}

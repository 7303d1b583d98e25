package chain

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// CompileSchema compiles a JSON Schema document. A nil or empty schema
// compiles to nil, which accepts any value.
func CompileSchema(schema map[string]interface{}) (*gojsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
}

// validateAgainst returns the validator's error list for value, empty when valid
func validateAgainst(schema *gojsonschema.Schema, value interface{}) ([]string, error) {
	if schema == nil {
		return nil, nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("failed to validate response: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}

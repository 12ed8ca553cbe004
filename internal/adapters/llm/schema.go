package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var addressFields = []string{"house_number", "road", "unit", "city", "state", "postcode", "country", "raw_text"}

// AddressSchema returns the JSON Schema the model output must satisfy.
// Every address field is an optional string.
func AddressSchema() map[string]any {
	props := make(map[string]any, len(addressFields)+1)
	for _, f := range addressFields {
		props[f] = map[string]any{"type": "string"}
	}
	props["confidence"] = map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}

	return map[string]any{
		"type":     "object",
		"required": []string{"addresses"},
		"properties": map[string]any{
			"addresses": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": props,
				},
			},
		},
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(AddressSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("addresses.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("addresses.json")
	})
	return schema, schemaErr
}

// validateAddresses checks data against AddressSchema.
func validateAddresses(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Package schemavalidation validates exported proof files and
// attestation payloads against the JSON Schema documents in
// docs/schema, closing the "expose a self-test that encodes a fixture
// corpus" note in SPEC_FULL.md's design notes. Grounded on
// witnessd/internal/schemavalidation, which does the same for
// witness-proof-v1.schema.json.
package schemavalidation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator compiles a JSON Schema once and validates any number of
// instances against it.
type Validator struct {
	schema *jsonschema.Schema
}

// Compile reads and compiles the schema document at schemaPath.
func Compile(schemaPath string) (*Validator, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("schemavalidation: read schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schemavalidation: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("schemavalidation: compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateBytes parses raw as JSON and validates it against the schema.
func (v *Validator) ValidateBytes(raw []byte) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("schemavalidation: unmarshal instance: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("schemavalidation: validate: %w", err)
	}
	return nil
}

// ValidateFile reads instancePath and validates it against the schema.
func (v *Validator) ValidateFile(instancePath string) error {
	data, err := os.ReadFile(instancePath)
	if err != nil {
		return fmt.Errorf("schemavalidation: read instance: %w", err)
	}
	return v.ValidateBytes(data)
}

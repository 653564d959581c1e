package server

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed webhook.schema.json
var webhookSchema []byte

// PayloadValidator checks webhook bodies against the embedded JSON schema.
type PayloadValidator struct {
	schema *gojsonschema.Schema
}

// NewPayloadValidator compiles the webhook schema.
func NewPayloadValidator() (*PayloadValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(webhookSchema))
	if err != nil {
		return nil, fmt.Errorf("server: parse webhook schema: %w", err)
	}
	return &PayloadValidator{schema: compiled}, nil
}

// ValidateBytes returns nil when raw is an acceptable webhook body.
func (v *PayloadValidator) ValidateBytes(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("server: empty body")
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("server: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return fmt.Errorf("server: schema validation failed")
	}
	return fmt.Errorf("server: schema validation failed: %s", result.Errors()[0])
}

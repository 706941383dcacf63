package circuits

import (
	"encoding/json"
	"fmt"
)

// InputSchema is a structural description of the inputs a circuit accepts,
// shaped like a JSON schema object so it can be served to API clients
// unchanged. Only the subset needed to validate inference inputs is
// interpreted: top-level object type, property types and required keys.
type InputSchema struct {
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties,omitempty"`
	Required   []string             `json:"required,omitempty"`
}

// Property describes one field of the input object.
type Property struct {
	Type     string    `json:"type"`
	Items    *Property `json:"items,omitempty"`
	MinItems int       `json:"minItems,omitempty"`
	MaxItems int       `json:"maxItems,omitempty"`
}

// Validate checks a raw JSON input document against the schema. It verifies
// that the document is an object, that every required property is present
// and that present properties match their declared primitive type.
func (s *InputSchema) Validate(raw []byte) error {
	if s == nil {
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("inputs are not a JSON object: %w", err)
	}
	for _, key := range s.Required {
		if _, ok := doc[key]; !ok {
			return fmt.Errorf("missing required input %q", key)
		}
	}
	for key, value := range doc {
		prop, ok := s.Properties[key]
		if !ok || prop == nil {
			continue
		}
		if err := prop.check(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Property) check(key string, value json.RawMessage) error {
	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		return fmt.Errorf("input %q: %w", key, err)
	}
	switch p.Type {
	case "", "object":
		// untyped or nested objects are accepted as-is
		return nil
	case "array":
		items, ok := decoded.([]any)
		if !ok {
			return fmt.Errorf("input %q: expected array", key)
		}
		if p.MinItems > 0 && len(items) < p.MinItems {
			return fmt.Errorf("input %q: expected at least %d items, got %d", key, p.MinItems, len(items))
		}
		if p.MaxItems > 0 && len(items) > p.MaxItems {
			return fmt.Errorf("input %q: expected at most %d items, got %d", key, p.MaxItems, len(items))
		}
		return nil
	case "number", "integer":
		if _, ok := decoded.(float64); !ok {
			return fmt.Errorf("input %q: expected %s", key, p.Type)
		}
		return nil
	case "string":
		if _, ok := decoded.(string); !ok {
			return fmt.Errorf("input %q: expected string", key)
		}
		return nil
	case "boolean":
		if _, ok := decoded.(bool); !ok {
			return fmt.Errorf("input %q: expected boolean", key)
		}
		return nil
	default:
		return fmt.Errorf("input %q: unknown schema type %q", key, p.Type)
	}
}

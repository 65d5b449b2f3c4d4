package llm

import (
	"encoding/json"

	"google.golang.org/genai"
)

// Schema types.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Schema is a provider-neutral JSON schema subset for structured output.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	// Order keeps property order stable in generated schemas.
	Order    []string
	Items    *Schema
	Enum     []string
	Required []string
	Minimum  *float64
	Maximum  *float64
}

// Property is a named field used to build an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// Object builds an object schema where every property is required.
func Object(props ...Property) *Schema {
	s := &Schema{Type: TypeObject, Properties: make(map[string]*Schema, len(props))}
	for _, p := range props {
		s.Properties[p.Name] = p.Schema
		s.Order = append(s.Order, p.Name)
		s.Required = append(s.Required, p.Name)
	}
	return s
}

// Field pairs a name with a schema.
func Field(name string, s *Schema) Property { return Property{Name: name, Schema: s} }

// String builds a string schema.
func String(desc string) *Schema { return &Schema{Type: TypeString, Description: desc} }

// Number builds a number schema.
func Number(desc string) *Schema { return &Schema{Type: TypeNumber, Description: desc} }

// Integer builds an integer schema.
func Integer(desc string) *Schema { return &Schema{Type: TypeInteger, Description: desc} }

// Boolean builds a boolean schema.
func Boolean(desc string) *Schema { return &Schema{Type: TypeBoolean, Description: desc} }

// Enum builds a string schema restricted to values.
func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: values}
}

// Array builds an array schema.
func Array(desc string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: items}
}

// Range sets numeric bounds and returns s.
func (s *Schema) Range(lo, hi float64) *Schema {
	s.Minimum, s.Maximum = &lo, &hi
	return s
}

// ToGenai converts the schema for the Gemini API.
func (s *Schema) ToGenai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	if len(s.Enum) > 0 {
		out.Format = "enum"
	}
	if s.Items != nil {
		out.Items = s.Items.ToGenai()
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.ToGenai()
		}
		out.PropertyOrdering = s.Order
	}
	return out
}

// JSONSchema renders the schema as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		out["additionalProperties"] = false
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler so a Schema can be handed to the
// OpenAI response format directly.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.JSONSchema())
}

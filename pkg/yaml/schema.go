package yaml

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator reflects a configuration value into a JSON schema,
// pulling descriptions from Go doc comments.
type SchemaGenerator struct {
	value any
	bases []string
}

// NewSchemaGenerator creates a generator for value. bases are the module
// paths used to resolve Go comments from source.
func NewSchemaGenerator(value any, bases ...string) *SchemaGenerator {
	return &SchemaGenerator{
		value: value,
		bases: bases,
	}
}

// Generate produces the indented JSON schema document.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	for _, base := range g.bases {
		err := r.AddGoComments(base, "./")
		if err != nil {
			return nil, fmt.Errorf("add go comments: %w", err)
		}
	}

	jss := r.Reflect(g.value)

	data, err := json.MarshalIndent(jss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return data, nil
}

package config

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/rootgc/rootgc/pkg/yaml"
)

// OwnedOnly is a tri-state switch restricting a run to roots owned by the
// invoking user.
type OwnedOnly string

const (
	// OwnedOnlyAuto enables the restriction for non-root users only.
	OwnedOnlyAuto OwnedOnly = "auto"

	OwnedOnlyTrue  OwnedOnly = "true"
	OwnedOnlyFalse OwnedOnly = "false"
)

// Instantiate resolves the switch for the invoking user.
func (o OwnedOnly) Instantiate(uid uint32) bool {
	switch o {
	case OwnedOnlyTrue:
		return true
	case OwnedOnlyFalse:
		return false
	case OwnedOnlyAuto:
		return uid != 0
	}

	return uid != 0
}

func (o OwnedOnly) Validate() error {
	switch o {
	case "", OwnedOnlyAuto, OwnedOnlyTrue, OwnedOnlyFalse:
		return nil
	}

	return fmt.Errorf("invalid ownedOnly value %q: must be auto, true, or false", string(o))
}

// UnmarshalYAML accepts both the string form and a plain YAML boolean.
func (o *OwnedOnly) UnmarshalYAML(data []byte) error {
	var b bool

	err := yaml.Unmarshal(data, &b)
	if err == nil {
		if b {
			*o = OwnedOnlyTrue
		} else {
			*o = OwnedOnlyFalse
		}

		return nil
	}

	var s string

	err = yaml.Unmarshal(data, &s)
	if err != nil {
		return fmt.Errorf("unmarshal ownedOnly: %w", err)
	}

	*o = OwnedOnly(s)

	return o.Validate()
}

func (OwnedOnly) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title: "Owned Only",
		OneOf: []*jsonschema.Schema{
			{Type: "string", Enum: []any{"auto", "true", "false"}},
			{Type: "boolean"},
		},
	}
}

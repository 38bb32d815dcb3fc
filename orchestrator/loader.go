package orchestrator

import (
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadDefinition parses a YAML workflow document:
//
//	name: review_pipeline
//	steps:
//	  - id: draft
//	    name: Draft
//	    role_required: writer
//	    tool_required: write_draft
//	transitions:
//	  draft:
//	    success: review
func LoadDefinition(r io.Reader) (Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Definition{}, fmt.Errorf("read workflow definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse workflow definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}

	return def, nil
}

// DefinitionFromMap decodes a workflow definition authored as a generic map,
// the shape external tooling produces.
func DefinitionFromMap(m map[string]any) (Definition, error) {
	var def Definition

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &def,
	})
	if err != nil {
		return Definition{}, err
	}

	if err := decoder.Decode(m); err != nil {
		return Definition{}, fmt.Errorf("decode workflow definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}

	return def, nil
}

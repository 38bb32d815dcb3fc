package role

import (
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadRequirements parses a YAML document mapping role ids to requirements:
//
//	writer:
//	  skills:
//	    writing: 0.6
//	  permissions: [publish]
//	  priority: 1
func LoadRequirements(r io.Reader) (map[string]Requirement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read role requirements: %w", err)
	}

	var reqs map[string]Requirement
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parse role requirements: %w", err)
	}

	return reqs, nil
}

// RequirementsFromMap decodes role requirements authored as generic maps,
// the shape external tooling produces.
func RequirementsFromMap(m map[string]any) (map[string]Requirement, error) {
	var reqs map[string]Requirement

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &reqs,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("decode role requirements: %w", err)
	}

	return reqs, nil
}

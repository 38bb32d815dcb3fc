package tool

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// CompositionStep is one tool invocation inside a composition. Inputs may hold
// literal values, "${stepID.outputKey}" references to earlier step outputs, or
// "$input.key" references to composition-level inputs.
type CompositionStep struct {
	ID     string         `yaml:"id" json:"id"`
	Tool   string         `yaml:"tool" json:"tool"`
	Inputs map[string]any `yaml:"inputs" json:"inputs,omitempty"`
}

// OutputMapping extracts a (possibly dotted) path from a step's result map
// into a named composition output.
type OutputMapping struct {
	StepID string `yaml:"step_id" json:"step_id"`
	Output string `yaml:"output" json:"output"`
}

// Composition chains tools into a small data-flow pipeline: steps run in
// order, later steps consume earlier outputs through "${...}" references, and
// output mappings project step results into the composition's outputs.
type Composition struct {
	Name           string                   `yaml:"name" json:"name"`
	Description    string                   `yaml:"description" json:"description,omitempty"`
	Steps          []CompositionStep        `yaml:"steps" json:"steps"`
	OutputMappings map[string]OutputMapping `yaml:"output_mappings" json:"output_mappings,omitempty"`
}

// NewComposition starts a composition builder.
func NewComposition(name, description string) *Composition {
	return &Composition{
		Name:           name,
		Description:    description,
		OutputMappings: map[string]OutputMapping{},
	}
}

// StepOptions configures an AddStep call.
type StepOptions struct {
	// ID overrides the generated "step_<n>" id.
	ID string
	// Inputs seeds the step's input map.
	Inputs map[string]any
}

// AddStep appends a tool invocation. Without an explicit id the step is named
// "step_<n>" by position. Returns the composition for chaining.
func (c *Composition) AddStep(toolName string, optFns ...func(o *StepOptions)) *Composition {
	opts := StepOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ID == "" {
		opts.ID = fmt.Sprintf("step_%d", len(c.Steps)+1)
	}
	if opts.Inputs == nil {
		opts.Inputs = map[string]any{}
	}

	c.Steps = append(c.Steps, CompositionStep{
		ID:     opts.ID,
		Tool:   toolName,
		Inputs: opts.Inputs,
	})

	return c
}

// MapStep wires an output of one step into an input of a later step by
// writing a "${fromStep.fromOutput}" reference. The destination step must
// already exist.
func (c *Composition) MapStep(fromStep, fromOutput, toStep, toInput string) error {
	for i := range c.Steps {
		if c.Steps[i].ID != toStep {
			continue
		}

		if c.Steps[i].Inputs == nil {
			c.Steps[i].Inputs = map[string]any{}
		}
		c.Steps[i].Inputs[toInput] = fmt.Sprintf("${%s.%s}", fromStep, fromOutput)

		return nil
	}

	return fmt.Errorf("step %q not found in composition %q", toStep, c.Name)
}

// MapInput wires a composition-level input into a step input by writing a
// "$input.<name>" reference. The destination step must already exist.
func (c *Composition) MapInput(compInput, toStep, toInput string) error {
	for i := range c.Steps {
		if c.Steps[i].ID != toStep {
			continue
		}

		if c.Steps[i].Inputs == nil {
			c.Steps[i].Inputs = map[string]any{}
		}
		c.Steps[i].Inputs[toInput] = "$input." + compInput

		return nil
	}

	return fmt.Errorf("step %q not found in composition %q", toStep, c.Name)
}

// MapOutput projects a step's output path into a named composition output.
// Returns the composition for chaining.
func (c *Composition) MapOutput(stepID, outputPath, name string) *Composition {
	if c.OutputMappings == nil {
		c.OutputMappings = map[string]OutputMapping{}
	}

	c.OutputMappings[name] = OutputMapping{StepID: stepID, Output: outputPath}

	return c
}

// Validate checks the composition for structural problems: it must have at
// least one step, step ids must be unique and every step must name a tool.
func (c *Composition) Validate() error {
	if len(c.Steps) == 0 {
		return fmt.Errorf("composition %q has no steps", c.Name)
	}

	seen := map[string]bool{}
	for _, step := range c.Steps {
		if step.ID == "" {
			return fmt.Errorf("composition %q has a step without an id", c.Name)
		}
		if seen[step.ID] {
			return fmt.Errorf("composition %q has duplicate step id %q", c.Name, step.ID)
		}
		seen[step.ID] = true

		if step.Tool == "" {
			return fmt.Errorf("step %q names no tool", step.ID)
		}
	}

	return nil
}

// CompositionFromMap decodes a composition authored as a generic map, the
// shape external tooling produces.
func CompositionFromMap(m map[string]any) (*Composition, error) {
	var comp Composition

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &comp,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("decode composition: %w", err)
	}

	return &comp, nil
}

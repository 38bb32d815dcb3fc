package orchestrator

import "fmt"

// Step is one unit of work in a workflow definition.
type Step struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	// RoleRequired selects the executing agent through an active role
	// assignment when no explicit per-instance assignment exists.
	RoleRequired string `yaml:"role_required" json:"role_required,omitempty"`
	// ToolRequired names the tool to execute; empty means a pass-through step.
	ToolRequired string `yaml:"tool_required" json:"tool_required,omitempty"`
	// Inputs are the tool arguments. String values of the form
	// "${context.a.b}" are resolved against the instance context.
	Inputs map[string]any `yaml:"inputs" json:"inputs,omitempty"`
	// OutputMapping maps result paths ("$" for the whole result, else a
	// dotted path) to dotted instance-context paths.
	OutputMapping map[string]string `yaml:"output_mapping" json:"output_mapping,omitempty"`
	// TimeoutSeconds bounds each tool attempt. Zero means no timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// RetryCount is the number of re-attempts after a failed tool call.
	RetryCount int `yaml:"retry_count" json:"retry_count"`
	// OnFailure redirects execution to another step when this one fails.
	OnFailure string         `yaml:"on_failure" json:"on_failure,omitempty"`
	Metadata  map[string]any `yaml:"metadata" json:"metadata,omitempty"`
}

// Definition is a complete workflow: steps plus status-keyed transitions.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Version     string `yaml:"version" json:"version,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
	// Transitions maps step id -> result status -> next step id. The key
	// "default" matches any status without an explicit entry. A step with no
	// matching transition ends the workflow.
	Transitions map[string]map[string]string `yaml:"transitions" json:"transitions,omitempty"`
	// InitialStepID selects the entry step; empty means the first step.
	InitialStepID string         `yaml:"initial_step_id" json:"initial_step_id,omitempty"`
	Metadata      map[string]any `yaml:"metadata" json:"metadata,omitempty"`
}

// Validate checks the definition for structural problems: at least one step,
// unique step ids, and every transition, redirect and initial-step reference
// must name an existing step.
func (d Definition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", d.Name)
	}

	ids := map[string]bool{}
	for _, step := range d.Steps {
		if step.ID == "" {
			return fmt.Errorf("workflow %q has a step without an id", d.Name)
		}
		if ids[step.ID] {
			return fmt.Errorf("workflow %q has duplicate step id %q", d.Name, step.ID)
		}
		ids[step.ID] = true
	}

	for _, step := range d.Steps {
		if step.OnFailure != "" && !ids[step.OnFailure] {
			return fmt.Errorf("step %q redirects to unknown step %q", step.ID, step.OnFailure)
		}
	}

	for from, targets := range d.Transitions {
		if !ids[from] {
			return fmt.Errorf("transition from unknown step %q", from)
		}
		for status, to := range targets {
			if !ids[to] {
				return fmt.Errorf("transition %q/%q targets unknown step %q", from, status, to)
			}
		}
	}

	if d.InitialStepID != "" && !ids[d.InitialStepID] {
		return fmt.Errorf("initial step %q does not exist", d.InitialStepID)
	}

	return nil
}

// step returns the step with the given id.
func (d Definition) step(id string) (Step, bool) {
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}

	return Step{}, false
}

// initialStep returns the entry step id.
func (d Definition) initialStep() string {
	if d.InitialStepID != "" {
		return d.InitialStepID
	}
	if len(d.Steps) > 0 {
		return d.Steps[0].ID
	}

	return ""
}

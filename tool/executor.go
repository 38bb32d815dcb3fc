package tool

import (
	"strings"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/util"
	"github.com/hupe1980/agentfabric/logging"
)

// compositionInputPrefix marks a step input that references a composition-level input.
const compositionInputPrefix = "$input."

// CompositionResult carries the outcome of a composition run: the mapped
// outputs plus every step's raw result (a failed step's slot holds
// {"error": <message>}).
type CompositionResult struct {
	Outputs map[string]any            `json:"outputs"`
	Steps   map[string]map[string]any `json:"steps"`
}

// Executor runs single tools and compositions on behalf of an agent. Tool
// lookup, permission checks and accountability metrics live with the agent;
// the executor contributes result normalization and composition data flow.
type Executor struct {
	logger logging.Logger
}

// NewExecutor creates a tool executor.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{logger: opts.Logger}
}

// Execute delegates a single tool call to the agent and normalizes the result
// to a map: a non-map return value is wrapped as {"result": value}.
func (e *Executor) Execute(toolCtx *core.ToolContext, a core.Agent, toolName string, args map[string]any) (map[string]any, error) {
	result, err := a.ExecuteTool(toolCtx, toolName, args)
	if err != nil {
		return nil, err
	}

	if m, ok := result.(map[string]any); ok {
		return m, nil
	}

	return map[string]any{"result": result}, nil
}

// ExecuteComposition runs a composition's steps in order with partial-result
// semantics: a failing step records {"error": ...} as its result and the
// remaining steps still run.
//
// Step input resolution:
//
//	"${stepID.outputKey}"  -> a prior step's output (dotted path into its
//	                          result map; unresolvable refs leave the input unset)
//	"$input.key"           -> a composition-level input (unset if absent)
//	anything else          -> passed through literally
func (e *Executor) ExecuteComposition(toolCtx *core.ToolContext, a core.Agent, comp *Composition, inputs map[string]any) (CompositionResult, error) {
	if err := comp.Validate(); err != nil {
		return CompositionResult{}, err
	}

	stepResults := map[string]map[string]any{}

	for _, step := range comp.Steps {
		args := e.resolveInputs(step, stepResults, inputs)

		result, err := e.Execute(toolCtx, a, step.Tool, args)
		if err != nil {
			e.logger.Error("composition step failed",
				"composition", comp.Name, "step", step.ID, "tool", step.Tool, "error", err.Error())

			stepResults[step.ID] = map[string]any{"error": err.Error()}

			continue
		}

		stepResults[step.ID] = result
	}

	outputs := map[string]any{}
	for name, mapping := range comp.OutputMappings {
		result, ok := stepResults[mapping.StepID]
		if !ok {
			continue
		}

		value, _ := util.LookupPath(result, mapping.Output)
		outputs[name] = value
	}

	return CompositionResult{Outputs: outputs, Steps: stepResults}, nil
}

func (e *Executor) resolveInputs(step CompositionStep, stepResults map[string]map[string]any, inputs map[string]any) map[string]any {
	args := map[string]any{}

	for key, raw := range step.Inputs {
		if ref, ok := util.RefPath(raw); ok {
			stepID, outputKey, found := strings.Cut(ref, ".")
			if !found {
				continue
			}

			if result, ok := stepResults[stepID]; ok {
				if value, ok := util.LookupPath(result, outputKey); ok {
					args[key] = value
				}
			}

			continue
		}

		if s, ok := raw.(string); ok && strings.HasPrefix(s, compositionInputPrefix) {
			if value, ok := inputs[strings.TrimPrefix(s, compositionInputPrefix)]; ok {
				args[key] = value
			}

			continue
		}

		args[key] = raw
	}

	return args
}

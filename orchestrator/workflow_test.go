package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_Validate(t *testing.T) {
	valid := Definition{
		Name: "pipeline",
		Steps: []Step{
			{ID: "a", Name: "A", OnFailure: "b"},
			{ID: "b", Name: "B"},
		},
		Transitions:   map[string]map[string]string{"a": {"success": "b"}},
		InitialStepID: "a",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		def  Definition
	}{
		{"no steps", Definition{Name: "empty"}},
		{"duplicate ids", Definition{Steps: []Step{{ID: "a"}, {ID: "a"}}}},
		{"missing id", Definition{Steps: []Step{{Name: "unnamed"}}}},
		{"unknown redirect", Definition{Steps: []Step{{ID: "a", OnFailure: "ghost"}}}},
		{"unknown transition source", Definition{
			Steps:       []Step{{ID: "a"}},
			Transitions: map[string]map[string]string{"ghost": {"success": "a"}},
		}},
		{"unknown transition target", Definition{
			Steps:       []Step{{ID: "a"}},
			Transitions: map[string]map[string]string{"a": {"success": "ghost"}},
		}},
		{"unknown initial step", Definition{Steps: []Step{{ID: "a"}}, InitialStepID: "ghost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.def.Validate())
		})
	}
}

func TestDefinition_InitialStep(t *testing.T) {
	def := Definition{Steps: []Step{{ID: "first"}, {ID: "second"}}}
	assert.Equal(t, "first", def.initialStep())

	def.InitialStepID = "second"
	assert.Equal(t, "second", def.initialStep())
}

func TestLoadDefinition(t *testing.T) {
	doc := `
name: review_pipeline
description: Draft and review
version: "2.0"
steps:
  - id: draft
    name: Draft
    role_required: writer
    tool_required: write_draft
    inputs:
      topic: ${context.topic}
    output_mapping:
      text: draft.text
    timeout_seconds: 30
    retry_count: 2
    on_failure: review
  - id: review
    name: Review
    role_required: reviewer
transitions:
  draft:
    success: review
initial_step_id: draft
`

	def, err := LoadDefinition(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "review_pipeline", def.Name)
	assert.Equal(t, "2.0", def.Version)
	require.Len(t, def.Steps, 2)
	assert.Equal(t, "write_draft", def.Steps[0].ToolRequired)
	assert.Equal(t, "${context.topic}", def.Steps[0].Inputs["topic"])
	assert.Equal(t, "draft.text", def.Steps[0].OutputMapping["text"])
	assert.Equal(t, 30, def.Steps[0].TimeoutSeconds)
	assert.Equal(t, 2, def.Steps[0].RetryCount)
	assert.Equal(t, "review", def.Transitions["draft"]["success"])
	assert.Equal(t, "draft", def.InitialStepID)
}

func TestLoadDefinition_Invalid(t *testing.T) {
	_, err := LoadDefinition(strings.NewReader("name: broken\nsteps: []\n"))
	assert.Error(t, err)

	_, err = LoadDefinition(strings.NewReader("steps: [not a map"))
	assert.Error(t, err)
}

func TestDefinitionFromMap(t *testing.T) {
	m := map[string]any{
		"name": "decoded",
		"steps": []any{
			map[string]any{"id": "s1", "name": "S1", "tool_required": "work", "retry_count": 1},
		},
		"transitions": map[string]any{
			"s1": map[string]any{"success": "s1"},
		},
	}

	def, err := DefinitionFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, "decoded", def.Name)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, 1, def.Steps[0].RetryCount)
	assert.Equal(t, "s1", def.Transitions["s1"]["success"])
}

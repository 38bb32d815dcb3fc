package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolContext_Accessors(t *testing.T) {
	tc := NewToolContext(context.Background(), AgentInfo{ID: "a1", Name: "Researcher"}, "call-1", func(o *ToolContextOptions) {
		o.WorkflowID = "wf1"
		o.InstanceID = "inst1"
		o.StepID = "s1"
	})

	assert.Equal(t, "call-1", tc.CallID())
	assert.Equal(t, "a1", tc.AgentID())
	assert.Equal(t, "Researcher", tc.AgentName())
	assert.Equal(t, "wf1", tc.WorkflowID())
	assert.Equal(t, "inst1", tc.InstanceID())
	assert.Equal(t, "s1", tc.StepID())
	assert.NotNil(t, tc.Context())
	assert.NotNil(t, tc.Logger())
}

func TestToolContext_ContextDelta(t *testing.T) {
	tc := NewToolContext(context.Background(), AgentInfo{ID: "a1"}, "call-2")

	assert.Nil(t, tc.ContextDelta())

	tc.SetContextValue("draft", "v1")
	tc.SetContextValue("count", 3)

	delta := tc.ContextDelta()
	assert.Equal(t, "v1", delta["draft"])
	assert.Equal(t, 3, delta["count"])

	// returned delta is a copy
	delta["draft"] = "mutated"
	assert.Equal(t, "v1", tc.ContextDelta()["draft"])
}

func TestToolContext_Validate(t *testing.T) {
	tc := NewToolContext(context.Background(), AgentInfo{ID: "a1"}, "call-3")
	assert.NoError(t, tc.Validate())
	assert.True(t, tc.IsValid())

	missingCall := NewToolContext(context.Background(), AgentInfo{ID: "a1"}, "")
	assert.Error(t, missingCall.Validate())
	assert.False(t, missingCall.IsValid())

	missingAgent := NewToolContext(context.Background(), AgentInfo{}, "call-4")
	assert.Error(t, missingAgent.Validate())
}

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentfabric/logging"
)

// ToolContextOptions configures construction of a ToolContext.
type ToolContextOptions struct {
	// WorkflowID binds the invocation to a workflow definition (optional).
	WorkflowID string
	// InstanceID binds the invocation to a running workflow instance (optional).
	InstanceID string
	// StepID binds the invocation to the workflow step being executed (optional).
	StepID string
	// Logger used by the tool implementation. Defaults to NoOpLogger.
	Logger logging.Logger
}

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by an agent. It accumulates a context delta
// (SetContextValue) without directly mutating the owning workflow instance;
// the orchestrator merges the delta into the instance context after a
// successful tool step.
type ToolContext struct {
	ctx          context.Context
	callID       string
	agentInfo    AgentInfo
	workflowID   string
	instanceID   string
	stepID       string
	contextDelta map[string]any
	valid        bool

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to an acting agent and a
// unique callID. Workflow bindings and a logger can be supplied via options.
func NewToolContext(ctx context.Context, agentInfo AgentInfo, callID string, optFns ...func(o *ToolContextOptions)) *ToolContext {
	opts := ToolContextOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	return &ToolContext{
		ctx:           ctx,
		callID:        callID,
		agentInfo:     agentInfo,
		workflowID:    opts.WorkflowID,
		instanceID:    opts.InstanceID,
		stepID:        opts.StepID,
		valid:         true,
		loggerAdapter: newLoggerAdapter(opts.Logger),
	}
}

// Context returns the context associated with the tool invocation. Tools that
// perform blocking work must honor its cancellation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// CallID returns the unique call ID associated with the tool invocation.
func (tc *ToolContext) CallID() string { return tc.callID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// AgentID returns the id of the agent executing the tool.
func (tc *ToolContext) AgentID() string { return tc.agentInfo.ID }

// AgentName returns the name of the agent executing the tool.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// WorkflowID returns the workflow binding or "" when the tool runs outside a workflow.
func (tc *ToolContext) WorkflowID() string { return tc.workflowID }

// InstanceID returns the workflow instance binding or "".
func (tc *ToolContext) InstanceID() string { return tc.instanceID }

// StepID returns the workflow step binding or "".
func (tc *ToolContext) StepID() string { return tc.stepID }

// SetContextValue stages a key/value pair for merging into the owning workflow
// instance's context after the step completes successfully. Outside a workflow
// the delta is accumulated but never applied.
func (tc *ToolContext) SetContextValue(k string, v any) {
	if tc.contextDelta == nil {
		tc.contextDelta = map[string]any{}
	}

	tc.contextDelta[k] = v
}

// ContextDelta returns a copy of the staged context mutations.
func (tc *ToolContext) ContextDelta() map[string]any {
	if len(tc.contextDelta) == 0 {
		return nil
	}

	cp := make(map[string]any, len(tc.contextDelta))
	for k, v := range tc.contextDelta {
		cp[k] = v
	}

	return cp
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if !tc.valid || tc.callID == "" || tc.agentInfo.ID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// IsValid reports whether Validate would succeed (fast path).
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.callID != "" && tc.agentInfo.ID != ""
}

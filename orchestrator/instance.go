package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/util"
)

// Status is the lifecycle state of a workflow instance.
type Status string

// Instance lifecycle states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition out of the status is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ExecError records one error encountered while executing an instance.
type ExecError struct {
	StepID  string    `json:"step_id,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// StepResult is the normalized result map of one executed step.
type StepResult map[string]any

// Instance is the runtime state of one workflow execution. All mutable state
// is guarded by the instance's own mutex; cross-goroutine reads go through
// the snapshot accessors.
type Instance struct {
	id         string
	workflowID string
	cancel     context.CancelFunc

	mu               sync.Mutex
	status           Status
	currentStepID    string
	context          map[string]any
	stepResults      map[string]StepResult
	errors           []ExecError
	agentAssignments map[string]string // step id -> agent id
	createdAt        time.Time
	startedAt        time.Time
	completedAt      time.Time
}

func newInstance(workflowID string, initialContext map[string]any) *Instance {
	ctx := map[string]any{}
	for k, v := range initialContext {
		ctx[k] = v
	}

	return &Instance{
		id:               core.NewID(),
		workflowID:       workflowID,
		status:           StatusPending,
		context:          ctx,
		stepResults:      map[string]StepResult{},
		agentAssignments: map[string]string{},
		createdAt:        time.Now(),
	}
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// WorkflowID returns the id of the definition this instance runs.
func (i *Instance) WorkflowID() string { return i.workflowID }

// Status returns the current lifecycle state.
func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.status
}

// CurrentStep returns the id of the step being (or last) executed.
func (i *Instance) CurrentStep() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.currentStepID
}

// CreatedAt returns the instance creation time.
func (i *Instance) CreatedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.createdAt
}

// StartedAt returns when execution began (zero while pending).
func (i *Instance) StartedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.startedAt
}

// CompletedAt returns when the instance reached a terminal state (zero before).
func (i *Instance) CompletedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.completedAt
}

// Context returns a snapshot of the instance context.
func (i *Instance) Context() map[string]any {
	i.mu.Lock()
	defer i.mu.Unlock()

	cp := make(map[string]any, len(i.context))
	for k, v := range i.context {
		cp[k] = v
	}

	return cp
}

// StepResults returns a snapshot of the per-step results.
func (i *Instance) StepResults() map[string]StepResult {
	i.mu.Lock()
	defer i.mu.Unlock()

	cp := make(map[string]StepResult, len(i.stepResults))
	for k, v := range i.stepResults {
		cp[k] = v
	}

	return cp
}

// Errors returns a snapshot of the recorded errors.
func (i *Instance) Errors() []ExecError {
	i.mu.Lock()
	defer i.mu.Unlock()

	cp := make([]ExecError, len(i.errors))
	copy(cp, i.errors)

	return cp
}

// AgentAssignments returns a snapshot of the explicit step assignments.
func (i *Instance) AgentAssignments() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()

	cp := make(map[string]string, len(i.agentAssignments))
	for k, v := range i.agentAssignments {
		cp[k] = v
	}

	return cp
}

func (i *Instance) markRunning() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != StatusPending {
		return
	}

	i.status = StatusRunning
	i.startedAt = time.Now()
}

// markTerminal moves the instance into a terminal state. It reports false if
// the instance already reached one, so cancellation and completion cannot
// both take effect.
func (i *Instance) markTerminal(s Status) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status.Terminal() {
		return false
	}

	i.status = s
	i.completedAt = time.Now()

	return true
}

func (i *Instance) setCurrentStep(stepID string) {
	i.mu.Lock()
	i.currentStepID = stepID
	i.mu.Unlock()
}

func (i *Instance) setStepResult(stepID string, result StepResult) {
	i.mu.Lock()
	i.stepResults[stepID] = result
	i.mu.Unlock()
}

func (i *Instance) completedSteps() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.stepResults)
}

func (i *Instance) appendError(e ExecError) {
	i.mu.Lock()
	i.errors = append(i.errors, e)
	i.mu.Unlock()
}

func (i *Instance) errorCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.errors)
}

func (i *Instance) assignAgent(stepID, agentID string) {
	i.mu.Lock()
	i.agentAssignments[stepID] = agentID
	i.mu.Unlock()
}

func (i *Instance) agentForStep(stepID string) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.agentAssignments[stepID]
}

// setContextPath writes a value into the instance context at a dotted path,
// auto-creating intermediate maps.
func (i *Instance) setContextPath(path string, value any) {
	i.mu.Lock()
	util.SetPath(i.context, path, value)
	i.mu.Unlock()
}

// mergeContext applies a staged context delta from a tool execution.
func (i *Instance) mergeContext(delta map[string]any) {
	if len(delta) == 0 {
		return
	}

	i.mu.Lock()
	for k, v := range delta {
		i.context[k] = v
	}
	i.mu.Unlock()
}

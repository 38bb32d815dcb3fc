package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/bus"
	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/util"
	"github.com/hupe1980/agentfabric/logging"
	"github.com/hupe1980/agentfabric/role"
	"github.com/hupe1980/agentfabric/tool"
)

// EventsTopic is the bus topic terminal workflow events are mirrored to when
// it has subscribers, so agents can react to workflow outcomes without
// holding an orchestrator listener.
const EventsTopic = "workflow_events"

// Config bounds the orchestrator's runtime behavior.
type Config struct {
	// MaxConcurrentInstances bounds instances executing at once. Defaults to 10.
	MaxConcurrentInstances int
	// EventBufferSize is the queue capacity of each listener. Defaults to 100.
	EventBufferSize int
}

// DefaultConfig is the baseline orchestrator configuration.
var DefaultConfig = Config{
	MaxConcurrentInstances: 10,
	EventBufferSize:        100,
}

// Options configures an Orchestrator instance.
type Options struct {
	// Bus for mirroring terminal workflow events to agents. Defaults to a new bus.
	Bus *bus.Bus
	// Roles resolves step agents through active assignments. Defaults to a new manager.
	Roles *role.Manager
	// Executor runs step tools. Defaults to a new executor.
	Executor *tool.Executor
	// Config bounds (see Config defaults).
	Config Config
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Orchestrator coordinates workflow execution across registered agents. Each
// started instance runs on its own goroutine; the registries are guarded by a
// read-write mutex and instances guard their own state.
type Orchestrator struct {
	bus      *bus.Bus
	roles    *role.Manager
	executor *tool.Executor
	cfg      Config
	limiter  *limiter

	mu        sync.RWMutex
	workflows map[string]Definition
	instances map[string]*Instance
	agents    map[string]core.Agent

	lmu       sync.Mutex
	listeners []*Listener

	wg sync.WaitGroup

	logger logging.Logger
}

// New creates an orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.Roles == nil {
		opts.Roles = role.NewManager()
	}
	if opts.Executor == nil {
		opts.Executor = tool.NewExecutor()
	}
	if opts.Config.MaxConcurrentInstances == 0 {
		opts.Config.MaxConcurrentInstances = 10
	}
	if opts.Config.EventBufferSize == 0 {
		opts.Config.EventBufferSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Orchestrator{
		bus:       opts.Bus,
		roles:     opts.Roles,
		executor:  opts.Executor,
		cfg:       opts.Config,
		limiter:   newLimiter(opts.Config.MaxConcurrentInstances),
		workflows: map[string]Definition{},
		instances: map[string]*Instance{},
		agents:    map[string]core.Agent{},
		logger:    opts.Logger,
	}
}

// RegisterAgent makes an agent available for step execution.
func (o *Orchestrator) RegisterAgent(a core.Agent) {
	o.mu.Lock()
	o.agents[a.ID()] = a
	o.mu.Unlock()

	o.logger.Info("agent registered", "agent_id", a.ID(), "name", a.Name())
}

// Agent returns a registered agent by id.
func (o *Orchestrator) Agent(id string) (core.Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	a, ok := o.agents[id]

	return a, ok
}

// ListAgents returns the ids of all registered agents.
func (o *Orchestrator) ListAgents() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]string, 0, len(o.agents))
	for id := range o.agents {
		ids = append(ids, id)
	}

	return ids
}

// RegisterWorkflow validates and stores a workflow definition, generating an
// id when the definition carries none. Registering an existing id replaces
// the definition for future instances.
func (o *Orchestrator) RegisterWorkflow(def Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}

	if def.ID == "" {
		def.ID = core.NewID()
	}
	if def.Version == "" {
		def.Version = "1.0"
	}

	o.mu.Lock()
	o.workflows[def.ID] = def
	o.mu.Unlock()

	o.logger.Info("workflow registered", "workflow_id", def.ID, "name", def.Name, "steps", len(def.Steps))

	return def.ID, nil
}

// Workflow returns a registered definition by id.
func (o *Orchestrator) Workflow(id string) (Definition, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	def, ok := o.workflows[id]

	return def, ok
}

// ListWorkflows returns all registered definitions.
func (o *Orchestrator) ListWorkflows() []Definition {
	o.mu.RLock()
	defer o.mu.RUnlock()

	defs := make([]Definition, 0, len(o.workflows))
	for _, def := range o.workflows {
		defs = append(defs, def)
	}

	return defs
}

// StartWorkflow creates an instance of a workflow and schedules it for
// execution, returning the instance id immediately. The instance starts
// pending and transitions to running once a concurrency slot is acquired.
func (o *Orchestrator) StartWorkflow(ctx context.Context, workflowID string, initialContext map[string]any) (string, error) {
	o.mu.RLock()
	def, ok := o.workflows[workflowID]
	o.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("workflow %q not found", workflowID)
	}

	initialStepID := def.initialStep()
	if initialStepID == "" {
		return "", fmt.Errorf("workflow %q has no steps", workflowID)
	}

	inst := newInstance(workflowID, initialContext)

	instCtx, cancel := context.WithCancel(ctx)
	inst.cancel = cancel

	o.mu.Lock()
	o.instances[inst.id] = inst
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(instCtx, inst, def, initialStepID)

	return inst.id, nil
}

// run drives one instance from its initial step to a terminal state.
func (o *Orchestrator) run(ctx context.Context, inst *Instance, def Definition, initialStepID string) {
	defer o.wg.Done()

	if err := o.limiter.acquire(ctx); err != nil {
		o.cancelled(inst)
		return
	}
	defer o.limiter.release()

	// cancelled while waiting for a slot
	if inst.Status() != StatusPending {
		return
	}

	inst.markRunning()
	inst.setCurrentStep(initialStepID)

	o.emit(Event{Type: EventWorkflowStarted, InstanceID: inst.id, WorkflowID: inst.workflowID})

	stepID := initialStepID
	for stepID != "" {
		// cooperative cancellation: the in-flight step finished, no further step starts
		if inst.Status() == StatusCancelled || ctx.Err() != nil {
			o.cancelled(inst)
			return
		}

		step, ok := def.step(stepID)
		if !ok {
			o.fail(inst, stepID, fmt.Sprintf("step %q not found in workflow definition", stepID))
			return
		}

		inst.setCurrentStep(stepID)

		result, err := o.executeStep(ctx, inst, step)
		if err != nil {
			if step.OnFailure != "" {
				inst.appendError(ExecError{StepID: step.ID, Message: err.Error(), Time: time.Now()})

				o.logger.Warn("step failed, redirecting",
					"instance_id", inst.id, "step_id", step.ID, "on_failure", step.OnFailure, "error", err.Error())

				stepID = step.OnFailure

				continue
			}

			o.fail(inst, step.ID, fmt.Sprintf("step execution error: %v", err))

			return
		}

		inst.setStepResult(stepID, result)

		stepID = nextStep(def, stepID, result)
	}

	o.complete(inst)
}

// nextStep resolves the transition for a finished step: the result status
// first, then "default", else the workflow ends.
func nextStep(def Definition, stepID string, result StepResult) string {
	targets, ok := def.Transitions[stepID]
	if !ok {
		return ""
	}

	status, _ := result["status"].(string)
	if target, ok := targets[status]; ok {
		return target
	}

	return targets["default"]
}

// executeStep runs one step: input resolution, agent resolution, tool
// execution with retry and per-attempt timeout, context-delta merge and
// output mapping.
func (o *Orchestrator) executeStep(ctx context.Context, inst *Instance, step Step) (StepResult, error) {
	o.emit(Event{Type: EventStepStarted, InstanceID: inst.id, WorkflowID: inst.workflowID, StepID: step.ID})

	inputs := o.resolveInputs(inst, step)

	a, err := o.resolveAgent(inst, step)
	if err != nil {
		return nil, err
	}

	if step.ToolRequired == "" {
		// pass-through step
		result := StepResult{"status": "success"}
		o.mapOutputs(inst, step, result)

		o.emit(Event{
			Type: EventStepCompleted, InstanceID: inst.id, WorkflowID: inst.workflowID,
			StepID: step.ID, Status: "success",
		})

		return result, nil
	}

	start := time.Now()

	result, delta, err := o.executeTool(ctx, inst, step, a, inputs)

	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	inst.mergeContext(delta)

	result["status"] = "success"
	result["execution_time"] = elapsed.Seconds()
	result["agent_id"] = a.ID()

	o.mapOutputs(inst, step, result)

	o.emit(Event{
		Type: EventStepCompleted, InstanceID: inst.id, WorkflowID: inst.workflowID,
		StepID: step.ID, Status: "success",
		Data: map[string]any{"execution_time": elapsed.Seconds(), "agent_id": a.ID()},
	})

	return result, nil
}

// resolveInputs substitutes "${context...}" references against the instance
// context. An unresolvable reference becomes nil with a warning, never an error.
func (o *Orchestrator) resolveInputs(inst *Instance, step Step) map[string]any {
	inputs := make(map[string]any, len(step.Inputs))
	snapshot := inst.Context()

	for key, raw := range step.Inputs {
		ref, ok := util.RefPath(raw)
		if !ok {
			inputs[key] = raw
			continue
		}

		path := strings.TrimPrefix(ref, "context.")

		value, found := util.LookupPath(snapshot, path)
		if !found {
			o.logger.Warn("failed to resolve context variable",
				"instance_id", inst.id, "step_id", step.ID, "input", key, "ref", ref)

			inputs[key] = nil

			continue
		}

		inputs[key] = value
	}

	return inputs
}

// resolveAgent picks the executing agent: the explicit per-instance
// assignment wins, else the first active assignment for the required role.
func (o *Orchestrator) resolveAgent(inst *Instance, step Step) (core.Agent, error) {
	agentID := inst.agentForStep(step.ID)

	if agentID == "" && step.RoleRequired != "" {
		if assignments := o.roles.ActiveForRole(step.RoleRequired); len(assignments) > 0 {
			agentID = assignments[0].AgentID
		}
	}

	o.mu.RLock()
	a, ok := o.agents[agentID]
	o.mu.RUnlock()

	if agentID == "" || !ok {
		return nil, fmt.Errorf("no suitable agent found for step %q", step.ID)
	}

	return a, nil
}

// executeTool invokes the step's tool with up to RetryCount re-attempts and a
// per-attempt timeout. It returns the last attempt's result and staged
// context delta.
func (o *Orchestrator) executeTool(ctx context.Context, inst *Instance, step Step, a core.Agent, inputs map[string]any) (map[string]any, map[string]any, error) {
	var (
		result map[string]any
		delta  map[string]any
		err    error
	)

	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		if attempt > 0 {
			o.logger.Warn("retrying step tool",
				"instance_id", inst.id, "step_id", step.ID, "attempt", attempt, "error", err.Error())
		}

		result, delta, err = o.attemptTool(ctx, inst, step, a, inputs)
		if err == nil {
			return result, delta, nil
		}

		if ctx.Err() != nil {
			break // instance cancelled, retrying is pointless
		}
	}

	return nil, nil, err
}

func (o *Orchestrator) attemptTool(ctx context.Context, inst *Instance, step Step, a core.Agent, inputs map[string]any) (map[string]any, map[string]any, error) {
	attemptCtx := ctx
	if step.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	toolCtx := core.NewToolContext(attemptCtx, core.AgentInfo{ID: a.ID(), Name: a.Name()}, core.NewID(), func(tco *core.ToolContextOptions) {
		tco.WorkflowID = inst.workflowID
		tco.InstanceID = inst.id
		tco.StepID = step.ID
		tco.Logger = o.logger
	})

	type outcome struct {
		result map[string]any
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := o.executor.Execute(toolCtx, a, step.ToolRequired, inputs)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, nil, out.err
		}
		return out.result, toolCtx.ContextDelta(), nil
	case <-attemptCtx.Done():
		return nil, nil, fmt.Errorf("step %q timed out: %w", step.ID, attemptCtx.Err())
	}
}

// mapOutputs projects step results into the instance context. "$" copies the
// whole result map; an unresolvable output path logs a warning and is skipped.
func (o *Orchestrator) mapOutputs(inst *Instance, step Step, result StepResult) {
	for outputPath, contextPath := range step.OutputMapping {
		var value any

		if outputPath == "$" {
			value = map[string]any(result)
		} else {
			resolved, ok := util.LookupPath(result, outputPath)
			if !ok {
				o.logger.Warn("failed to resolve output path",
					"instance_id", inst.id, "step_id", step.ID, "output", outputPath)

				continue
			}
			value = resolved
		}

		inst.setContextPath(contextPath, value)
	}
}

func (o *Orchestrator) complete(inst *Instance) {
	if !inst.markTerminal(StatusCompleted) {
		return
	}

	ev := Event{Type: EventWorkflowCompleted, InstanceID: inst.id, WorkflowID: inst.workflowID}
	o.emit(ev)
	o.mirrorToBus(ev)
}

func (o *Orchestrator) fail(inst *Instance, stepID, message string) {
	inst.appendError(ExecError{StepID: stepID, Message: message, Time: time.Now()})

	if !inst.markTerminal(StatusFailed) {
		return
	}

	o.logger.Error("workflow instance failed", "instance_id", inst.id, "workflow_id", inst.workflowID, "error", message)

	ev := Event{Type: EventWorkflowFailed, InstanceID: inst.id, WorkflowID: inst.workflowID, Error: message}
	o.emit(ev)
	o.mirrorToBus(ev)
}

func (o *Orchestrator) cancelled(inst *Instance) {
	if !inst.markTerminal(StatusCancelled) {
		return
	}

	ev := Event{Type: EventWorkflowCancelled, InstanceID: inst.id, WorkflowID: inst.workflowID}
	o.emit(ev)
	o.mirrorToBus(ev)
}

// mirrorToBus republishes a terminal event on the workflow events topic when
// anyone subscribed to it.
func (o *Orchestrator) mirrorToBus(ev Event) {
	if len(o.bus.Subscribers(EventsTopic)) == 0 {
		return
	}

	o.bus.Publish("orchestrator", EventsTopic, ev.Type, map[string]any{
		"instance_id": ev.InstanceID,
		"workflow_id": ev.WorkflowID,
		"error":       ev.Error,
	})
}

// CancelInstance requests cancellation of a pending or running instance.
// Cancellation is cooperative: the in-flight step finishes and is recorded,
// no further step starts. Shutdown additionally cancels instance contexts to
// abort in-flight tool calls.
func (o *Orchestrator) CancelInstance(id string) bool {
	o.mu.RLock()
	inst, ok := o.instances[id]
	o.mu.RUnlock()

	if !ok {
		return false
	}

	if !inst.markTerminal(StatusCancelled) {
		return false
	}

	ev := Event{Type: EventWorkflowCancelled, InstanceID: inst.id, WorkflowID: inst.workflowID}
	o.emit(ev)
	o.mirrorToBus(ev)

	return true
}

// AssignAgentToStep pins a specific agent to a step of an instance. The
// instance, the agent and the step must all exist.
func (o *Orchestrator) AssignAgentToStep(instanceID, stepID, agentID string) bool {
	o.mu.RLock()
	inst, instOK := o.instances[instanceID]
	_, agentOK := o.agents[agentID]
	o.mu.RUnlock()

	if !instOK || !agentOK {
		return false
	}

	def, ok := o.Workflow(inst.workflowID)
	if !ok {
		return false
	}

	if _, ok := def.step(stepID); !ok {
		return false
	}

	inst.assignAgent(stepID, agentID)

	return true
}

// StatusInfo summarizes an instance's progress.
type StatusInfo struct {
	InstanceID   string    `json:"instance_id"`
	WorkflowID   string    `json:"workflow_id"`
	WorkflowName string    `json:"workflow_name"`
	Status       Status    `json:"status"`
	Progress     float64   `json:"progress"`
	CurrentStep  string    `json:"current_step"`
	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
	ErrorCount   int       `json:"error_count"`
}

// InstanceStatus reports the current status of an instance.
func (o *Orchestrator) InstanceStatus(id string) (StatusInfo, error) {
	o.mu.RLock()
	inst, ok := o.instances[id]
	o.mu.RUnlock()

	if !ok {
		return StatusInfo{}, fmt.Errorf("workflow instance %q not found", id)
	}

	def, _ := o.Workflow(inst.workflowID)

	progress := 0.0
	if len(def.Steps) > 0 {
		progress = float64(inst.completedSteps()) / float64(len(def.Steps))
	}

	return StatusInfo{
		InstanceID:   inst.id,
		WorkflowID:   inst.workflowID,
		WorkflowName: def.Name,
		Status:       inst.Status(),
		Progress:     progress,
		CurrentStep:  inst.CurrentStep(),
		CreatedAt:    inst.CreatedAt(),
		StartedAt:    inst.StartedAt(),
		CompletedAt:  inst.CompletedAt(),
		ErrorCount:   inst.errorCount(),
	}, nil
}

// Results carries the accumulated outcome of an instance.
type Results struct {
	InstanceID  string                `json:"instance_id"`
	WorkflowID  string                `json:"workflow_id"`
	Status      Status                `json:"status"`
	Context     map[string]any        `json:"context"`
	StepResults map[string]StepResult `json:"step_results"`
	Errors      []ExecError           `json:"errors"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt time.Time             `json:"completed_at,omitzero"`
}

// InstanceResults returns the accumulated context, step results and errors of
// an instance.
func (o *Orchestrator) InstanceResults(id string) (Results, error) {
	o.mu.RLock()
	inst, ok := o.instances[id]
	o.mu.RUnlock()

	if !ok {
		return Results{}, fmt.Errorf("workflow instance %q not found", id)
	}

	return Results{
		InstanceID:  inst.id,
		WorkflowID:  inst.workflowID,
		Status:      inst.Status(),
		Context:     inst.Context(),
		StepResults: inst.StepResults(),
		Errors:      inst.Errors(),
		CreatedAt:   inst.CreatedAt(),
		CompletedAt: inst.CompletedAt(),
	}, nil
}

// ListOptions filters ListInstances.
type ListOptions struct {
	// WorkflowID keeps only instances of the given workflow.
	WorkflowID string
	// Status keeps only instances in the given state.
	Status Status
}

// Summary is one row of a ListInstances result.
type Summary struct {
	InstanceID   string    `json:"instance_id"`
	WorkflowID   string    `json:"workflow_id"`
	WorkflowName string    `json:"workflow_name"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// ListInstances returns summaries of all instances, optionally filtered by
// workflow and status.
func (o *Orchestrator) ListInstances(optFns ...func(o *ListOptions)) []Summary {
	opts := ListOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	o.mu.RLock()
	instances := make([]*Instance, 0, len(o.instances))
	for _, inst := range o.instances {
		instances = append(instances, inst)
	}
	o.mu.RUnlock()

	summaries := make([]Summary, 0, len(instances))
	for _, inst := range instances {
		if opts.WorkflowID != "" && inst.workflowID != opts.WorkflowID {
			continue
		}
		if opts.Status != "" && inst.Status() != opts.Status {
			continue
		}

		def, _ := o.Workflow(inst.workflowID)

		summaries = append(summaries, Summary{
			InstanceID:   inst.id,
			WorkflowID:   inst.workflowID,
			WorkflowName: def.Name,
			Status:       inst.Status(),
			CreatedAt:    inst.CreatedAt(),
			CompletedAt:  inst.CompletedAt(),
		})
	}

	return summaries
}

// Shutdown cancels every pending or running instance together with its
// context (aborting in-flight tool calls), waits for the instance goroutines,
// and closes all listeners.
func (o *Orchestrator) Shutdown() {
	o.mu.RLock()
	instances := make([]*Instance, 0, len(o.instances))
	for _, inst := range o.instances {
		instances = append(instances, inst)
	}
	o.mu.RUnlock()

	for _, inst := range instances {
		o.CancelInstance(inst.id)
		if inst.cancel != nil {
			inst.cancel()
		}
	}

	o.wg.Wait()

	o.lmu.Lock()
	listeners := append([]*Listener(nil), o.listeners...)
	o.lmu.Unlock()

	for _, l := range listeners {
		l.Close()
	}

	o.logger.Info("orchestrator shut down")
}

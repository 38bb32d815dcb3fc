// Package agentfabric provides a high-level façade over the coordination
// substrate (message bus, shared memory, role negotiation, tool execution and
// workflow orchestration) enabling rapid construction of multi-agent systems.
// Most applications interact with this package by:
//  1. Creating a Fabric via New() (optionally overriding defaults)
//  2. Registering one or more agents with skills, permissions and tools
//  3. Registering workflow definitions and starting instances
//
// The façade delegates workflow execution to orchestrator.Orchestrator while
// keeping setup and usage ergonomics concise. There are no process-wide
// singletons: every Fabric is an explicitly constructed application context,
// and two Fabrics never share state. All defaults are safe for local
// development and testing; production deployments typically supply a
// structured logger.
package agentfabric

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentfabric/bus"
	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
	"github.com/hupe1980/agentfabric/memory"
	"github.com/hupe1980/agentfabric/orchestrator"
	"github.com/hupe1980/agentfabric/role"
	"github.com/hupe1980/agentfabric/tool"
)

// Options configures the Fabric instance.
type Options struct {
	// OrchestratorConfig bounds workflow execution (concurrency, event buffers).
	OrchestratorConfig orchestrator.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Fabric is the high-level façade aggregating the coordination components.
// Agents registered with the fabric become visible to role negotiation and
// workflow orchestration; tools registered with the fabric's registry are
// shared lookup material for wiring agents.
type Fabric struct {
	opts Options

	bus          *bus.Bus
	memory       *memory.Manager
	roles        *role.Manager
	teams        *role.Teams
	registry     *tool.Registry
	executor     *tool.Executor
	orchestrator *orchestrator.Orchestrator
}

// New creates a new Fabric instance with optional overrides. All components
// are wired to share the same bus, role manager and logger.
func New(optFns ...func(o *Options)) *Fabric {
	opts := Options{
		OrchestratorConfig: orchestrator.DefaultConfig,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	b := bus.New(func(o *bus.Options) { o.Logger = opts.Logger })
	mem := memory.NewManager(func(o *memory.ManagerOptions) { o.Logger = opts.Logger })
	roles := role.NewManager(func(o *role.Options) { o.Logger = opts.Logger })
	teams := role.NewTeams(roles, func(o *role.Options) { o.Logger = opts.Logger })
	registry := tool.NewRegistry(func(o *tool.Options) { o.Logger = opts.Logger })
	executor := tool.NewExecutor(func(o *tool.Options) { o.Logger = opts.Logger })

	orch := orchestrator.New(func(o *orchestrator.Options) {
		o.Bus = b
		o.Roles = roles
		o.Executor = executor
		o.Config = opts.OrchestratorConfig
		o.Logger = opts.Logger
	})

	return &Fabric{
		opts:         opts,
		bus:          b,
		memory:       mem,
		roles:        roles,
		teams:        teams,
		registry:     registry,
		executor:     executor,
		orchestrator: orch,
	}
}

// RegisterAgent makes an agent known to the fabric and to the orchestrator.
func (f *Fabric) RegisterAgent(a core.Agent) { f.orchestrator.RegisterAgent(a) }

// Agent returns a registered agent by id.
func (f *Fabric) Agent(id string) (core.Agent, bool) { return f.orchestrator.Agent(id) }

// ListAgents returns the ids of all registered agents, sorted.
func (f *Fabric) ListAgents() []string {
	ids := f.orchestrator.ListAgents()
	sort.Strings(ids)

	return ids
}

// CreateSharedMemory creates a named shared memory pool. Grant agents access
// on the returned pool before they read or write.
func (f *Fabric) CreateSharedMemory(name string, optFns ...func(o *memory.Options)) (*memory.SharedMemory, error) {
	return f.memory.CreateShared(name, optFns...)
}

// RegisterWorkflow registers a workflow definition, returning its id.
func (f *Fabric) RegisterWorkflow(def orchestrator.Definition) (string, error) {
	return f.orchestrator.RegisterWorkflow(def)
}

// StartWorkflow starts a new instance of a registered workflow.
func (f *Fabric) StartWorkflow(ctx context.Context, workflowID string, initialContext map[string]any) (string, error) {
	return f.orchestrator.StartWorkflow(ctx, workflowID, initialContext)
}

// InstanceStatus reports the current status of a workflow instance.
func (f *Fabric) InstanceStatus(id string) (orchestrator.StatusInfo, error) {
	return f.orchestrator.InstanceStatus(id)
}

// WaitForInstance polls until the instance reaches a terminal status or the
// context is done. A synchronous helper for request-response style callers.
func (f *Fabric) WaitForInstance(ctx context.Context, id string) (orchestrator.Results, error) {
	events := f.orchestrator.Listen(
		orchestrator.EventWorkflowCompleted,
		orchestrator.EventWorkflowFailed,
		orchestrator.EventWorkflowCancelled,
	)
	defer events.Close()

	// The instance may already be terminal before the listener attached.
	status, err := f.orchestrator.InstanceStatus(id)
	if err != nil {
		return orchestrator.Results{}, err
	}

	for !status.Status.Terminal() {
		select {
		case <-ctx.Done():
			return orchestrator.Results{}, ctx.Err()
		case ev, ok := <-events.C():
			if !ok {
				return orchestrator.Results{}, fmt.Errorf("event stream closed before instance %q finished", id)
			}

			if ev.InstanceID != id {
				continue
			}
		}

		if status, err = f.orchestrator.InstanceStatus(id); err != nil {
			return orchestrator.Results{}, err
		}
	}

	return f.orchestrator.InstanceResults(id)
}

// Bus returns the message bus shared by all fabric components.
func (f *Fabric) Bus() *bus.Bus { return f.bus }

// Memory returns the shared memory pool manager.
func (f *Fabric) Memory() *memory.Manager { return f.memory }

// Roles returns the role manager.
func (f *Fabric) Roles() *role.Manager { return f.roles }

// Teams returns the team registry.
func (f *Fabric) Teams() *role.Teams { return f.teams }

// Registry returns the shared tool registry.
func (f *Fabric) Registry() *tool.Registry { return f.registry }

// Executor returns the tool executor used for direct and composed calls.
func (f *Fabric) Executor() *tool.Executor { return f.executor }

// Orchestrator returns the workflow orchestrator.
func (f *Fabric) Orchestrator() *orchestrator.Orchestrator { return f.orchestrator }

// Shutdown cancels running workflow instances and waits for them to stop.
func (f *Fabric) Shutdown() { f.orchestrator.Shutdown() }

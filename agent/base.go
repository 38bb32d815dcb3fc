package agent

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
	"github.com/hupe1980/agentfabric/tool"
)

// historyLimit bounds the per-agent execution history ring.
const historyLimit = 100

// Metrics tracks an agent's accountability over its tool executions.
type Metrics struct {
	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`
	// AvgResponseTime is the rolling mean execution time in seconds.
	AvgResponseTime float64 `json:"avg_response_time"`
	// ReliabilityScore is completed/total, 1.0 before any execution.
	ReliabilityScore float64 `json:"reliability_score"`
}

// ExecutionRecord is one entry of the agent's execution history.
type ExecutionRecord struct {
	Tool          string        `json:"tool"`
	Timestamp     time.Time     `json:"timestamp"`
	ExecutionTime time.Duration `json:"execution_time"`
	Status        string        `json:"status"` // "success" or "error: <message>"
}

// MessageHandler reacts to a message delivered to the agent.
type MessageHandler func(msg core.Message)

// Options configures a BaseAgent instance.
type Options struct {
	// ID overrides the generated agent id.
	ID string
	// Description of the agent's purpose.
	Description string
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// BaseAgent is the standard core.Agent implementation: identity, graded
// skills, roles, permissions, a tool table with per-tool permission
// requirements, message dispatch and accountability metrics. All exported
// methods are goroutine-safe.
type BaseAgent struct {
	id          string
	name        string
	description string

	mu            sync.Mutex
	skills        map[string]float64
	roles         map[string]struct{}
	permissions   map[string]struct{}
	tools         map[string]tool.Tool
	toolPerms     map[string][]string
	handlers      map[string]MessageHandler
	metrics       Metrics
	history       []ExecutionRecord
	collaboration map[string]float64

	logger logging.Logger
}

// New constructs an agent. An empty name derives one from the generated id.
func New(name string, optFns ...func(o *Options)) *BaseAgent {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ID == "" {
		opts.ID = core.NewID()
	}
	if name == "" {
		name = "Agent-" + opts.ID[:8]
	}
	if opts.Description == "" {
		opts.Description = fmt.Sprintf("Agent %s", name)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &BaseAgent{
		id:            opts.ID,
		name:          name,
		description:   opts.Description,
		skills:        map[string]float64{},
		roles:         map[string]struct{}{},
		permissions:   map[string]struct{}{},
		tools:         map[string]tool.Tool{},
		toolPerms:     map[string][]string{},
		handlers:      map[string]MessageHandler{},
		metrics:       Metrics{ReliabilityScore: 1.0},
		collaboration: map[string]float64{},
		logger:        opts.Logger,
	}
}

// ID returns the agent's unique id.
func (b *BaseAgent) ID() string { return b.id }

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// Info returns the agent's identity for embedding in a ToolContext.
func (b *BaseAgent) Info() core.AgentInfo {
	return core.AgentInfo{ID: b.id, Name: b.name}
}

// SetSkill records a skill at the given proficiency. Proficiency must lie in
// [0, 1].
func (b *BaseAgent) SetSkill(name string, proficiency float64) error {
	if proficiency < 0 || proficiency > 1 {
		return fmt.Errorf("proficiency must be between 0 and 1, got %v", proficiency)
	}

	b.mu.Lock()
	b.skills[name] = proficiency
	b.mu.Unlock()

	return nil
}

// Skills returns a copy of the agent's skill map.
func (b *BaseAgent) Skills() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make(map[string]float64, len(b.skills))
	for k, v := range b.skills {
		cp[k] = v
	}

	return cp
}

// HasSkill reports whether the agent holds the skill at minimum proficiency.
func (b *BaseAgent) HasSkill(name string, minProficiency float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.skills[name] >= minProficiency
}

// GrantRole adds a role to the agent. Granting twice is a no-op.
func (b *BaseAgent) GrantRole(role string) {
	b.mu.Lock()
	b.roles[role] = struct{}{}
	b.mu.Unlock()
}

// HasRole reports whether the agent holds the role.
func (b *BaseAgent) HasRole(role string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.roles[role]

	return ok
}

// Roles returns the agent's roles, sorted.
func (b *BaseAgent) Roles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return sortedKeys(b.roles)
}

// GrantPermission adds a permission to the agent. Granting twice is a no-op.
func (b *BaseAgent) GrantPermission(permission string) {
	b.mu.Lock()
	b.permissions[permission] = struct{}{}
	b.mu.Unlock()
}

// HasPermission reports whether the agent holds the permission.
func (b *BaseAgent) HasPermission(permission string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.permissions[permission]

	return ok
}

// Permissions returns the agent's permissions, sorted.
func (b *BaseAgent) Permissions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return sortedKeys(b.permissions)
}

// RegisterTool adds a tool to the agent's table. Registering the same name
// twice replaces the earlier tool.
func (b *BaseAgent) RegisterTool(t tool.Tool) {
	b.mu.Lock()
	b.tools[t.Name()] = t
	b.mu.Unlock()

	b.logger.Debug("tool registered on agent", "agent_id", b.id, "tool", t.Name())
}

// RequirePermissions declares permissions the agent must hold before it may
// execute the named tool. Requirements accumulate across calls.
func (b *BaseAgent) RequirePermissions(toolName string, permissions ...string) {
	b.mu.Lock()
	b.toolPerms[toolName] = append(b.toolPerms[toolName], permissions...)
	b.mu.Unlock()
}

// Tools returns the names of the agent's registered tools, sorted.
func (b *BaseAgent) Tools() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ExecuteTool runs a registered tool after checking the agent's permissions,
// updating the accountability metrics and execution history either way.
//
// Error codes: NOT_FOUND for an unregistered tool, PERMISSION_ERROR when the
// agent lacks a required permission; tool errors pass through.
func (b *BaseAgent) ExecuteTool(toolCtx *core.ToolContext, name string, args map[string]any) (any, error) {
	b.mu.Lock()
	t, ok := b.tools[name]
	required := b.toolPerms[name]
	b.mu.Unlock()

	if !ok {
		return nil, tool.NewToolError(name, "tool not registered", "NOT_FOUND")
	}

	for _, perm := range required {
		if !b.HasPermission(perm) {
			return nil, tool.NewToolError(name, fmt.Sprintf("agent lacks required permission: %s", perm), "PERMISSION_ERROR")
		}
	}

	b.logger.Info("executing tool", "agent_id", b.id, "tool", name, "call_id", toolCtx.CallID())

	start := time.Now()

	result, err := t.Call(toolCtx, args)

	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "error: " + err.Error()
	}

	b.recordExecution(name, elapsed, err == nil, status)

	return result, err
}

func (b *BaseAgent) recordExecution(toolName string, elapsed time.Duration, success bool, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.metrics.TasksCompleted++
	} else {
		b.metrics.TasksFailed++
	}

	total := b.metrics.TasksCompleted + b.metrics.TasksFailed
	b.metrics.ReliabilityScore = float64(b.metrics.TasksCompleted) / float64(total)

	seconds := elapsed.Seconds()
	if b.metrics.AvgResponseTime == 0 {
		b.metrics.AvgResponseTime = seconds
	} else {
		b.metrics.AvgResponseTime = (b.metrics.AvgResponseTime*float64(total-1) + seconds) / float64(total)
	}

	b.history = append(b.history, ExecutionRecord{
		Tool:          toolName,
		Timestamp:     time.Now(),
		ExecutionTime: elapsed,
		Status:        status,
	})
	if len(b.history) > historyLimit {
		b.history = b.history[len(b.history)-historyLimit:]
	}
}

// Metrics returns a snapshot of the accountability metrics.
func (b *BaseAgent) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.metrics
}

// ExecutionHistory returns a copy of the recent execution records.
func (b *BaseAgent) ExecutionHistory() []ExecutionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]ExecutionRecord, len(b.history))
	copy(cp, b.history)

	return cp
}

// CollaborationScore returns this agent's trust in another agent, 0.5 when
// they have never interacted.
func (b *BaseAgent) CollaborationScore(agentID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if score, ok := b.collaboration[agentID]; ok {
		return score
	}

	return 0.5
}

// AdjustCollaborationScore shifts the trust score for another agent by delta,
// clamped to [0, 1].
func (b *BaseAgent) AdjustCollaborationScore(agentID string, delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.collaboration[agentID]
	if !ok {
		current = 0.5
	}

	next := current + delta
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}

	b.collaboration[agentID] = next
}

// OnMessage registers a handler for a message type, replacing any earlier
// handler for the same type.
func (b *BaseAgent) OnMessage(msgType string, h MessageHandler) {
	b.mu.Lock()
	b.handlers[msgType] = h
	b.mu.Unlock()
}

// HandleMessage dispatches a message to the handler registered for its type.
// Unhandled types are logged at debug level and dropped.
func (b *BaseAgent) HandleMessage(msg core.Message) {
	b.mu.Lock()
	h, ok := b.handlers[msg.Type]
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("unhandled message type", "agent_id", b.id, "type", msg.Type, "sender_id", msg.SenderID)
		return
	}

	h(msg)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

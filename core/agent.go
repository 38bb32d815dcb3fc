package core

// Agent defines the capability contract every actor in AgentFabric must implement.
//
// Agents are evaluated against role requirements by the role manager (skills,
// permissions), resolved as step executors by the orchestrator, and invoked
// through ExecuteTool. The interface deliberately exposes capabilities rather
// than behavior: how an agent produces a tool result (an LLM call, a local
// computation, a remote API) is opaque to the coordination substrate.
//
// Implementations must be safe for concurrent use; the orchestrator may invoke
// the same agent from multiple workflow instances at once.
type Agent interface {
	// ID returns the stable unique identifier for this agent.
	ID() string

	// Name returns the human-readable name for this agent.
	Name() string

	// Description returns a detailed description of this agent's purpose.
	Description() string

	// Skills returns a copy of the agent's skill -> proficiency map.
	// Proficiencies are in [0, 1].
	Skills() map[string]float64

	// HasSkill reports whether the agent holds the skill at or above the
	// given minimum proficiency.
	HasSkill(name string, minProficiency float64) bool

	// HasRole reports whether the agent has been granted the named role.
	HasRole(role string) bool

	// Permissions returns a copy of the agent's granted permission set.
	Permissions() []string

	// HasPermission reports whether the agent holds the named permission.
	HasPermission(permission string) bool

	// ExecuteTool runs one of the agent's registered tools by name. It returns
	// the tool's raw result or an error carrying a categorized code
	// (NOT_FOUND, PERMISSION_ERROR, VALIDATION_ERROR, EXECUTION_ERROR).
	ExecuteTool(toolCtx *ToolContext, name string, args map[string]any) (any, error)
}

// AgentInfo carries identifying details about an agent used in contexts & messages.
type AgentInfo struct{ ID, Name string }

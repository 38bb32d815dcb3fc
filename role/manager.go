package role

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
)

var (
	// ErrRoleExists is returned when registering a role id twice.
	ErrRoleExists = fmt.Errorf("role already registered")
	// ErrRoleNotFound is returned when evaluating or bidding against an
	// unknown role.
	ErrRoleNotFound = fmt.Errorf("role not found")
)

// Requirement defines what a role demands of an agent.
type Requirement struct {
	// Skills maps skill name -> minimum proficiency in [0, 1].
	Skills map[string]float64 `yaml:"skills" json:"skills"`
	// Permissions the agent must hold.
	Permissions []string `yaml:"permissions" json:"permissions"`
	// Priority orders roles when several compete for agents.
	Priority int `yaml:"priority" json:"priority"`
	// Metadata carries arbitrary annotations.
	Metadata map[string]any `yaml:"metadata" json:"metadata,omitempty"`
}

// SkillGap records one unmet skill requirement.
type SkillGap struct {
	Skill    string  `json:"skill"`
	Required float64 `json:"required"`
	Actual   float64 `json:"actual"`
}

// Evaluation is the structured result of matching an agent against a role.
// Mismatches are reported as data, never as an error.
type Evaluation struct {
	AgentID            string             `json:"agent_id"`
	RoleID             string             `json:"role_id"`
	Confidence         float64            `json:"confidence"`
	SkillMatch         map[string]float64 `json:"skill_match"`
	MissingSkills      []SkillGap         `json:"missing_skills,omitempty"`
	MissingPermissions []string           `json:"missing_permissions,omitempty"`
	Qualified          bool               `json:"qualified"`
}

// Bid is an agent's offer for a role, derived from an Evaluation.
type Bid struct {
	RoleID     string             `json:"role_id"`
	AgentID    string             `json:"agent_id"`
	Confidence float64            `json:"confidence"`
	SkillMatch map[string]float64 `json:"skill_match"`
	Timestamp  time.Time          `json:"timestamp"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// Assignment is a granted role. Active assignments live in the manager's
// active map; completed ones move into the immutable history.
type Assignment struct {
	ID               string         `json:"id"`
	RoleID           string         `json:"role_id"`
	AgentID          string         `json:"agent_id"`
	Confidence       float64        `json:"confidence"`
	AssignedAt       time.Time      `json:"assigned_at"`
	ExpiresAt        time.Time      `json:"expires_at,omitzero"`
	CompletedAt      time.Time      `json:"completed_at,omitzero"`
	PerformanceScore *float64       `json:"performance_score,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Options configures a Manager instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Manager tracks role definitions, evaluates agents against them and keeps
// the assignment bookkeeping. It is safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	requirements map[string]Requirement
	active       map[string]Assignment
	order        []string // assignment ids in creation order; keeps "first active assignment" well defined
	history      []Assignment

	logger logging.Logger
}

// NewManager creates an empty role manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Manager{
		requirements: map[string]Requirement{},
		active:       map[string]Assignment{},
		logger:       opts.Logger,
	}
}

// RegisterRole registers a role id with its requirements. Registering the
// same id twice fails with ErrRoleExists.
func (m *Manager) RegisterRole(roleID string, req Requirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requirements[roleID]; ok {
		return fmt.Errorf("%w: %s", ErrRoleExists, roleID)
	}

	m.requirements[roleID] = req

	m.logger.Info("role registered", "role_id", roleID, "skill_count", len(req.Skills))

	return nil
}

// Requirements returns the requirements for a role.
func (m *Manager) Requirements(roleID string) (Requirement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requirements[roleID]

	return req, ok
}

// ListRoles returns the sorted ids of all registered roles.
func (m *Manager) ListRoles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.requirements))
	for id := range m.requirements {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Evaluate matches an agent's capabilities against a role's requirements and
// returns a structured evaluation. Only an unknown role is an error.
func (m *Manager) Evaluate(a core.Agent, roleID string) (Evaluation, error) {
	m.mu.RLock()
	req, ok := m.requirements[roleID]
	m.mu.RUnlock()

	if !ok {
		return Evaluation{}, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
	}

	skills := a.Skills()

	eval := Evaluation{
		AgentID:    a.ID(),
		RoleID:     roleID,
		SkillMatch: map[string]float64{},
	}

	totalQuality := 0.0
	for skill, minProficiency := range req.Skills {
		actual := skills[skill]
		eval.SkillMatch[skill] = actual

		if actual < minProficiency {
			eval.MissingSkills = append(eval.MissingSkills, SkillGap{Skill: skill, Required: minProficiency, Actual: actual})
			continue
		}

		// a zero minimum is treated as 0.1 to avoid division by zero
		divisor := minProficiency
		if divisor == 0 {
			divisor = 0.1
		}

		totalQuality += math.Min(1, actual/divisor)
	}

	for _, perm := range req.Permissions {
		if !a.HasPermission(perm) {
			eval.MissingPermissions = append(eval.MissingPermissions, perm)
		}
	}

	if n := len(req.Skills); n > 0 {
		confidence := totalQuality / float64(n)

		if len(eval.MissingSkills) > 0 {
			confidence *= 1.0 - (float64(len(eval.MissingSkills))/float64(n))*0.5
		}
		if len(eval.MissingPermissions) > 0 {
			confidence *= math.Pow(0.8, float64(len(eval.MissingPermissions)))
		}

		eval.Confidence = math.Max(0, math.Min(1, confidence))
	}

	eval.Qualified = len(eval.MissingSkills) == 0 && len(eval.MissingPermissions) == 0

	return eval, nil
}

// CreateBid wraps an evaluation into a bid record.
func (m *Manager) CreateBid(a core.Agent, roleID string) (Bid, error) {
	eval, err := m.Evaluate(a, roleID)
	if err != nil {
		return Bid{}, err
	}

	return Bid{
		RoleID:     roleID,
		AgentID:    a.ID(),
		Confidence: eval.Confidence,
		SkillMatch: eval.SkillMatch,
		Timestamp:  time.Now(),
	}, nil
}

// AssignOptions configures an Assign call.
type AssignOptions struct {
	// ExpiresAt optionally bounds the assignment's validity.
	ExpiresAt time.Time
	// Metadata carries arbitrary annotations (team membership, provenance).
	Metadata map[string]any
}

// Assign creates an active assignment and returns its id. There is
// deliberately no uniqueness constraint: a role may be held by several agents
// at once, and step resolution takes the first active assignment in creation
// order.
func (m *Manager) Assign(roleID, agentID string, confidence float64, optFns ...func(o *AssignOptions)) string {
	opts := AssignOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	assignment := Assignment{
		ID:         core.NewID(),
		RoleID:     roleID,
		AgentID:    agentID,
		Confidence: math.Max(0, math.Min(1, confidence)),
		AssignedAt: time.Now(),
		ExpiresAt:  opts.ExpiresAt,
		Metadata:   opts.Metadata,
	}

	m.mu.Lock()
	m.active[assignment.ID] = assignment
	m.order = append(m.order, assignment.ID)
	m.mu.Unlock()

	m.logger.Info("role assigned", "role_id", roleID, "agent_id", agentID, "assignment_id", assignment.ID)

	return assignment.ID
}

// Assignment returns an active assignment by id.
func (m *Manager) Assignment(id string) (Assignment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.active[id]

	return a, ok
}

// Complete moves an active assignment into the history, recording the
// performance score and completion time. The assignment leaves the active
// map; it is never in both places.
func (m *Manager) Complete(id string, performanceScore float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[id]
	if !ok {
		return false
	}

	a.PerformanceScore = &performanceScore
	a.CompletedAt = time.Now()

	m.history = append(m.history, a)
	m.deleteActiveLocked(id)

	return true
}

// Revoke deletes an active assignment without recording history.
func (m *Manager) Revoke(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[id]; !ok {
		return false
	}

	m.deleteActiveLocked(id)

	return true
}

func (m *Manager) deleteActiveLocked(id string) {
	delete(m.active, id)
	for i, aid := range m.order {
		if aid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// ActiveForRole returns all active assignments for a role, in assignment order.
func (m *Manager) ActiveForRole(roleID string) []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Assignment
	for _, id := range m.order {
		if a := m.active[id]; a.RoleID == roleID {
			result = append(result, a)
		}
	}

	return result
}

// ActiveForAgent returns all active assignments held by an agent, in
// assignment order.
func (m *Manager) ActiveForAgent(agentID string) []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Assignment
	for _, id := range m.order {
		if a := m.active[id]; a.AgentID == agentID {
			result = append(result, a)
		}
	}

	return result
}

// RoleHistory returns the completed assignment records for a role.
func (m *Manager) RoleHistory(roleID string) []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Assignment
	for _, a := range m.history {
		if a.RoleID == roleID {
			result = append(result, a)
		}
	}

	return result
}

// AgentHistory returns the completed assignment records for an agent.
func (m *Manager) AgentHistory(agentID string) []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Assignment
	for _, a := range m.history {
		if a.AgentID == agentID {
			result = append(result, a)
		}
	}

	return result
}

package role

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentfabric/logging"
)

var (
	// ErrTeamExists is returned when creating a team id twice.
	ErrTeamExists = fmt.Errorf("team already exists")
	// ErrTeamNotFound is returned when operating on an unknown team.
	ErrTeamNotFound = fmt.Errorf("team not found")
)

type team struct {
	name     string
	roles    map[string]string // role id -> assignment id
	metadata map[string]any
}

// Member describes one team member: the role it fills and the backing assignment.
type Member struct {
	RoleID       string  `json:"role_id"`
	AgentID      string  `json:"agent_id"`
	AssignmentID string  `json:"assignment_id"`
	Confidence   float64 `json:"confidence"`
}

// Info summarizes a team for listings.
type Info struct {
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	RoleCount int    `json:"role_count"`
}

// Performance aggregates a team's live assignments.
type Performance struct {
	TeamID        string   `json:"team_id"`
	Name          string   `json:"name"`
	MemberCount   int      `json:"member_count"`
	AvgConfidence float64  `json:"avg_confidence"`
	Members       []Member `json:"members"`
}

// Teams layers named groups of role assignments over a Manager. Assigning a
// role to a team creates the underlying assignment tagged with the team id;
// disbanding revokes every member assignment.
type Teams struct {
	roles *Manager

	mu    sync.RWMutex
	teams map[string]*team

	logger logging.Logger
}

// NewTeams creates a team registry backed by the given role manager.
func NewTeams(roles *Manager, optFns ...func(o *Options)) *Teams {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Teams{
		roles:  roles,
		teams:  map[string]*team{},
		logger: opts.Logger,
	}
}

// Create registers a new team. Creating a duplicate id fails with ErrTeamExists.
func (t *Teams) Create(teamID, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.teams[teamID]; ok {
		return fmt.Errorf("%w: %s", ErrTeamExists, teamID)
	}

	t.teams[teamID] = &team{name: name, roles: map[string]string{}, metadata: map[string]any{}}

	t.logger.Info("team created", "team_id", teamID, "name", name)

	return nil
}

// AssignRole creates a role assignment for the agent, tagged with the team id
// in its metadata, and records it in the team's role map. It returns the
// assignment id.
func (t *Teams) AssignRole(teamID, roleID, agentID string, confidence float64, optFns ...func(o *AssignOptions)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tm, ok := t.teams[teamID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	assignmentID := t.roles.Assign(roleID, agentID, confidence, func(o *AssignOptions) {
		for _, fn := range optFns {
			fn(o)
		}
		if o.Metadata == nil {
			o.Metadata = map[string]any{}
		}
		o.Metadata["team_id"] = teamID
	})

	tm.roles[roleID] = assignmentID

	return assignmentID, nil
}

// RemoveRole revokes the team's assignment for the role and unmaps it.
func (t *Teams) RemoveRole(teamID, roleID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tm, ok := t.teams[teamID]
	if !ok {
		return false
	}

	assignmentID, ok := tm.roles[roleID]
	if !ok {
		return false
	}

	t.roles.Revoke(assignmentID)
	delete(tm.roles, roleID)

	return true
}

// Members returns the team's members with their roles. Assignments that have
// been completed or revoked out from under the team are skipped.
func (t *Teams) Members(teamID string) ([]Member, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tm, ok := t.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	return t.membersLocked(tm), nil
}

func (t *Teams) membersLocked(tm *team) []Member {
	members := make([]Member, 0, len(tm.roles))
	for roleID, assignmentID := range tm.roles {
		if a, ok := t.roles.Assignment(assignmentID); ok {
			members = append(members, Member{
				RoleID:       roleID,
				AgentID:      a.AgentID,
				AssignmentID: assignmentID,
				Confidence:   a.Confidence,
			})
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].RoleID < members[j].RoleID })

	return members
}

// Disband revokes every member assignment and deletes the team.
func (t *Teams) Disband(teamID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tm, ok := t.teams[teamID]
	if !ok {
		return false
	}

	for _, assignmentID := range tm.roles {
		t.roles.Revoke(assignmentID)
	}

	delete(t.teams, teamID)

	t.logger.Info("team disbanded", "team_id", teamID)

	return true
}

// List returns summaries of all teams, sorted by team id.
func (t *Teams) List() []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	infos := make([]Info, 0, len(t.teams))
	for id, tm := range t.teams {
		infos = append(infos, Info{TeamID: id, Name: tm.name, RoleCount: len(tm.roles)})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].TeamID < infos[j].TeamID })

	return infos
}

// EvaluatePerformance aggregates the team's live assignments: member count
// and average confidence.
func (t *Teams) EvaluatePerformance(teamID string) (Performance, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tm, ok := t.teams[teamID]
	if !ok {
		return Performance{}, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	members := t.membersLocked(tm)

	total := 0.0
	for _, m := range members {
		total += m.Confidence
	}

	avg := 0.0
	if len(members) > 0 {
		avg = total / float64(len(members))
	}

	return Performance{
		TeamID:        teamID,
		Name:          tm.name,
		MemberCount:   len(members),
		AvgConfidence: avg,
		Members:       members,
	}, nil
}

package role

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeams_CreateDuplicate(t *testing.T) {
	teams := NewTeams(NewManager())

	require.NoError(t, teams.Create("t1", "Research"))

	err := teams.Create("t1", "Research")
	assert.True(t, errors.Is(err, ErrTeamExists))
}

func TestTeams_AssignRoleTagsTeam(t *testing.T) {
	roles := NewManager()
	teams := NewTeams(roles)

	require.NoError(t, teams.Create("t1", "Research"))

	id, err := teams.AssignRole("t1", "writer", "a1", 0.8)
	require.NoError(t, err)

	a, ok := roles.Assignment(id)
	require.True(t, ok)
	assert.Equal(t, "t1", a.Metadata["team_id"])

	_, err = teams.AssignRole("ghost", "writer", "a1", 0.8)
	assert.True(t, errors.Is(err, ErrTeamNotFound))
}

func TestTeams_MembersSortedAndLive(t *testing.T) {
	roles := NewManager()
	teams := NewTeams(roles)

	require.NoError(t, teams.Create("t1", "Research"))

	_, err := teams.AssignRole("t1", "writer", "a1", 0.9)
	require.NoError(t, err)
	reviewerID, err := teams.AssignRole("t1", "reviewer", "a2", 0.7)
	require.NoError(t, err)

	members, err := teams.Members("t1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "reviewer", members[0].RoleID)
	assert.Equal(t, "writer", members[1].RoleID)

	// a member whose assignment was completed elsewhere disappears
	roles.Complete(reviewerID, 1.0)

	members, err = teams.Members("t1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "writer", members[0].RoleID)
}

func TestTeams_RemoveRole(t *testing.T) {
	roles := NewManager()
	teams := NewTeams(roles)

	require.NoError(t, teams.Create("t1", "Research"))

	id, err := teams.AssignRole("t1", "writer", "a1", 0.8)
	require.NoError(t, err)

	assert.True(t, teams.RemoveRole("t1", "writer"))
	assert.False(t, teams.RemoveRole("t1", "writer"))

	_, ok := roles.Assignment(id)
	assert.False(t, ok)
}

func TestTeams_DisbandRevokesMembers(t *testing.T) {
	roles := NewManager()
	teams := NewTeams(roles)

	require.NoError(t, teams.Create("t1", "Research"))

	id1, err := teams.AssignRole("t1", "writer", "a1", 0.8)
	require.NoError(t, err)
	id2, err := teams.AssignRole("t1", "reviewer", "a2", 0.6)
	require.NoError(t, err)

	assert.True(t, teams.Disband("t1"))
	assert.False(t, teams.Disband("t1"))

	_, ok := roles.Assignment(id1)
	assert.False(t, ok)
	_, ok = roles.Assignment(id2)
	assert.False(t, ok)

	// revoked assignments leave no history behind
	assert.Empty(t, roles.RoleHistory("writer"))
	assert.Empty(t, teams.List())
}

func TestTeams_EvaluatePerformance(t *testing.T) {
	roles := NewManager()
	teams := NewTeams(roles)

	require.NoError(t, teams.Create("t1", "Research"))

	_, err := teams.AssignRole("t1", "writer", "a1", 0.8)
	require.NoError(t, err)
	_, err = teams.AssignRole("t1", "reviewer", "a2", 0.6)
	require.NoError(t, err)

	perf, err := teams.EvaluatePerformance("t1")
	require.NoError(t, err)

	assert.Equal(t, 2, perf.MemberCount)
	assert.InDelta(t, 0.7, perf.AvgConfidence, 1e-9)

	_, err = teams.EvaluatePerformance("ghost")
	assert.True(t, errors.Is(err, ErrTeamNotFound))
}

func TestTeams_List(t *testing.T) {
	teams := NewTeams(NewManager())

	require.NoError(t, teams.Create("t2", "Beta"))
	require.NoError(t, teams.Create("t1", "Alpha"))

	infos := teams.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "t1", infos[0].TeamID)
	assert.Equal(t, "t2", infos[1].TeamID)
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/testutil"
	"github.com/hupe1980/agentfabric/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToolContext(a *BaseAgent, callID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), a.Info(), callID)
}

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func TestNew_Defaults(t *testing.T) {
	a := New("")

	assert.NotEmpty(t, a.ID())
	assert.Contains(t, a.Name(), "Agent-")
	assert.Equal(t, 1.0, a.Metrics().ReliabilityScore)

	named := New("Researcher", func(o *Options) {
		o.ID = "agent-1"
		o.Description = "Finds things out"
	})
	assert.Equal(t, "agent-1", named.ID())
	assert.Equal(t, "Researcher", named.Name())
	assert.Equal(t, "Finds things out", named.Description())
}

func TestBaseAgent_Skills(t *testing.T) {
	a := New("a")

	require.NoError(t, a.SetSkill("writing", 0.9))
	assert.Error(t, a.SetSkill("writing", 1.5))
	assert.Error(t, a.SetSkill("writing", -0.1))

	assert.True(t, a.HasSkill("writing", 0.6))
	assert.False(t, a.HasSkill("writing", 0.95))
	assert.False(t, a.HasSkill("unknown", 0.1))

	// returned map is a copy
	a.Skills()["writing"] = 0.0
	assert.True(t, a.HasSkill("writing", 0.9))
}

func TestBaseAgent_RolesAndPermissions(t *testing.T) {
	a := New("a")

	a.GrantRole("writer")
	a.GrantRole("writer")
	a.GrantRole("editor")

	assert.True(t, a.HasRole("writer"))
	assert.False(t, a.HasRole("reviewer"))
	assert.Equal(t, []string{"editor", "writer"}, a.Roles())

	a.GrantPermission("publish")
	assert.True(t, a.HasPermission("publish"))
	assert.False(t, a.HasPermission("delete"))
	assert.Equal(t, []string{"publish"}, a.Permissions())
}

func TestBaseAgent_ExecuteToolNotFound(t *testing.T) {
	a := New("a")

	_, err := a.ExecuteTool(testToolContext(a, "call-1"), "ghost", nil)
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "NOT_FOUND", toolErr.Code)
}

func TestBaseAgent_ExecuteToolPermissionCheck(t *testing.T) {
	a := New("a")

	a.RegisterTool(tool.NewFunctionTool("publish", "Publishes", emptySchema(), func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "published", nil
	}))
	a.RequirePermissions("publish", "publish")

	_, err := a.ExecuteTool(testToolContext(a, "call-1"), "publish", nil)
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "PERMISSION_ERROR", toolErr.Code)

	// permission failures do not touch the metrics
	assert.Equal(t, 0, a.Metrics().TasksFailed)

	a.GrantPermission("publish")

	result, err := a.ExecuteTool(testToolContext(a, "call-2"), "publish", nil)
	require.NoError(t, err)
	assert.Equal(t, "published", result)
}

func TestBaseAgent_MetricsTrackExecutions(t *testing.T) {
	a := New("a")

	a.RegisterTool(tool.NewFunctionTool("ok", "Succeeds", emptySchema(), func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, nil
	}))
	a.RegisterTool(tool.NewFunctionTool("bad", "Fails", emptySchema(), func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	}))

	_, err := a.ExecuteTool(testToolContext(a, "c1"), "ok", nil)
	require.NoError(t, err)
	_, err = a.ExecuteTool(testToolContext(a, "c2"), "ok", nil)
	require.NoError(t, err)
	_, err = a.ExecuteTool(testToolContext(a, "c3"), "bad", nil)
	require.Error(t, err)

	m := a.Metrics()
	assert.Equal(t, 2, m.TasksCompleted)
	assert.Equal(t, 1, m.TasksFailed)
	assert.InDelta(t, 2.0/3.0, m.ReliabilityScore, 1e-9)
	assert.GreaterOrEqual(t, m.AvgResponseTime, 0.0)

	hist := a.ExecutionHistory()
	require.Len(t, hist, 3)
	assert.Equal(t, "success", hist[0].Status)
	assert.Contains(t, hist[2].Status, "error:")
}

func TestBaseAgent_ExecutionHistoryBounded(t *testing.T) {
	a := New("a")

	a.RegisterTool(tool.NewFunctionTool("noop", "No-op", emptySchema(), func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, nil
	}))

	for i := 0; i < historyLimit+10; i++ {
		_, err := a.ExecuteTool(testToolContext(a, "c"), "noop", nil)
		require.NoError(t, err)
	}

	assert.Len(t, a.ExecutionHistory(), historyLimit)
	assert.Equal(t, historyLimit+10, a.Metrics().TasksCompleted)
}

func TestBaseAgent_CollaborationScores(t *testing.T) {
	a := New("a")

	assert.Equal(t, 0.5, a.CollaborationScore("other"))

	a.AdjustCollaborationScore("other", 0.3)
	assert.InDelta(t, 0.8, a.CollaborationScore("other"), 1e-9)

	a.AdjustCollaborationScore("other", 1.0)
	assert.Equal(t, 1.0, a.CollaborationScore("other"))

	a.AdjustCollaborationScore("other", -5.0)
	assert.Equal(t, 0.0, a.CollaborationScore("other"))
}

func TestBaseAgent_MessageDispatch(t *testing.T) {
	a := New("a")

	var got core.Message
	a.OnMessage("task", func(msg core.Message) { got = msg })

	a.HandleMessage(testutil.NewMessageBuilder().From("s1").To(a.ID()).Type("task").Content("k", "v").Build())
	assert.Equal(t, "s1", got.SenderID)
	assert.Equal(t, "v", got.Content["k"])

	// unhandled types are dropped silently
	a.HandleMessage(testutil.NewMessageBuilder().From("s2").To(a.ID()).Type("unknown").Build())
	assert.Equal(t, "s1", got.SenderID)
}

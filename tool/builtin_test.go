package tool

import (
	"testing"

	"github.com/hupe1980/agentfabric/bus"
	"github.com/hupe1980/agentfabric/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTool_StoreAndRetrieve(t *testing.T) {
	store := memory.New()
	mt := NewMemoryTool(store)
	tc := testToolContext("call-1")

	res, err := mt.Call(tc, map[string]any{
		"operation":  "store",
		"content":    "the sky is blue",
		"importance": 0.9,
		"tags":       []any{"facts", "sky"},
	})
	require.NoError(t, err)

	id := res.(map[string]any)["id"].(string)
	require.NotEmpty(t, id)

	// attributed to the acting agent
	item, ok := store.Retrieve(id)
	require.True(t, ok)
	assert.Equal(t, "agent:agent-1", item.Source)
	assert.Equal(t, 0.9, item.Importance)

	res, err = mt.Call(tc, map[string]any{"operation": "retrieve", "id": id})
	require.NoError(t, err)
	got := res.(map[string]any)
	assert.True(t, got["found"].(bool))
	assert.Equal(t, "the sky is blue", got["content"])

	res, err = mt.Call(tc, map[string]any{"operation": "retrieve", "id": "ghost"})
	require.NoError(t, err)
	assert.False(t, res.(map[string]any)["found"].(bool))
}

func TestMemoryTool_SearchAndForget(t *testing.T) {
	store := memory.New()
	mt := NewMemoryTool(store)
	tc := testToolContext("call-2")

	res, err := mt.Call(tc, map[string]any{
		"operation": "store",
		"content":   "release notes draft",
		"tags":      []any{"release", "draft"},
	})
	require.NoError(t, err)
	id := res.(map[string]any)["id"].(string)

	res, err = mt.Call(tc, map[string]any{"operation": "search_tags", "tags": []any{"release"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(map[string]any)["count"])

	res, err = mt.Call(tc, map[string]any{"operation": "search_relevance", "query": "release", "limit": 5.0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(map[string]any)["count"])

	res, err = mt.Call(tc, map[string]any{"operation": "forget", "id": id})
	require.NoError(t, err)
	assert.True(t, res.(map[string]any)["forgotten"].(bool))

	res, err = mt.Call(tc, map[string]any{"operation": "stats"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.(map[string]any)["count"])
}

func TestMemoryTool_UnknownOperation(t *testing.T) {
	mt := NewMemoryTool(memory.New())

	_, err := mt.Call(testToolContext("call-3"), map[string]any{"operation": "explode"})
	assert.Error(t, err)
}

func TestMessengerTool_SendAndHistory(t *testing.T) {
	b := bus.New()
	mt := NewMessengerTool(b)
	tc := testToolContext("call-4") // acting agent is agent-1

	res, err := mt.Call(tc, map[string]any{
		"operation":    "send",
		"recipient_id": "agent-2",
		"content":      map[string]any{"text": "hello"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.(map[string]any)["message_id"])

	res, err = mt.Call(tc, map[string]any{"operation": "history", "peer_id": "agent-2"})
	require.NoError(t, err)
	got := res.(map[string]any)
	assert.Equal(t, 1, got["count"])
}

func TestMessengerTool_Publish(t *testing.T) {
	b := bus.New()
	b.Subscribe("agent-2", "alerts")
	b.Subscribe("agent-3", "alerts")

	mt := NewMessengerTool(b)
	tc := testToolContext("call-5")

	res, err := mt.Call(tc, map[string]any{
		"operation": "publish",
		"topic":     "alerts",
		"type":      "alert",
		"content":   map[string]any{"severity": "high"},
	})
	require.NoError(t, err)

	got := res.(map[string]any)
	assert.Equal(t, 2, got["count"])
	assert.Len(t, got["delivered"], 2)

	// fan-out messages land on per-recipient channels
	history := b.GetOrCreateChannel("agent-1", "agent-2").Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "alert", history[0].Type)
	assert.Equal(t, "high", history[0].Content["severity"])
}

func TestMessengerTool_RequiresRecipient(t *testing.T) {
	mt := NewMessengerTool(bus.New())

	_, err := mt.Call(testToolContext("call-6"), map[string]any{"operation": "send"})
	assert.Error(t, err)
}

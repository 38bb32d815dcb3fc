package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func testToolContext(callID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), core.AgentInfo{ID: "agent-1", Name: "Agent"}, callID)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(testToolContext("call-1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		// Use interface slice to match ValidateParameters implementation expectation
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(testToolContext("call-2"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(testToolContext("call-3"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestFunctionTool_ToolErrorPassthrough(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("custom", "denied", "PERMISSION_ERROR")
	tTool := NewFunctionTool("custom", "Custom code", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := tTool.Call(testToolContext("call-4"), map[string]any{})
	assert.Same(t, custom, err.(*ToolError))
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
	}
	echo := NewFunctionTool("echo", "Echo", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"], nil
	})

	require.NoError(t, r.Register(echo))

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name())

	infos := r.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "Echo", infos[0].Description)
}

func TestRegistry_RejectsMalformedSchema(t *testing.T) {
	r := NewRegistry()

	// required names a property that is never declared
	bad := NewFunctionTool("bad", "Bad schema", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{"ghost"},
	}, func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil })

	err := r.Register(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameter schema")

	_, ok := r.Get("bad")
	assert.False(t, ok)
}

func TestRegistry_DuplicateReplaces(t *testing.T) {
	r := NewRegistry()

	params := map[string]any{"type": "object", "properties": map[string]any{}}
	first := NewFunctionTool("dup", "First", params, func(_ *core.ToolContext, _ map[string]any) (any, error) { return 1, nil })
	second := NewFunctionTool("dup", "Second", params, func(_ *core.ToolContext, _ map[string]any) (any, error) { return 2, nil })

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	got, ok := r.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "Second", got.Description())

	assert.Len(t, r.List(), 1)
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry()

	params := map[string]any{"type": "object", "properties": map[string]any{}}
	require.NoError(t, r.Register(NewFunctionTool("gone", "Gone", params, func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil })))

	assert.True(t, r.Deregister("gone"))
	assert.False(t, r.Deregister("gone"))

	_, ok := r.Get("gone")
	assert.False(t, ok)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}

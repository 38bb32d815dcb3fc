package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupPath(t *testing.T) {
	m := map[string]any{
		"user": map[string]any{
			"name": "Ada",
			"address": map[string]any{
				"city": "London",
			},
		},
		"count": 2,
	}

	v, ok := LookupPath(m, "user.name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	v, ok = LookupPath(m, "user.address.city")
	assert.True(t, ok)
	assert.Equal(t, "London", v)

	_, ok = LookupPath(m, "user.missing")
	assert.False(t, ok)

	// intermediate value is not a map
	_, ok = LookupPath(m, "count.inner")
	assert.False(t, ok)

	_, ok = LookupPath(m, "")
	assert.False(t, ok)
}

func TestSetPath(t *testing.T) {
	m := map[string]any{}

	SetPath(m, "results.review.score", 0.9)
	v, ok := LookupPath(m, "results.review.score")
	assert.True(t, ok)
	assert.Equal(t, 0.9, v)

	// overwriting a non-map intermediate replaces it with a map
	SetPath(m, "results.review", "scalar")
	SetPath(m, "results.review.score", 1.0)
	v, _ = LookupPath(m, "results.review.score")
	assert.Equal(t, 1.0, v)
}

func TestRefPath(t *testing.T) {
	p, ok := RefPath("${context.user.name}")
	assert.True(t, ok)
	assert.Equal(t, "context.user.name", p)

	_, ok = RefPath("plain string")
	assert.False(t, ok)

	_, ok = RefPath(42)
	assert.False(t, ok)
}

func TestCheckSchema(t *testing.T) {
	valid := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []string{"a"},
	}
	assert.NoError(t, CheckSchema(valid))

	assert.Error(t, CheckSchema(nil))

	badType := map[string]any{"type": "array"}
	assert.Error(t, CheckSchema(badType))

	badProp := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "wibble"},
		},
	}
	assert.Error(t, CheckSchema(badProp))

	danglingRequired := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []any{"ghost"},
	}
	assert.Error(t, CheckSchema(danglingRequired))
}

package tool

import (
	"fmt"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/memory"
)

// MemoryTool exposes a memory.Store to agents through the tool interface.
//
// It follows the operation-dispatch pattern: a single "operation" argument
// selects the behavior, so one registration covers the whole memory surface.
type MemoryTool struct {
	name        string
	description string
	store       *memory.Store
}

// NewMemoryTool creates a memory tool backed by the given store.
//
// Supported operations: store, retrieve, search_tags, search_relevance,
// forget, stats.
func NewMemoryTool(store *memory.Store) *MemoryTool {
	return &MemoryTool{
		name: "memory",
		description: "Stores and retrieves facts from the agent memory store. " +
			"Supports operations: store, retrieve, search_tags, search_relevance, forget, stats.",
		store: store,
	}
}

// Name returns the tool identifier.
func (t *MemoryTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *MemoryTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *MemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"store", "retrieve", "search_tags", "search_relevance", "forget", "stats",
				},
				"description": "The memory operation to perform",
			},
			"content": map[string]interface{}{
				"description": "Content to store (any type)",
			},
			"importance": map[string]interface{}{
				"type":        "number",
				"description": "Importance of the stored item in [0, 1] (default: 0.5)",
			},
			"tags": map[string]interface{}{
				"type":        "array",
				"description": "Tags to index the item under, or to search by",
			},
			"require_all": map[string]interface{}{
				"type":        "boolean",
				"description": "For search_tags: require every tag to match (default: false)",
			},
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Item id for retrieve/forget operations",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Query for search_relevance",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Limit for search operations (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *MemoryTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "store":
		return t.handleStore(args, toolCtx)
	case "retrieve":
		return t.handleRetrieve(args)
	case "search_tags":
		return t.handleSearchTags(args)
	case "search_relevance":
		return t.handleSearchRelevance(args)
	case "forget":
		return t.handleForget(args)
	case "stats":
		return t.handleStats()
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

// handleStore stores content attributed to the acting agent.
func (t *MemoryTool) handleStore(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	content, ok := args["content"]
	if !ok {
		return nil, fmt.Errorf("content parameter is required for store operation")
	}

	id := t.store.Store(content, "agent:"+toolCtx.AgentID(), func(o *memory.StoreOptions) {
		if imp, ok := args["importance"].(float64); ok {
			o.Importance = imp
		}
		o.Tags = stringSlice(args["tags"])
	})

	return map[string]interface{}{
		"id":      id,
		"success": true,
	}, nil
}

// handleRetrieve fetches an item by id.
func (t *MemoryTool) handleRetrieve(args map[string]interface{}) (interface{}, error) {
	id, ok := args["id"].(string)
	if !ok {
		return nil, fmt.Errorf("id parameter is required for retrieve operation")
	}

	item, found := t.store.Retrieve(id)
	if !found {
		return map[string]interface{}{
			"id":    id,
			"found": false,
		}, nil
	}

	return map[string]interface{}{
		"id":         id,
		"found":      true,
		"content":    item.Content,
		"source":     item.Source,
		"importance": item.Importance,
		"tags":       item.Tags,
	}, nil
}

// handleSearchTags searches items by tag overlap or intersection.
func (t *MemoryTool) handleSearchTags(args map[string]interface{}) (interface{}, error) {
	tags := stringSlice(args["tags"])
	if len(tags) == 0 {
		return nil, fmt.Errorf("tags parameter is required for search_tags operation")
	}

	requireAll, _ := args["require_all"].(bool)

	items := t.store.SearchByTags(tags, requireAll)

	return map[string]interface{}{
		"count":   len(items),
		"items":   items,
		"success": true,
	}, nil
}

// handleSearchRelevance searches items by relevance to a query.
func (t *MemoryTool) handleSearchRelevance(args map[string]interface{}) (interface{}, error) {
	query, ok := args["query"].(string)
	if !ok {
		return nil, fmt.Errorf("query parameter is required for search_relevance operation")
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	scored := t.store.SearchByRelevance(query, limit)

	return map[string]interface{}{
		"query":   query,
		"limit":   limit,
		"count":   len(scored),
		"results": scored,
		"success": true,
	}, nil
}

// handleForget removes an item by id.
func (t *MemoryTool) handleForget(args map[string]interface{}) (interface{}, error) {
	id, ok := args["id"].(string)
	if !ok {
		return nil, fmt.Errorf("id parameter is required for forget operation")
	}

	return map[string]interface{}{
		"id":        id,
		"forgotten": t.store.Forget(id),
		"success":   true,
	}, nil
}

// handleStats summarizes the store contents.
func (t *MemoryTool) handleStats() (interface{}, error) {
	stats := t.store.Stats()

	return map[string]interface{}{
		"count":          stats.Count,
		"capacity":       stats.Capacity,
		"top_tags":       stats.TopTags,
		"sources":        stats.Sources,
		"avg_importance": stats.AvgImportance,
		"success":        true,
	}, nil
}

// stringSlice normalizes a tags argument, which may arrive as []string
// (hand-authored) or []any (JSON decoded).
func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

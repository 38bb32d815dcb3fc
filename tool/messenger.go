package tool

import (
	"fmt"

	"github.com/hupe1980/agentfabric/bus"
	"github.com/hupe1980/agentfabric/core"
)

// MessengerTool lets agents send direct messages, publish to topics and read
// channel history through the tool interface. The sender is always the acting
// agent from the ToolContext; a tool cannot impersonate another agent.
type MessengerTool struct {
	name        string
	description string
	bus         *bus.Bus
}

// NewMessengerTool creates a messenger tool backed by the given bus.
//
// Supported operations: send, publish, history.
func NewMessengerTool(b *bus.Bus) *MessengerTool {
	return &MessengerTool{
		name: "messenger",
		description: "Sends direct messages, publishes to topics and reads channel history. " +
			"Supports operations: send, publish, history.",
		bus: b,
	}
}

// Name returns the tool identifier.
func (t *MessengerTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *MessengerTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *MessengerTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"send", "publish", "history"},
				"description": "The messaging operation to perform",
			},
			"recipient_id": map[string]interface{}{
				"type":        "string",
				"description": "Recipient agent id for send operations",
			},
			"peer_id": map[string]interface{}{
				"type":        "string",
				"description": "Peer agent id for history operations",
			},
			"topic": map[string]interface{}{
				"type":        "string",
				"description": "Topic name for publish operations",
			},
			"type": map[string]interface{}{
				"type":        "string",
				"description": "Message type (default: \"text\")",
			},
			"content": map[string]interface{}{
				"type":        "object",
				"description": "Message content",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Limit for history operations (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *MessengerTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "send":
		return t.handleSend(args, toolCtx)
	case "publish":
		return t.handlePublish(args, toolCtx)
	case "history":
		return t.handleHistory(args, toolCtx)
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

// handleSend delivers a direct message from the acting agent.
func (t *MessengerTool) handleSend(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	recipientID, ok := args["recipient_id"].(string)
	if !ok {
		return nil, fmt.Errorf("recipient_id parameter is required for send operation")
	}

	channel := t.bus.GetOrCreateChannel(toolCtx.AgentID(), recipientID)

	msgID, err := channel.Send(toolCtx.AgentID(), recipientID, messageType(args), messageContent(args))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return map[string]interface{}{
		"message_id":   msgID,
		"recipient_id": recipientID,
		"success":      true,
	}, nil
}

// handlePublish broadcasts to a topic's subscribers.
func (t *MessengerTool) handlePublish(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	topic, ok := args["topic"].(string)
	if !ok {
		return nil, fmt.Errorf("topic parameter is required for publish operation")
	}

	delivered := t.bus.Publish(toolCtx.AgentID(), topic, messageType(args), messageContent(args))

	return map[string]interface{}{
		"topic":     topic,
		"delivered": delivered,
		"count":     len(delivered),
		"success":   true,
	}, nil
}

// handleHistory reads the acting agent's channel history with a peer.
func (t *MessengerTool) handleHistory(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	peerID, ok := args["peer_id"].(string)
	if !ok {
		return nil, fmt.Errorf("peer_id parameter is required for history operation")
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	channel := t.bus.GetOrCreateChannel(toolCtx.AgentID(), peerID)

	messages := channel.Messages(func(o *bus.MessagesOptions) {
		o.Limit = limit
	})

	return map[string]interface{}{
		"peer_id":  peerID,
		"count":    len(messages),
		"messages": messages,
		"success":  true,
	}, nil
}

func messageType(args map[string]interface{}) string {
	if mt, ok := args["type"].(string); ok && mt != "" {
		return mt
	}
	return "text"
}

func messageContent(args map[string]interface{}) map[string]interface{} {
	if c, ok := args["content"].(map[string]interface{}); ok {
		return c
	}
	return map[string]interface{}{}
}

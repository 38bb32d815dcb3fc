package testutil

import (
	"time"

	"github.com/hupe1980/agentfabric/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().From("planner").To("worker").Type("task").Content("goal", "ship it").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id             string
	senderID       string
	recipientID    string
	msgType        string
	content        map[string]any
	conversationID string
	replyTo        string
	metadata       map[string]any
	timestamp      *time.Time
}

// NewMessageBuilder creates a builder with default type "text".
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msgType: "text", content: map[string]any{}}
}

// ID overrides the auto-generated message ID (chainable). Use mainly in tests
// where determinism matters.
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// From sets the sender agent id (chainable).
func (b *MessageBuilder) From(id string) *MessageBuilder { b.senderID = id; return b }

// To sets the recipient agent id (chainable).
func (b *MessageBuilder) To(id string) *MessageBuilder { b.recipientID = id; return b }

// Type sets the message type (chainable).
func (b *MessageBuilder) Type(t string) *MessageBuilder { b.msgType = t; return b }

// Content sets one content key/value pair (chainable).
func (b *MessageBuilder) Content(key string, val any) *MessageBuilder {
	b.content[key] = val
	return b
}

// Text sets the conventional {"text": ...} payload (chainable).
func (b *MessageBuilder) Text(t string) *MessageBuilder { return b.Content("text", t) }

// Conversation assigns the message to a conversation (chainable).
func (b *MessageBuilder) Conversation(id string) *MessageBuilder { b.conversationID = id; return b }

// ReplyTo marks the message as an answer to a prior message (chainable).
func (b *MessageBuilder) ReplyTo(id string) *MessageBuilder { b.replyTo = id; return b }

// Meta sets one metadata key/value pair (chainable).
func (b *MessageBuilder) Meta(key string, val any) *MessageBuilder {
	if b.metadata == nil {
		b.metadata = map[string]any{}
	}
	b.metadata[key] = val
	return b
}

// At pins the message timestamp (chainable).
func (b *MessageBuilder) At(t time.Time) *MessageBuilder { b.timestamp = &t; return b }

// Build constructs the core.Message value.
func (b *MessageBuilder) Build() core.Message {
	msg := core.Message{
		ID:             b.id,
		SenderID:       b.senderID,
		RecipientID:    b.recipientID,
		Type:           b.msgType,
		Content:        b.content,
		ConversationID: b.conversationID,
		ReplyTo:        b.replyTo,
		Metadata:       b.metadata,
		Timestamp:      time.Now().UTC(),
	}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if b.timestamp != nil {
		msg.Timestamp = *b.timestamp
	}

	return msg
}

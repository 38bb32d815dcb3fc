package core

import "time"

// Message is one directed communication between two agents. Messages are
// immutable once created; channels append them to their history and hand
// copies to registered handlers.
type Message struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`

	// Timestamp records when the message was created. Fan-out messages of a
	// single publish share one timestamp.
	Timestamp time.Time `json:"timestamp"`

	// SenderID is the id of the sending agent.
	SenderID string `json:"sender_id"`

	// RecipientID is the id of the receiving agent, or "topic:<name>" for the
	// synthetic message handed to topic callbacks.
	RecipientID string `json:"recipient_id"`

	// Type categorizes the message (request, response, broadcast, ...).
	Type string `json:"type"`

	// Content carries the structured payload.
	Content map[string]any `json:"content"`

	// ConversationID groups related messages into a conversation.
	ConversationID string `json:"conversation_id,omitempty"`

	// ReplyTo references the id of the message this one answers.
	ReplyTo string `json:"reply_to,omitempty"`

	// Metadata carries arbitrary annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
}

package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
)

var (
	// ErrNotMember is returned when a sender or recipient does not belong to
	// the channel.
	ErrNotMember = fmt.Errorf("agent is not a member of this channel")
)

// Handler is a callback invoked synchronously for a message.
type Handler func(msg core.Message)

// Channel is a bidirectional communication link between exactly two agents.
// It keeps an ordered message history and per-message-type handlers. It is
// safe for concurrent use.
type Channel struct {
	id          string
	agentA      string
	agentB      string
	channelType string

	mu       sync.RWMutex
	history  []core.Message
	handlers map[string][]Handler

	logger logging.Logger
}

// newChannel constructs a channel for the two agent ids. Channels are created
// through Bus.GetOrCreateChannel, which guarantees pair uniqueness.
func newChannel(agentA, agentB string, logger logging.Logger) *Channel {
	return &Channel{
		id:          core.NewID(),
		agentA:      agentA,
		agentB:      agentB,
		channelType: "direct",
		handlers:    map[string][]Handler{},
		logger:      logger,
	}
}

// ID returns the channel's unique id.
func (c *Channel) ID() string { return c.id }

// Agents returns the ids of the two agents linked by this channel.
func (c *Channel) Agents() (string, string) { return c.agentA, c.agentB }

// Type returns the channel type ("direct").
func (c *Channel) Type() string { return c.channelType }

func (c *Channel) member(agentID string) bool {
	return agentID == c.agentA || agentID == c.agentB
}

// SendOptions configures a single Send call.
type SendOptions struct {
	// ConversationID groups related messages.
	ConversationID string
	// ReplyTo references the message being answered.
	ReplyTo string
	// Metadata carries arbitrary annotations.
	Metadata map[string]any
	// Timestamp overrides the message timestamp. Used by the bus so every
	// fan-out message of one publish shares a single timestamp.
	Timestamp time.Time
}

// Send appends a message to the channel history and synchronously invokes all
// handlers registered for the message type. Both sender and recipient must be
// members of the channel. It returns the new message's id.
func (c *Channel) Send(senderID, recipientID, msgType string, content map[string]any, optFns ...func(o *SendOptions)) (string, error) {
	if !c.member(senderID) {
		return "", fmt.Errorf("%w: sender %s", ErrNotMember, senderID)
	}
	if !c.member(recipientID) {
		return "", fmt.Errorf("%w: recipient %s", ErrNotMember, recipientID)
	}

	opts := SendOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	msg := core.Message{
		ID:             core.NewID(),
		Timestamp:      ts,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Type:           msgType,
		Content:        content,
		ConversationID: opts.ConversationID,
		ReplyTo:        opts.ReplyTo,
		Metadata:       opts.Metadata,
	}

	c.mu.Lock()
	c.history = append(c.history, msg)
	handlers := append([]Handler(nil), c.handlers[msgType]...)
	c.mu.Unlock()

	for _, h := range handlers {
		invokeHandler(h, msg, c.logger)
	}

	return msg.ID, nil
}

// MessagesOptions filters a Messages call.
type MessagesOptions struct {
	// Type restricts results to one message type.
	Type string
	// Limit keeps only the last N messages after filtering. Zero means all.
	Limit int
}

// Messages returns a filtered copy of the channel history: optionally only
// one message type, optionally only the last N entries.
func (c *Channel) Messages(optFns ...func(o *MessagesOptions)) []core.Message {
	opts := MessagesOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := make([]core.Message, 0, len(c.history))
	for _, m := range c.history {
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		msgs = append(msgs, m)
	}

	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[len(msgs)-opts.Limit:]
	}

	return msgs
}

// OnMessage registers a handler invoked synchronously for every message of
// the given type sent through this channel.
func (c *Channel) OnMessage(msgType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[msgType] = append(c.handlers[msgType], h)
}

// invokeHandler runs a handler, recovering and logging a panic so a failing
// observer never propagates to the sender.
func invokeHandler(h Handler, msg core.Message, logger logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message handler panicked", "message_type", msg.Type, "message_id", msg.ID, "panic", fmt.Sprintf("%v", r))
		}
	}()

	h(msg)
}

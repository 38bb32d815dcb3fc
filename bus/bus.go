package bus

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentfabric/core"
	"github.com/hupe1980/agentfabric/logging"
)

// Options configures a Bus instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bus is the registry of direct channels and topic subscriptions. Construct
// one per application context and pass it to the components that need
// messaging; there is no process-wide singleton.
type Bus struct {
	mu            sync.RWMutex
	channels      map[string]*Channel // channel id -> channel
	direct        map[string]*Channel // sorted pair key -> channel
	topics        map[string][]string // topic -> subscriber agent ids, in subscription order
	topicHandlers map[string][]Handler

	logger logging.Logger
}

// New creates an empty Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Bus{
		channels:      map[string]*Channel{},
		direct:        map[string]*Channel{},
		topics:        map[string][]string{},
		topicHandlers: map[string][]Handler{},
		logger:        opts.Logger,
	}
}

// pairKey builds the canonical channel key: the two agent ids sorted
// ascending. This guarantees at most one channel per unordered pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}

	return a + "\x00" + b
}

// GetOrCreateChannel returns the direct channel between the two agents,
// creating it on first use. The call is idempotent per unordered pair: both
// argument orders yield the identical channel.
func (b *Bus) GetOrCreateChannel(agentA, agentB string) *Channel {
	key := pairKey(agentA, agentB)

	b.mu.RLock()
	ch, ok := b.direct[key]
	b.mu.RUnlock()

	if ok {
		return ch
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.direct[key]; ok {
		return ch
	}

	ch = newChannel(agentA, agentB, b.logger)
	b.direct[key] = ch
	b.channels[ch.ID()] = ch

	b.logger.Debug("channel created", "channel_id", ch.ID(), "agent_a", agentA, "agent_b", agentB)

	return ch
}

// Channels returns all channels known to the bus.
func (b *Bus) Channels() []*Channel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	chs := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		chs = append(chs, ch)
	}

	return chs
}

// ChannelByID returns a channel by its id.
func (b *Bus) ChannelByID(id string) (*Channel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.channels[id]

	return ch, ok
}

// Subscribe adds the agent to a topic. Subscribing twice for the same
// (agent, topic) pair leaves exactly one entry.
func (b *Bus) Subscribe(agentID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.topics[topic] {
		if id == agentID {
			return
		}
	}

	b.topics[topic] = append(b.topics[topic], agentID)
}

// Unsubscribe removes the agent from a topic. Unsubscribing an agent that is
// not subscribed is a no-op.
func (b *Bus) Unsubscribe(agentID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, id := range subs {
		if id == agentID {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns a copy of the topic's subscriber list.
func (b *Bus) Subscribers(topic string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]string(nil), b.topics[topic]...)
}

// Topics returns the sorted names of all topics that have ever been
// subscribed to or had a handler registered.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := map[string]struct{}{}
	for t := range b.topics {
		seen[t] = struct{}{}
	}
	for t := range b.topicHandlers {
		seen[t] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for t := range seen {
		names = append(names, t)
	}

	sort.Strings(names)

	return names
}

// OnTopic registers a handler invoked once per publish to the topic with a
// synthetic "topic:<name>" recipient.
func (b *Bus) OnTopic(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topicHandlers[topic] = append(b.topicHandlers[topic], h)
}

// Publish fans the message out to every subscriber of the topic except the
// sender, creating or reusing a direct channel per recipient. All fan-out
// messages share one timestamp. Topic handlers are invoked exactly once per
// publish with a synthetic "topic:<name>" recipient. It returns the ids of
// the delivered messages.
func (b *Bus) Publish(senderID, topic, msgType string, content map[string]any, optFns ...func(o *SendOptions)) []string {
	b.mu.RLock()
	subscribers := append([]string(nil), b.topics[topic]...)
	handlers := append([]Handler(nil), b.topicHandlers[topic]...)
	b.mu.RUnlock()

	if len(subscribers) == 0 && len(handlers) == 0 {
		b.logger.Warn("no subscribers for topic", "topic", topic)
		return []string{}
	}

	ts := time.Now()
	messageIDs := []string{}

	for _, recipientID := range subscribers {
		if recipientID == senderID {
			continue // skip sending to self
		}

		ch := b.GetOrCreateChannel(senderID, recipientID)

		id, err := ch.Send(senderID, recipientID, msgType, content, func(o *SendOptions) {
			for _, fn := range optFns {
				fn(o)
			}
			o.Timestamp = ts
		})
		if err != nil {
			b.logger.Error("topic fan-out send failed", "topic", topic, "recipient_id", recipientID, "error", err.Error())
			continue
		}

		messageIDs = append(messageIDs, id)
	}

	if len(handlers) > 0 {
		opts := SendOptions{}
		for _, fn := range optFns {
			fn(&opts)
		}

		msg := core.Message{
			ID:             core.NewID(),
			Timestamp:      ts,
			SenderID:       senderID,
			RecipientID:    "topic:" + topic,
			Type:           msgType,
			Content:        content,
			ConversationID: opts.ConversationID,
			ReplyTo:        opts.ReplyTo,
			Metadata:       opts.Metadata,
		}

		for _, h := range handlers {
			invokeHandler(h, msg, b.logger)
		}
	}

	return messageIDs
}

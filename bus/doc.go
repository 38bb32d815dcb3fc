// Package bus implements inter-agent communication: bidirectional channels
// between agent pairs plus topic-based publish/subscribe. Channels are keyed
// by the sorted agent-id pair so at most one channel exists per unordered
// pair. Message handlers are invoked synchronously on send; a panicking
// handler is recovered and logged, never propagated to the sender.
//
// The Bus is addressed purely by agent id strings: it holds no agent object
// references, so the same bus can route for agents living anywhere in the
// process.
package bus

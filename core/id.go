package core

import "github.com/google/uuid"

// NewID generates a new unique identifier. It is used for messages, memory
// items, channels, role assignments, workflow instances and tool call IDs so
// that every entity in the system shares one id format.
func NewID() string { return uuid.NewString() }

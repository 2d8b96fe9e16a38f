package bus

import "time"

// Event represents a committed state change published by the engine.
// Payload holds a typed change description owned by the publishing
// package (e.g. chat.ConversationChange); subscribers type-assert on it.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

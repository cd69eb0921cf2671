package eventbus

import "time"

// Event is a session lifecycle event. Payload carries string attributes such
// as user_id, session_id and provider.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)

// Package notification delivers web push notifications: it owns the VAPID
// signing identity, suppresses bursts of identical events and fans a
// payload out to every device a user has subscribed.
package notification

// Event types emitted by the session manager.
const (
	EventSessionFinished   = "session_finished"
	EventSessionFailed     = "session_failed"
	EventInputRequired     = "input_required"
	EventTestNotification  = "test_notification"
	defaultTitle           = "CloudCLI notification"
	defaultDedupeEventType = "unknown"
	defaultDedupeProvider  = "unknown"
	defaultDedupeSessionID = "none"
)

// Payload is the JSON document handed to the push service. The service
// worker reads title, body, eventType, sessionId and url.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	EventType string `json:"eventType"`
	Provider  string `json:"provider"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// Result reports the outcome of a fan-out.
type Result struct {
	Delivered int  `json:"delivered"`
	Total     int  `json:"total"`
	Skipped   bool `json:"skipped,omitempty"`
}

package service

// EventPublisher is the interface for publishing session events. The push
// service uses it to hand events to the bus without depending on a concrete
// implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string) bool
}

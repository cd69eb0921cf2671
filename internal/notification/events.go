package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaharia-lab/cloudcli-push/internal/eventbus"
)

// Payload keys understood on session events.
const (
	EventKeyUserID    = "user_id"
	EventKeyTitle     = "title"
	EventKeyBody      = "body"
	EventKeyProvider  = "provider"
	EventKeySessionID = "session_id"
	EventKeyURL       = "url"
)

// eventTitles maps well-known event types to a notification title.
var eventTitles = map[string]string{
	EventSessionFinished:  "Session finished",
	EventSessionFailed:    "Session failed",
	EventInputRequired:    "Input required",
	EventTestNotification: "CloudCLI push test",
}

// Sender is the part of Pusher the event bridge needs.
type Sender interface {
	SendToUser(ctx context.Context, userID string, payload Payload) (Result, error)
}

// EventHandler turns session lifecycle events into push notifications.
type EventHandler struct {
	sender Sender
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(sender Sender, logger *slog.Logger) *EventHandler {
	return &EventHandler{sender: sender, logger: logger}
}

// Handle is an eventbus.Listener. Events without a user are ignored.
func (h *EventHandler) Handle(e eventbus.Event) {
	userID := e.Payload[EventKeyUserID]
	if userID == "" {
		return
	}

	payload := PayloadFromEvent(e)
	res, err := h.sender.SendToUser(context.Background(), userID, payload)
	if err != nil {
		h.logger.Error("failed to push session event", "event_type", e.Type, "user_id", userID, "error", err)
		return
	}
	h.logger.Debug("pushed session event",
		"event_type", e.Type, "user_id", userID,
		"delivered", res.Delivered, "total", res.Total, "skipped", res.Skipped)
}

// PayloadFromEvent builds the push payload for a bus event.
func PayloadFromEvent(e eventbus.Event) Payload {
	title := e.Payload[EventKeyTitle]
	if title == "" {
		title = eventTitles[e.Type]
	}
	if title == "" {
		title = defaultTitle
	}

	url := e.Payload[EventKeyURL]
	if url == "" {
		url = "/"
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Payload{
		Title:     title,
		Body:      e.Payload[EventKeyBody],
		EventType: e.Type,
		Provider:  e.Payload[EventKeyProvider],
		SessionID: e.Payload[EventKeySessionID],
		URL:       url,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

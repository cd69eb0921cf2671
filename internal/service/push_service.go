package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaharia-lab/cloudcli-push/internal/notification"
	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

const (
	maxEndpointLength  = 2048
	defaultListLimit   = 50
	maxListLimit       = 500
	testNotifyTitle    = "CloudCLI push test"
	testNotifyBody     = "Push notifications are configured."
	testNotifyProvider = "codex"
)

// PublicKeyProvider yields the application server key browsers subscribe with.
type PublicKeyProvider interface {
	PublicKey(ctx context.Context) (string, error)
}

// PushService is the application surface for web push: subscription
// management, test sends and event intake.
type PushService interface {
	// PublicKey returns the VAPID public key.
	PublicKey(ctx context.Context) (string, error)
	// Subscribe registers or refreshes a browser subscription for userID.
	Subscribe(ctx context.Context, userID string, sub storage.SubscriptionInput, meta storage.DeviceMetadata) (*storage.PushSubscription, error)
	// Unsubscribe removes the user's subscription for endpoint and returns how many rows went away.
	Unsubscribe(ctx context.Context, userID, endpoint string) (int64, error)
	// SendTest pushes a fixed test notification to every device of userID.
	SendTest(ctx context.Context, userID string) (notification.Result, error)
	// PublishEvent queues a session event for userID on the event bus.
	PublishEvent(ctx context.Context, userID, eventType string, payload map[string]string) error
	// ListDeliveries returns the user's most recent delivery attempts.
	ListDeliveries(ctx context.Context, userID string, limit int) ([]storage.DeliveryLogEntry, error)
}

// PushServiceDeps bundles the collaborators of the push service.
type PushServiceDeps struct {
	Keys          PublicKeyProvider
	Subscriptions storage.PushSubscriptionStore
	Sender        notification.Sender
	Events        EventPublisher
	DeliveryLog   storage.DeliveryLogStore
	Logger        *slog.Logger
}

type pushServiceImpl struct {
	keys   PublicKeyProvider
	subs   storage.PushSubscriptionStore
	sender notification.Sender
	events EventPublisher
	log    storage.DeliveryLogStore
	logger *slog.Logger
}

// NewPushService creates a new PushService.
func NewPushService(deps PushServiceDeps) PushService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &pushServiceImpl{
		keys:   deps.Keys,
		subs:   deps.Subscriptions,
		sender: deps.Sender,
		events: deps.Events,
		log:    deps.DeliveryLog,
		logger: deps.Logger,
	}
}

func (s *pushServiceImpl) PublicKey(ctx context.Context) (string, error) {
	return s.keys.PublicKey(ctx)
}

func (s *pushServiceImpl) Subscribe(
	ctx context.Context, userID string, sub storage.SubscriptionInput, meta storage.DeviceMetadata,
) (*storage.PushSubscription, error) {
	if userID == "" {
		return nil, &UnauthorizedError{}
	}
	if err := validateSubscription(sub); err != nil {
		return nil, err
	}
	// A subscription is useless without a signing identity to push with.
	if _, err := s.keys.PublicKey(ctx); err != nil {
		return nil, err
	}

	saved, err := s.subs.Upsert(ctx, userID, sub, meta)
	if err != nil {
		return nil, fmt.Errorf("saving push subscription: %w", err)
	}
	s.logger.Info("push subscription saved", "user_id", userID, "subscription_id", saved.ID, "platform", meta.Platform)
	return saved, nil
}

func validateSubscription(sub storage.SubscriptionInput) error {
	switch {
	case sub.Endpoint == "":
		return &ValidationError{Field: "endpoint", Message: "endpoint is required"}
	case len(sub.Endpoint) > maxEndpointLength:
		return &ValidationError{Field: "endpoint", Message: "endpoint is too long"}
	case !strings.HasPrefix(sub.Endpoint, "https://") && !strings.HasPrefix(sub.Endpoint, "http://"):
		return &ValidationError{Field: "endpoint", Message: "endpoint must be an http(s) URL"}
	case sub.Keys.P256dh == "":
		return &ValidationError{Field: "keys.p256dh", Message: "p256dh key is required"}
	case sub.Keys.Auth == "":
		return &ValidationError{Field: "keys.auth", Message: "auth secret is required"}
	}
	return nil
}

func (s *pushServiceImpl) Unsubscribe(ctx context.Context, userID, endpoint string) (int64, error) {
	if userID == "" {
		return 0, &UnauthorizedError{}
	}
	if endpoint == "" {
		return 0, &ValidationError{Field: "endpoint", Message: "endpoint is required"}
	}

	n, err := s.subs.DeleteByEndpoint(ctx, userID, endpoint)
	if err != nil {
		return 0, fmt.Errorf("removing push subscription: %w", err)
	}
	s.logger.Info("push subscription removed", "user_id", userID, "deleted", n)
	return n, nil
}

func (s *pushServiceImpl) SendTest(ctx context.Context, userID string) (notification.Result, error) {
	if userID == "" {
		return notification.Result{}, &UnauthorizedError{}
	}
	return s.sender.SendToUser(ctx, userID, notification.Payload{
		Title:     testNotifyTitle,
		Body:      testNotifyBody,
		EventType: notification.EventTestNotification,
		Provider:  testNotifyProvider,
		URL:       "/",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *pushServiceImpl) PublishEvent(_ context.Context, userID, eventType string, payload map[string]string) error {
	if userID == "" {
		return &UnauthorizedError{}
	}
	if eventType == "" {
		return &ValidationError{Field: "type", Message: "event type is required"}
	}

	attrs := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		attrs[k] = v
	}
	// The caller's identity always wins over anything in the body.
	attrs[notification.EventKeyUserID] = userID

	if !s.events.Publish(eventType, attrs) {
		return ErrEventDropped
	}
	return nil
}

func (s *pushServiceImpl) ListDeliveries(ctx context.Context, userID string, limit int) ([]storage.DeliveryLogEntry, error) {
	if userID == "" {
		return nil, &UnauthorizedError{}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	return s.log.ListDeliveries(ctx, userID, limit)
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

// IdentityProvider yields the VAPID identity used to sign pushes.
type IdentityProvider interface {
	Identity(ctx context.Context) (*VAPIDIdentity, error)
}

// PusherConfig wires the delivery engine's collaborators.
type PusherConfig struct {
	Keys          IdentityProvider
	Subscriptions storage.PushSubscriptionStore
	Dedupe        *DedupeWindow
	Transport     Transport
	// DeliveryLog is optional.
	DeliveryLog storage.DeliveryLogStore
	// Metrics is optional.
	Metrics *Metrics
	Logger  *slog.Logger
}

// Pusher fans notifications out to every subscription a user has.
type Pusher struct {
	keys      IdentityProvider
	subs      storage.PushSubscriptionStore
	dedupe    *DedupeWindow
	transport Transport
	log       storage.DeliveryLogStore
	metrics   *Metrics
	logger    *slog.Logger
}

// NewPusher creates a Pusher.
func NewPusher(cfg PusherConfig) *Pusher {
	if cfg.Dedupe == nil {
		cfg.Dedupe = NewDedupeWindow(nil, DefaultDedupeWindow)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pusher{
		keys:      cfg.Keys,
		subs:      cfg.Subscriptions,
		dedupe:    cfg.Dedupe,
		transport: cfg.Transport,
		log:       cfg.DeliveryLog,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// SendToUser delivers payload to each of the user's subscriptions, once.
// Failures are isolated per subscription; endpoints the push service
// reports as gone are deleted. An error is returned only when the identity
// or the subscription list cannot be loaded.
func (p *Pusher) SendToUser(ctx context.Context, userID string, payload Payload) (Result, error) {
	id, err := p.keys.Identity(ctx)
	if err != nil {
		return Result{}, err
	}
	if userID == "" {
		return Result{}, nil
	}

	if p.dedupe.ShouldSkip(userID, payload) {
		p.metrics.skipped()
		p.logger.Debug("skipping duplicate notification",
			"user_id", userID, "event_type", payload.EventType, "session_id", payload.SessionID)
		res := Result{Skipped: true}
		p.record(ctx, userID, payload, res)
		return res, nil
	}
	p.metrics.SetDedupeEntries(p.dedupe.Len())

	subs, err := p.subs.ListActive(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("loading subscriptions for %s: %w", userID, err)
	}
	if len(subs) == 0 {
		return Result{}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encoding payload: %w", err)
	}

	res := Result{Total: len(subs)}
	for _, sub := range subs {
		if p.deliver(ctx, sub, body, id) {
			res.Delivered++
		}
	}

	p.logger.Info("push fan-out complete",
		"user_id", userID, "event_type", payload.EventType,
		"delivered", res.Delivered, "total", res.Total)
	p.record(ctx, userID, payload, res)
	return res, nil
}

// deliver makes one attempt for sub and records the outcome on it.
func (p *Pusher) deliver(ctx context.Context, sub *storage.PushSubscription, body []byte, id *VAPIDIdentity) bool {
	sendErr := p.transport.Send(ctx, sub, body, id)
	if sendErr == nil {
		p.metrics.delivery("success")
		if err := p.subs.MarkDeliverySuccess(ctx, sub.ID); err != nil {
			p.logger.Warn("failed to record delivery success", "subscription_id", sub.ID, "error", err)
		}
		return true
	}

	p.metrics.delivery("error")
	p.logger.Warn("push delivery failed", "subscription_id", sub.ID, "user_id", sub.UserID, "error", sendErr)
	if err := p.subs.MarkDeliveryError(ctx, sub.ID, sendErr.Error()); err != nil {
		p.logger.Warn("failed to record delivery error", "subscription_id", sub.ID, "error", err)
	}

	if IsGone(sendErr) {
		if err := p.subs.DeleteByID(ctx, sub.ID); err != nil {
			p.logger.Warn("failed to remove dead subscription", "subscription_id", sub.ID, "error", err)
			return false
		}
		p.metrics.subscriptionPruned()
		p.logger.Info("removed dead subscription", "subscription_id", sub.ID, "user_id", sub.UserID)
	}
	return false
}

func (p *Pusher) record(ctx context.Context, userID string, payload Payload, res Result) {
	if p.log == nil {
		return
	}
	err := p.log.LogDelivery(ctx, storage.DeliveryLogEntry{
		UserID:    userID,
		EventType: payload.EventType,
		Provider:  payload.Provider,
		SessionID: payload.SessionID,
		Delivered: res.Delivered,
		Total:     res.Total,
		Skipped:   res.Skipped,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("failed to log delivery", "user_id", userID, "error", err)
	}
}

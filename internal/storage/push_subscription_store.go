package storage

import (
	"context"
	"errors"
	"time"
)

// Delivery status values recorded on a subscription after each attempt.
const (
	DeliveryStatusSuccess = "success"
	DeliveryStatusError   = "error"
)

// ErrSubscriptionNotFound is returned when a subscription id does not exist.
var ErrSubscriptionNotFound = errors.New("push subscription not found")

// PushSubscription is a browser push endpoint registered by a user, together
// with the health of the last delivery attempt.
type PushSubscription struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Endpoint           string     `json:"endpoint"`
	P256dh             string     `json:"p256dh"`
	Auth               string     `json:"auth"`
	UserAgent          string     `json:"user_agent,omitempty"`
	Platform           string     `json:"platform,omitempty"`
	LastDeliveryStatus string     `json:"last_delivery_status"`
	LastErrorMessage   string     `json:"last_error_message,omitempty"`
	LastSuccessAt      *time.Time `json:"last_success_at,omitempty"`
	LastErrorAt        *time.Time `json:"last_error_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SubscriptionKeys are the client's encryption keys from PushSubscription.toJSON().
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscriptionInput is the browser-provided subscription object.
type SubscriptionInput struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// DeviceMetadata describes the device that registered a subscription.
type DeviceMetadata struct {
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
}

// PushSubscriptionStore is the durable registry of push subscriptions.
// Each method is atomic on its own.
type PushSubscriptionStore interface {
	// Upsert inserts a subscription or, when (userID, endpoint) already exists,
	// replaces its keys and device metadata.
	Upsert(ctx context.Context, userID string, sub SubscriptionInput, meta DeviceMetadata) (*PushSubscription, error)
	// DeleteByEndpoint removes the user's subscription for endpoint and
	// returns how many rows were removed.
	DeleteByEndpoint(ctx context.Context, userID, endpoint string) (int64, error)
	// DeleteByID removes a subscription by id. Missing ids are not an error.
	DeleteByID(ctx context.Context, id string) error
	// ListActive returns the subscriptions eligible for delivery.
	ListActive(ctx context.Context, userID string) ([]*PushSubscription, error)
	// Get returns a subscription by id or ErrSubscriptionNotFound.
	Get(ctx context.Context, id string) (*PushSubscription, error)
	// MarkDeliverySuccess records a successful delivery.
	MarkDeliverySuccess(ctx context.Context, id string) error
	// MarkDeliveryError records a failed delivery with its message.
	MarkDeliveryError(ctx context.Context, id, message string) error
}

package storage

import (
	"context"
	"time"
)

// DeliveryLogEntry summarizes one fan-out of a notification to a user's devices.
type DeliveryLogEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Provider  string    `json:"provider"`
	SessionID string    `json:"session_id"`
	Delivered int       `json:"delivered"`
	Total     int       `json:"total"`
	Skipped   bool      `json:"skipped"`
	CreatedAt time.Time `json:"created_at"`
}

// DeliveryLogStore defines the interface for persisting delivery summaries.
type DeliveryLogStore interface {
	// LogDelivery records a fan-out summary.
	LogDelivery(ctx context.Context, entry DeliveryLogEntry) error
	// ListDeliveries returns the user's most recent summaries, up to limit.
	ListDeliveries(ctx context.Context, userID string, limit int) ([]DeliveryLogEntry, error)
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const subscriptionColumns = `id, user_id, endpoint, p256dh, auth, user_agent, platform,
	last_delivery_status, last_error_message, last_success_at, last_error_at,
	created_at, updated_at`

// SQLitePushSubscriptionStore implements PushSubscriptionStore backed by SQLite.
type SQLitePushSubscriptionStore struct {
	db *sql.DB
}

// NewSQLitePushSubscriptionStore returns a new SQLitePushSubscriptionStore.
func NewSQLitePushSubscriptionStore(db *sql.DB) *SQLitePushSubscriptionStore {
	return &SQLitePushSubscriptionStore{db: db}
}

// Upsert inserts the subscription or updates the existing (user_id, endpoint) row.
// The row id and created_at survive an update.
func (s *SQLitePushSubscriptionStore) Upsert(
	ctx context.Context, userID string, sub SubscriptionInput, meta DeviceMetadata,
) (*PushSubscription, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, user_agent, platform, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET
			p256dh     = excluded.p256dh,
			auth       = excluded.auth,
			user_agent = excluded.user_agent,
			platform   = excluded.platform,
			updated_at = excluded.updated_at`,
		uuid.NewString(), userID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth,
		meta.UserAgent, meta.Platform, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting push subscription: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`,
		userID, sub.Endpoint)
	saved, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("reading upserted push subscription: %w", err)
	}
	return saved, nil
}

// DeleteByEndpoint removes the user's subscription for endpoint.
func (s *SQLitePushSubscriptionStore) DeleteByEndpoint(ctx context.Context, userID, endpoint string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`, userID, endpoint)
	if err != nil {
		return 0, fmt.Errorf("deleting push subscription by endpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading deleted row count: %w", err)
	}
	return n, nil
}

// DeleteByID removes a subscription by id.
func (s *SQLitePushSubscriptionStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting push subscription %s: %w", id, err)
	}
	return nil
}

// ListActive returns the user's subscriptions, oldest first.
func (s *SQLitePushSubscriptionStore) ListActive(ctx context.Context, userID string) ([]*PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying push subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning push subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating push subscription rows: %w", err)
	}
	return subs, nil
}

// Get returns the subscription with the given id.
func (s *SQLitePushSubscriptionStore) Get(ctx context.Context, id string) (*PushSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting push subscription %s: %w", id, err)
	}
	return sub, nil
}

// MarkDeliverySuccess stamps a successful delivery and clears the last error.
func (s *SQLitePushSubscriptionStore) MarkDeliverySuccess(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET last_delivery_status = ?, last_error_message = '', last_success_at = ?, updated_at = ?
		WHERE id = ?`,
		DeliveryStatusSuccess, now, now, id)
	if err != nil {
		return fmt.Errorf("marking delivery success for %s: %w", id, err)
	}
	return nil
}

// MarkDeliveryError stamps a failed delivery with its error message.
func (s *SQLitePushSubscriptionStore) MarkDeliveryError(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET last_delivery_status = ?, last_error_message = ?, last_error_at = ?, updated_at = ?
		WHERE id = ?`,
		DeliveryStatusError, message, now, now, id)
	if err != nil {
		return fmt.Errorf("marking delivery error for %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(r rowScanner) (*PushSubscription, error) {
	var (
		sub                  PushSubscription
		lastSuccess, lastErr sql.NullTime
	)
	if err := r.Scan(
		&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth,
		&sub.UserAgent, &sub.Platform,
		&sub.LastDeliveryStatus, &sub.LastErrorMessage,
		&lastSuccess, &lastErr,
		&sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		sub.LastSuccessAt = &t
	}
	if lastErr.Valid {
		t := lastErr.Time
		sub.LastErrorAt = &t
	}
	return &sub, nil
}

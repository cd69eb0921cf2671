package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteDeliveryLogStore implements DeliveryLogStore backed by SQLite.
type SQLiteDeliveryLogStore struct {
	db *sql.DB
}

// NewSQLiteDeliveryLogStore returns a new SQLiteDeliveryLogStore.
func NewSQLiteDeliveryLogStore(db *sql.DB) *SQLiteDeliveryLogStore {
	return &SQLiteDeliveryLogStore{db: db}
}

// LogDelivery inserts a delivery summary into the database.
func (s *SQLiteDeliveryLogStore) LogDelivery(ctx context.Context, entry DeliveryLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_delivery_log (user_id, event_type, provider, session_id, delivered, total, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.EventType, entry.Provider, entry.SessionID,
		entry.Delivered, entry.Total, entry.Skipped, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// ListDeliveries returns the user's most recent entries, newest first.
func (s *SQLiteDeliveryLogStore) ListDeliveries(ctx context.Context, userID string, limit int) ([]DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, event_type, provider, session_id, delivered, total, skipped, created_at
		FROM push_delivery_log
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying delivery log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []DeliveryLogEntry{}
	for rows.Next() {
		var e DeliveryLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.Provider, &e.SessionID,
			&e.Delivered, &e.Total, &e.Skipped, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery log rows: %w", err)
	}
	return entries, nil
}

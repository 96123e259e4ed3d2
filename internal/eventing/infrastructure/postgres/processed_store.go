package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ProcessedStore tracks per-consumer delivery in the processed_events table.
type ProcessedStore struct {
	db *sql.DB
}

// NewProcessedStore constructs a processed store.
func NewProcessedStore(db *sql.DB) *ProcessedStore {
	return &ProcessedStore{db: db}
}

// HasProcessed reports whether the consumer already handled the event.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumer string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("processed store: nil db")
	}
	if eventID == "" || consumer == "" {
		return false, errors.New("processed store: empty event id or consumer")
	}
	var seen bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer = $2
)`, eventID, consumer).Scan(&seen)
	return seen, err
}

// MarkProcessed records the delivery. Repeat marks are no-ops.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumer string) error {
	if s == nil || s.db == nil {
		return errors.New("processed store: nil db")
	}
	if eventID == "" || consumer == "" {
		return errors.New("processed store: empty event id or consumer")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO processed_events (event_id, consumer, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id, consumer) DO NOTHING`,
		eventID, consumer, time.Now().UTC())
	return err
}

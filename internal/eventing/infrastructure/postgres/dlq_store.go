package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"facility-cloud/internal/eventing"
)

// DLQStore keeps undeliverable envelopes in the dead_letter_events table.
type DLQStore struct {
	db *sql.DB
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db *sql.DB) *DLQStore {
	return &DLQStore{db: db}
}

// RecordFailure upserts by event id, keeping the latest failure and an
// attempt count.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if env.ID == "" {
		return errors.New("dlq store: envelope without id")
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return err
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO dead_letter_events (event_id, kind, envelope, error, first_seen_at, last_seen_at, attempts)
VALUES ($1, $2, $3, $4, $5, $5, 1)
ON CONFLICT (event_id) DO UPDATE SET
	kind = EXCLUDED.kind,
	envelope = EXCLUDED.envelope,
	error = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts = dead_letter_events.attempts + 1`,
		env.ID, env.Kind, blob, reason, now)
	return err
}

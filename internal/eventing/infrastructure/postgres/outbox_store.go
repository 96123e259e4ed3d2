package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"facility-cloud/internal/eventing"
)

// OutboxStore persists envelopes in the event_outbox table. The envelope id
// is the row key, so re-publishing the same event id is a no-op.
type OutboxStore struct {
	db *sql.DB
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// Insert stores the envelope as pending and returns its id.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("outbox store: nil db")
	}
	if env.ID == "" {
		return "", errors.New("outbox store: envelope without id")
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO event_outbox (id, kind, envelope, status, attempts, created_at)
VALUES ($1, $2, $3, 'pending', 0, $4)
ON CONFLICT (id) DO NOTHING`,
		env.ID, env.Kind, blob, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return env.ID, nil
}

// ListPending returns up to limit pending envelopes, oldest first.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("outbox store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, envelope
FROM event_outbox
WHERE status = 'pending'
ORDER BY created_at
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []eventing.OutboxRecord
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		var env eventing.Envelope
		if err := json.Unmarshal(blob, &env); err != nil {
			return nil, err
		}
		pending = append(pending, eventing.OutboxRecord{ID: id, Envelope: env})
	}
	return pending, rows.Err()
}

// MarkSent settles a delivered row.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE event_outbox
SET status = 'sent', sent_at = $1
WHERE id = $2`, time.Now().UTC(), id)
	return err
}

// MarkFailed flags a row whose delivery failed and counts the attempt.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE event_outbox
SET status = 'failed', attempts = attempts + 1
WHERE id = $1`, id)
	return err
}

package commandlog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Appender writes command log items.
type Appender interface {
	Append(ctx context.Context, item Item) error
}

// Repository stores command log items in postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Append writes one command log item.
func (r *Repository) Append(ctx context.Context, item Item) error {
	if r == nil || r.db == nil {
		return errors.New("command log repo: nil db")
	}
	if item.ID == "" {
		item.ID = NewID()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO command_log (id, ts, actor, action, details)
VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.Timestamp.UTC(), item.Actor, item.Action, item.Details)
	return err
}

// ListByTime returns command log items in a time range, newest first.
func (r *Repository) ListByTime(ctx context.Context, from, to time.Time, limit int) ([]Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("command log repo: nil db")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ts, actor, action, details
FROM command_log
WHERE ts >= $1 AND ts < $2
ORDER BY ts DESC
LIMIT $3`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Timestamp, &item.Actor, &item.Action, &item.Details); err != nil {
			return nil, err
		}
		item.Timestamp = item.Timestamp.UTC()
		list = append(list, item)
	}
	return list, rows.Err()
}

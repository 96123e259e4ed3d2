package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	rules "facility-cloud/internal/rules/domain"
)

// AutomationRepository stores automations and schedules. Condition groups
// and actions are persisted as JSON documents; legacy flat fields survive in
// the same document until normalization.
type AutomationRepository struct {
	db *sql.DB
}

// NewAutomationRepository constructs a repository.
func NewAutomationRepository(db *sql.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

// ListEnabledAutomations returns all enabled automations.
func (r *AutomationRepository) ListEnabledAutomations(ctx context.Context) ([]rules.Automation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("automation repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, site_id, enabled, definition, created_at, updated_at
FROM automations
WHERE enabled = TRUE
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []rules.Automation
	for rows.Next() {
		item, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *item)
	}
	return list, rows.Err()
}

// ListAutomations returns every automation, disabled ones included.
func (r *AutomationRepository) ListAutomations(ctx context.Context) ([]rules.Automation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("automation repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, site_id, enabled, definition, created_at, updated_at
FROM automations
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []rules.Automation
	for rows.Next() {
		item, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *item)
	}
	return list, rows.Err()
}

// GetAutomation fetches one automation by id.
func (r *AutomationRepository) GetAutomation(ctx context.Context, id string) (*rules.Automation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("automation repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, site_id, enabled, definition, created_at, updated_at
FROM automations
WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return scanAutomation(rows)
}

// SaveAutomation upserts an automation.
func (r *AutomationRepository) SaveAutomation(ctx context.Context, item rules.Automation) error {
	if r == nil || r.db == nil {
		return errors.New("automation repo: nil db")
	}
	definition, err := json.Marshal(item)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO automations (id, name, site_id, enabled, definition, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	site_id = EXCLUDED.site_id,
	enabled = EXCLUDED.enabled,
	definition = EXCLUDED.definition,
	updated_at = EXCLUDED.updated_at`,
		item.ID, item.Name, item.SiteID, item.Enabled, definition, now)
	return err
}

// SetAutomationEnabled flips the enabled flag.
func (r *AutomationRepository) SetAutomationEnabled(ctx context.Context, id string, enabled bool) error {
	if r == nil || r.db == nil {
		return errors.New("automation repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE automations SET enabled = $2, updated_at = $3 WHERE id = $1`,
		id, enabled, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return rules.ErrNotFound
	}
	return nil
}

// ListEnabledSchedules returns all enabled schedules.
func (r *AutomationRepository) ListEnabledSchedules(ctx context.Context) ([]rules.Schedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("automation repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, site_id, cron, action, targets, enabled
FROM schedules
WHERE enabled = TRUE
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []rules.Schedule
	for rows.Next() {
		var item rules.Schedule
		var action string
		var targets []byte
		if err := rows.Scan(&item.ID, &item.Name, &item.SiteID, &item.Cron, &action, &targets, &item.Enabled); err != nil {
			return nil, err
		}
		item.Action = rules.DesiredState(action)
		if len(targets) > 0 {
			if err := json.Unmarshal(targets, &item.Targets); err != nil {
				return nil, err
			}
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

func scanAutomation(rows *sql.Rows) (*rules.Automation, error) {
	var (
		id, name, siteID string
		enabled          bool
		definition       []byte
		createdAt        time.Time
		updatedAt        time.Time
	)
	if err := rows.Scan(&id, &name, &siteID, &enabled, &definition, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var item rules.Automation
	if len(definition) > 0 {
		if err := json.Unmarshal(definition, &item); err != nil {
			return nil, err
		}
	}
	// Columns win over the serialized document.
	item.ID = id
	item.Name = name
	item.SiteID = siteID
	item.Enabled = enabled
	item.CreatedAt = createdAt.UTC()
	item.UpdatedAt = updatedAt.UTC()
	return &item, nil
}

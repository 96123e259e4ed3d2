package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	rules "facility-cloud/internal/rules/domain"
)

// AlertRuleRepository stores alert rules. Conditions, overrides and the
// escalation config live in a JSON document; legacy flat fields survive in
// the same document until normalization.
type AlertRuleRepository struct {
	db *sql.DB
}

// NewAlertRuleRepository constructs a repository.
func NewAlertRuleRepository(db *sql.DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

// ListEnabled returns all enabled alert rules.
func (r *AlertRuleRepository) ListEnabled(ctx context.Context) ([]rules.AlertRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert rule repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, enabled, equipment_type, definition, created_at, updated_at
FROM alert_rules
WHERE enabled = TRUE
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []rules.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rule)
	}
	return list, rows.Err()
}

// List returns every rule, disabled ones included.
func (r *AlertRuleRepository) List(ctx context.Context) ([]rules.AlertRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert rule repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, enabled, equipment_type, definition, created_at, updated_at
FROM alert_rules
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []rules.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rule)
	}
	return list, rows.Err()
}

// GetByID fetches one rule by id.
func (r *AlertRuleRepository) GetByID(ctx context.Context, id string) (*rules.AlertRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert rule repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, enabled, equipment_type, definition, created_at, updated_at
FROM alert_rules
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
	return scanAlertRule(rows)
}

// Save upserts a rule.
func (r *AlertRuleRepository) Save(ctx context.Context, rule rules.AlertRule) error {
	if r == nil || r.db == nil {
		return errors.New("alert rule repo: nil db")
	}
	definition, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO alert_rules (id, name, enabled, equipment_type, definition, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	enabled = EXCLUDED.enabled,
	equipment_type = EXCLUDED.equipment_type,
	definition = EXCLUDED.definition,
	updated_at = EXCLUDED.updated_at`,
		rule.ID, rule.Name, rule.Enabled, rule.EquipmentType, definition, now)
	return err
}

// SetEnabled flips the enabled flag.
func (r *AlertRuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if r == nil || r.db == nil {
		return errors.New("alert rule repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE alert_rules SET enabled = $2, updated_at = $3 WHERE id = $1`,
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

func scanAlertRule(rows *sql.Rows) (*rules.AlertRule, error) {
	var (
		id, name, equipmentType string
		enabled                 bool
		definition              []byte
		createdAt               time.Time
		updatedAt               time.Time
	)
	if err := rows.Scan(&id, &name, &enabled, &equipmentType, &definition, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var rule rules.AlertRule
	if len(definition) > 0 {
		if err := json.Unmarshal(definition, &rule); err != nil {
			return nil, err
		}
	}
	// Columns win over the serialized document.
	rule.ID = id
	rule.Name = name
	rule.Enabled = enabled
	rule.EquipmentType = equipmentType
	rule.CreatedAt = createdAt.UTC()
	rule.UpdatedAt = updatedAt.UTC()
	return &rule, nil
}

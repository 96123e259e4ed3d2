package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerts "facility-cloud/internal/alerts/domain"
)

// AlertRepository is a Postgres repository for alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.ID == "" || alert.EquipmentID == "" {
		return errors.New("alert repo: missing fields")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alerts (
	id, rule_id, type, ts, message, equipment_id, site_id, severity, status,
	acknowledged_by, acknowledged_at, resolved_at, escalation_level, last_value,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9,
	$10, $11, $12, $13, $14,
	$15, $16
)`,
		alert.ID,
		alert.RuleID,
		alert.Type,
		alert.TS,
		alert.Message,
		alert.EquipmentID,
		alert.SiteID,
		alert.Severity,
		alert.Status,
		nullableString(alert.AcknowledgedBy),
		nullableTime(alert.AcknowledgedAt),
		nullableTime(alert.ResolvedAt),
		alert.EscalationLevel,
		sql.NullFloat64{Float64: alert.LastValue, Valid: true},
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	return err
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, rule_id, type, ts, message, equipment_id, site_id, severity, status,
	acknowledged_by, acknowledged_at, resolved_at, escalation_level, last_value,
	created_at, updated_at
FROM alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// FindOpenByRuleEquipment returns the active or acknowledged alert for a
// rule/equipment pair.
func (r *AlertRepository) FindOpenByRuleEquipment(ctx context.Context, ruleID, equipmentID string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if ruleID == "" || equipmentID == "" {
		return nil, errors.New("alert repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, rule_id, type, ts, message, equipment_id, site_id, severity, status,
	acknowledged_by, acknowledged_at, resolved_at, escalation_level, last_value,
	created_at, updated_at
FROM alerts
WHERE rule_id = $1 AND equipment_id = $2
	AND status IN ('active', 'acknowledged')
ORDER BY created_at DESC
LIMIT 1`, ruleID, equipmentID)
	return scanAlert(row)
}

// UpdateLastValue updates the last observed value and updated_at.
func (r *AlertRepository) UpdateLastValue(ctx context.Context, id string, value float64, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET last_value = $1, updated_at = $2
WHERE id = $3`, value, updatedAt, id)
	return err
}

// MarkAcknowledged marks an alert as acknowledged.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id, by string, ackedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $1, acknowledged_by = $2, acknowledged_at = $3, updated_at = $4
WHERE id = $5`, alerts.StatusAcknowledged, by, ackedAt, ackedAt, id)
	return err
}

// MarkResolved marks an alert as resolved.
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, value float64, resolvedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $1, last_value = $2, resolved_at = $3, updated_at = $4
WHERE id = $5`, alerts.StatusResolved, value, resolvedAt, resolvedAt, id)
	return err
}

// IncrementEscalation bumps the escalation level and returns the new level.
func (r *AlertRepository) IncrementEscalation(ctx context.Context, id string, updatedAt time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	var level int
	err := r.db.QueryRowContext(ctx, `
UPDATE alerts
SET escalation_level = escalation_level + 1, updated_at = $1
WHERE id = $2
RETURNING escalation_level`, updatedAt, id).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, alerts.ErrNotFound
	}
	return level, err
}

// ListByTime lists alerts raised within the window, optionally filtered by
// site and status.
func (r *AlertRepository) ListByTime(ctx context.Context, siteID, status string, from, to time.Time) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := `
SELECT id, rule_id, type, ts, message, equipment_id, site_id, severity, status,
	acknowledged_by, acknowledged_at, resolved_at, escalation_level, last_value,
	created_at, updated_at
FROM alerts
WHERE ts >= $1 AND ts < $2`
	args := []any{from, to}
	if siteID != "" {
		args = append(args, siteID)
		query += " AND site_id = $3"
	}
	if status != "" {
		args = append(args, status)
		if siteID != "" {
			query += " AND status = $4"
		} else {
			query += " AND status = $3"
		}
	}
	query += " ORDER BY ts DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var ackedBy sql.NullString
	var ackedAt sql.NullTime
	var resolvedAt sql.NullTime
	var lastValue sql.NullFloat64
	if err := row.Scan(
		&alert.ID,
		&alert.RuleID,
		&alert.Type,
		&alert.TS,
		&alert.Message,
		&alert.EquipmentID,
		&alert.SiteID,
		&alert.Severity,
		&alert.Status,
		&ackedBy,
		&ackedAt,
		&resolvedAt,
		&alert.EscalationLevel,
		&lastValue,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.TS = alert.TS.UTC()
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	if ackedBy.Valid {
		alert.AcknowledgedBy = ackedBy.String
	}
	if ackedAt.Valid {
		alert.AcknowledgedAt = ackedAt.Time.UTC()
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	if lastValue.Valid {
		alert.LastValue = lastValue.Float64
	}
	return &alert, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	inventory "facility-cloud/internal/inventory/domain"
)

// EquipmentRepository stores equipment reference records.
type EquipmentRepository struct {
	db *sql.DB
}

// NewEquipmentRepository constructs a repository.
func NewEquipmentRepository(db *sql.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// GetByID fetches one equipment record.
func (r *EquipmentRepository) GetByID(ctx context.Context, id string) (*inventory.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, type, site_id, tower_id, status, rated_kw, serial_no, last_seen, created_at, updated_at
FROM equipment
WHERE id = $1`, id)
	return scanEquipment(row)
}

// ListByType returns equipment of one type across all sites.
func (r *EquipmentRepository) ListByType(ctx context.Context, equipmentType string) ([]inventory.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, type, site_id, tower_id, status, rated_kw, serial_no, last_seen, created_at, updated_at
FROM equipment
WHERE type = $1
ORDER BY id`, equipmentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEquipment(rows)
}

// ListBySite returns equipment belonging to a site.
func (r *EquipmentRepository) ListBySite(ctx context.Context, siteID string) ([]inventory.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, type, site_id, tower_id, status, rated_kw, serial_no, last_seen, created_at, updated_at
FROM equipment
WHERE site_id = $1
ORDER BY id`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEquipment(rows)
}

// SetStatus updates the stored status of one equipment unit. It is the
// persistence half of the equipment-control collaborator.
func (r *EquipmentRepository) SetStatus(ctx context.Context, id string, status inventory.Status) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if !status.Valid() {
		return errors.New("equipment repo: invalid status")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE equipment SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func scanEquipment(row *sql.Row) (*inventory.Equipment, error) {
	var eq inventory.Equipment
	var status string
	var ratedKw sql.NullFloat64
	var serialNo sql.NullString
	var lastSeen sql.NullTime
	if err := row.Scan(&eq.ID, &eq.Name, &eq.Type, &eq.SiteID, &eq.TowerID, &status, &ratedKw, &serialNo, &lastSeen, &eq.CreatedAt, &eq.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	eq.Status = inventory.Status(status)
	if ratedKw.Valid {
		eq.RatedKw = ratedKw.Float64
	}
	if serialNo.Valid {
		eq.SerialNo = serialNo.String
	}
	if lastSeen.Valid {
		eq.LastSeen = lastSeen.Time.UTC()
	}
	eq.CreatedAt = eq.CreatedAt.UTC()
	eq.UpdatedAt = eq.UpdatedAt.UTC()
	return &eq, nil
}

func collectEquipment(rows *sql.Rows) ([]inventory.Equipment, error) {
	var list []inventory.Equipment
	for rows.Next() {
		var eq inventory.Equipment
		var status string
		var ratedKw sql.NullFloat64
		var serialNo sql.NullString
		var lastSeen sql.NullTime
		if err := rows.Scan(&eq.ID, &eq.Name, &eq.Type, &eq.SiteID, &eq.TowerID, &status, &ratedKw, &serialNo, &lastSeen, &eq.CreatedAt, &eq.UpdatedAt); err != nil {
			return nil, err
		}
		eq.Status = inventory.Status(status)
		if ratedKw.Valid {
			eq.RatedKw = ratedKw.Float64
		}
		if serialNo.Valid {
			eq.SerialNo = serialNo.String
		}
		if lastSeen.Valid {
			eq.LastSeen = lastSeen.Time.UTC()
		}
		eq.CreatedAt = eq.CreatedAt.UTC()
		eq.UpdatedAt = eq.UpdatedAt.UTC()
		list = append(list, eq)
	}
	return list, rows.Err()
}

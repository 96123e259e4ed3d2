package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	inventory "facility-cloud/internal/inventory/domain"
)

// SnapshotRepository stores the latest snapshot per equipment unit.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository constructs a repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// UpsertLatest replaces the stored snapshot for the equipment when the new
// one is not older than the stored one.
func (r *SnapshotRepository) UpsertLatest(ctx context.Context, snap inventory.Snapshot) error {
	if r == nil || r.db == nil {
		return errors.New("snapshot repo: nil db")
	}
	if snap.EquipmentID == "" {
		return errors.New("snapshot repo: empty equipment id")
	}
	at := snap.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	metrics, err := json.Marshal(snap.Metrics)
	if err != nil {
		return err
	}
	alarms, err := json.Marshal(snap.Alarms)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO equipment_snapshots (
	equipment_id, site_id, tower_id, status, metrics, alarms, at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (equipment_id)
DO UPDATE SET
	site_id = EXCLUDED.site_id,
	tower_id = EXCLUDED.tower_id,
	status = EXCLUDED.status,
	metrics = EXCLUDED.metrics,
	alarms = EXCLUDED.alarms,
	at = EXCLUDED.at
WHERE equipment_snapshots.at <= EXCLUDED.at`,
		snap.EquipmentID, snap.SiteID, snap.TowerID, string(snap.Status), metrics, alarms, at.UTC())
	return err
}

// GetLatest fetches the stored snapshot for one equipment unit.
func (r *SnapshotRepository) GetLatest(ctx context.Context, equipmentID string) (*inventory.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT equipment_id, site_id, tower_id, status, metrics, alarms, at
FROM equipment_snapshots
WHERE equipment_id = $1`, equipmentID)
	snap, err := scanSnapshot(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}

// ListLatestBySite returns the stored snapshots for all equipment at a site.
func (r *SnapshotRepository) ListLatestBySite(ctx context.Context, siteID string) ([]inventory.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT equipment_id, site_id, tower_id, status, metrics, alarms, at
FROM equipment_snapshots
WHERE site_id = $1
ORDER BY equipment_id`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []inventory.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *snap)
	}
	return list, rows.Err()
}

func scanSnapshot(scan func(dest ...any) error) (*inventory.Snapshot, error) {
	var snap inventory.Snapshot
	var status string
	var metrics, alarms []byte
	if err := scan(&snap.EquipmentID, &snap.SiteID, &snap.TowerID, &status, &metrics, &alarms, &snap.At); err != nil {
		return nil, err
	}
	snap.Status = inventory.Status(status)
	snap.At = snap.At.UTC()
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &snap.Metrics); err != nil {
			return nil, err
		}
	}
	if len(alarms) > 0 {
		if err := json.Unmarshal(alarms, &snap.Alarms); err != nil {
			return nil, err
		}
	}
	return &snap, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	inventory "facility-cloud/internal/inventory/domain"
)

// SiteRepository stores site reference records.
type SiteRepository struct {
	db *sql.DB
}

// NewSiteRepository constructs a repository.
func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Get fetches one site.
func (r *SiteRepository) Get(ctx context.Context, id string) (*inventory.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, city, contact_name, contact_phone, subscription_start_date, subscription_end_date
FROM sites
WHERE id = $1`, id)

	site, err := scanSite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

// List returns all sites ordered by id.
func (r *SiteRepository) List(ctx context.Context) ([]inventory.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, city, contact_name, contact_phone, subscription_start_date, subscription_end_date
FROM sites
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []inventory.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, site)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (inventory.Site, error) {
	var site inventory.Site
	var contactName, contactPhone sql.NullString
	var subStart, subEnd sql.NullTime
	if err := row.Scan(&site.ID, &site.Name, &site.City, &contactName, &contactPhone, &subStart, &subEnd); err != nil {
		return inventory.Site{}, err
	}
	if contactName.Valid {
		site.ContactName = contactName.String
	}
	if contactPhone.Valid {
		site.ContactPhone = contactPhone.String
	}
	if subStart.Valid {
		site.SubscriptionStartDate = subStart.Time.UTC()
	}
	if subEnd.Valid {
		site.SubscriptionEndDate = subEnd.Time.UTC()
	}
	return site, nil
}


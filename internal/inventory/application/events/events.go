package events

import (
	"time"

	inventory "facility-cloud/internal/inventory/domain"
)

// SnapshotReceived is published when an equipment snapshot batch lands.
type SnapshotReceived struct {
	EventID    string             `json:"event_id"`
	SiteID     string             `json:"site_id"`
	Snapshot   inventory.Snapshot `json:"snapshot"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// EventSite returns the site the snapshot came from.
func (e SnapshotReceived) EventSite() string { return e.SiteID }

// EventTime returns when the snapshot landed.
func (e SnapshotReceived) EventTime() time.Time { return e.OccurredAt }

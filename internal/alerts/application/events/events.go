package events

import (
	"time"

	alerts "facility-cloud/internal/alerts/domain"
)

// AlertRaised is published when a sustained condition opens a new alert.
type AlertRaised struct {
	EventID    string       `json:"event_id"`
	SiteID     string       `json:"site_id"`
	Alert      alerts.Alert `json:"alert"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventSite returns the site of the alerting equipment.
func (e AlertRaised) EventSite() string { return e.SiteID }

// EventTime returns when the alert opened.
func (e AlertRaised) EventTime() time.Time { return e.OccurredAt }

// AlertAcknowledged is published when an operator acknowledges an alert.
type AlertAcknowledged struct {
	EventID    string       `json:"event_id"`
	SiteID     string       `json:"site_id"`
	Alert      alerts.Alert `json:"alert"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventSite returns the site of the alerting equipment.
func (e AlertAcknowledged) EventSite() string { return e.SiteID }

// EventTime returns when the acknowledgement happened.
func (e AlertAcknowledged) EventTime() time.Time { return e.OccurredAt }

// AlertResolved is published when an alert resolves, manually or on recovery.
type AlertResolved struct {
	EventID    string       `json:"event_id"`
	SiteID     string       `json:"site_id"`
	Alert      alerts.Alert `json:"alert"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventSite returns the site of the alerting equipment.
func (e AlertResolved) EventSite() string { return e.SiteID }

// EventTime returns when the alert closed.
func (e AlertResolved) EventTime() time.Time { return e.OccurredAt }

// AlertEscalated is published on each escalation step of an
// unacknowledged active alert.
type AlertEscalated struct {
	EventID    string       `json:"event_id"`
	SiteID     string       `json:"site_id"`
	Alert      alerts.Alert `json:"alert"`
	Level      int          `json:"level"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventSite returns the site of the alerting equipment.
func (e AlertEscalated) EventSite() string { return e.SiteID }

// EventTime returns when the escalation step fired.
func (e AlertEscalated) EventTime() time.Time { return e.OccurredAt }

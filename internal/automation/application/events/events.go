package events

import "time"

// AutomationTriggered is published when an automation's condition groups
// evaluate true and its actions are handed to the dispatcher.
type AutomationTriggered struct {
	EventID      string    `json:"event_id"`
	AutomationID string    `json:"automation_id"`
	SiteID       string    `json:"site_id"`
	ActionCount  int       `json:"action_count"`
	FailedCount  int       `json:"failed_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventSite returns the site the automation is scoped to.
func (e AutomationTriggered) EventSite() string { return e.SiteID }

// EventTime returns when the trigger fired.
func (e AutomationTriggered) EventTime() time.Time { return e.OccurredAt }

package alerts

import "time"

const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

// Alert is an alert instance raised from a rule evaluation.
type Alert struct {
	ID              string    `json:"id"`
	RuleID          string    `json:"rule_id,omitempty"`
	Type            string    `json:"type"`
	TS              time.Time `json:"ts"`
	Message         string    `json:"message"`
	EquipmentID     string    `json:"equipment_id"`
	SiteID          string    `json:"site_id"`
	Severity        string    `json:"severity"`
	Status          string    `json:"status"`
	AcknowledgedBy  string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at,omitempty"`
	EscalationLevel int       `json:"escalation_level"`
	LastValue       float64   `json:"last_value"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

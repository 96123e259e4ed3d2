package rules

import (
	"errors"
	"time"
)

// AlertRuleCondition is the sustained threshold an alert rule watches.
type AlertRuleCondition struct {
	Metric          string   `json:"metric"`
	Operator        Operator `json:"operator"`
	Threshold       float64  `json:"threshold"`
	DurationMinutes int      `json:"durationMinutes"`
}

// Validate checks condition invariants.
func (c AlertRuleCondition) Validate() error {
	if c.Metric == "" {
		return errors.New("alert rule condition: empty metric")
	}
	if !c.Operator.Valid() {
		return errors.New("alert rule condition: invalid operator")
	}
	if c.DurationMinutes < 0 {
		return errors.New("alert rule condition: negative duration")
	}
	return nil
}

// SiteOverride replaces the default condition for equipment at one site.
type SiteOverride struct {
	SiteID    string             `json:"siteId"`
	Condition AlertRuleCondition `json:"condition"`
}

// EscalationConfig schedules repeated re-notification of an unacknowledged
// active alert.
type EscalationConfig struct {
	Enabled      bool     `json:"enabled"`
	DelayMinutes int      `json:"delayMinutes"`
	NotifyRoles  []string `json:"notifyRoles"`
}

// AlertRule emits alerts when a sustained metric condition holds for
// equipment of its target type.
//
// SiteID and LegacyCondition are the deprecated flat representation;
// NormalizeAlertRule folds them into DefaultCondition/SiteOverrides.
type AlertRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Enabled          bool               `json:"enabled"`
	EquipmentType    string             `json:"equipmentType"`
	Severity         Severity           `json:"severity"`
	DefaultCondition AlertRuleCondition `json:"defaultCondition"`
	SiteOverrides    []SiteOverride     `json:"siteOverrides"`
	Escalation       *EscalationConfig  `json:"escalationConfig,omitempty"`

	// Deprecated: migrated to DefaultCondition/SiteOverrides.
	SiteID string `json:"siteId,omitempty"`
	// Deprecated: migrated to DefaultCondition/SiteOverrides.
	LegacyCondition *AlertRuleCondition `json:"condition,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks rule invariants on the normalized form.
func (r AlertRule) Validate() error {
	if r.ID == "" {
		return errors.New("alert rule: empty id")
	}
	if r.Name == "" {
		return errors.New("alert rule: empty name")
	}
	if r.EquipmentType == "" {
		return errors.New("alert rule: empty equipment type")
	}
	if !r.Severity.Valid() {
		return errors.New("alert rule: invalid severity")
	}
	if err := r.DefaultCondition.Validate(); err != nil {
		return err
	}
	for _, override := range r.SiteOverrides {
		if override.SiteID == "" {
			return errors.New("alert rule: override with empty site id")
		}
		if err := override.Condition.Validate(); err != nil {
			return err
		}
	}
	if r.Escalation != nil && r.Escalation.Enabled {
		if r.Escalation.DelayMinutes <= 0 {
			return errors.New("alert rule: escalation delay must be positive")
		}
		if len(r.Escalation.NotifyRoles) == 0 {
			return errors.New("alert rule: escalation without notify roles")
		}
	}
	return nil
}

// ConditionForSite resolves the condition for equipment at the given site:
// the first matching site override wins, the default condition otherwise.
func (r AlertRule) ConditionForSite(siteID string) AlertRuleCondition {
	for _, override := range r.SiteOverrides {
		if override.SiteID == siteID {
			return override.Condition
		}
	}
	return r.DefaultCondition
}

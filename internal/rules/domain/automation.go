package rules

import (
	"errors"
	"time"
)

// Automation executes actions when its condition groups evaluate true.
//
// Conditions and ConditionLogic are the deprecated flat representation;
// NormalizeAutomation folds them into ConditionGroups before evaluation.
type Automation struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	SiteID            string           `json:"siteId"`
	Enabled           bool             `json:"enabled"`
	ConditionGroups   []ConditionGroup `json:"conditionGroups"`
	Actions           []Action         `json:"actions"`
	NotifyOnExecution bool             `json:"notifyOnExecution,omitempty"`

	// Deprecated: migrated to ConditionGroups.
	Conditions []Condition `json:"conditions,omitempty"`
	// Deprecated: migrated to ConditionGroups.
	ConditionLogic LogicOperator `json:"conditionLogic,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks automation invariants on the normalized form.
func (a Automation) Validate() error {
	if a.ID == "" {
		return errors.New("automation: empty id")
	}
	if a.Name == "" {
		return errors.New("automation: empty name")
	}
	if a.SiteID == "" {
		return errors.New("automation: empty site id")
	}
	if err := ValidateGroups(a.ConditionGroups); err != nil {
		return err
	}
	for _, action := range a.Actions {
		if err := action.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Schedule is a plain time-triggered equipment command: at each cron firing
// the listed targets are driven to the configured state.
type Schedule struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	SiteID  string       `json:"siteId"`
	Cron    string       `json:"cron"`
	Action  DesiredState `json:"action"`
	Targets []string     `json:"targets"`
	Enabled bool         `json:"enabled"`
}

// Validate checks schedule invariants.
func (s Schedule) Validate() error {
	if s.ID == "" {
		return errors.New("schedule: empty id")
	}
	if s.Cron == "" {
		return errors.New("schedule: empty cron expression")
	}
	if s.Action != StateOn && s.Action != StateOff {
		return errors.New("schedule: invalid action")
	}
	if len(s.Targets) == 0 {
		return errors.New("schedule: no targets")
	}
	return nil
}

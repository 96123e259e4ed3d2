package rules

import "errors"

// ActionKind discriminates action variants.
type ActionKind string

const (
	ActionEquipment    ActionKind = "equipment"
	ActionNotification ActionKind = "notification"
)

// DesiredState is the target equipment state for an equipment action.
type DesiredState string

const (
	StateOn  DesiredState = "ON"
	StateOff DesiredState = "OFF"
)

// Action is a side effect attached to an automation. Exactly one kind's
// fields are populated: equipment actions carry TargetID/To, notification
// actions carry Message/Severity.
type Action struct {
	ID   string     `json:"id"`
	Kind ActionKind `json:"kind"`

	TargetID string       `json:"targetId,omitempty"`
	To       DesiredState `json:"to,omitempty"`

	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

// Validate checks action invariants.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionEquipment:
		if a.TargetID == "" {
			return errors.New("action: empty target equipment id")
		}
		if a.To != StateOn && a.To != StateOff {
			return errors.New("action: invalid desired state")
		}
		if a.Message != "" || a.Severity != "" {
			return errors.New("action: equipment action carries notification fields")
		}
		return nil
	case ActionNotification:
		if a.Message == "" {
			return errors.New("action: empty message")
		}
		if !a.Severity.Valid() {
			return errors.New("action: invalid severity")
		}
		if a.TargetID != "" || a.To != "" {
			return errors.New("action: notification action carries equipment fields")
		}
		return nil
	default:
		return errors.New("action: unknown kind")
	}
}

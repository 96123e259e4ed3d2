package rules

import "errors"

// ConditionKind discriminates condition variants.
type ConditionKind string

const (
	ConditionMetric ConditionKind = "metric"
	ConditionTime   ConditionKind = "time"
)

// Operator compares a metric value with a threshold.
type Operator string

const (
	OperatorGreater Operator = ">"
	OperatorLess    Operator = "<"
	OperatorEqual   Operator = "="
)

// Valid returns true when operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to a value and threshold. Equality is exact.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGreater:
		return value > threshold
	case OperatorLess:
		return value < threshold
	case OperatorEqual:
		return value == threshold
	default:
		return false
	}
}

// LogicOperator combines boolean results.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Valid returns true when the logic operator is supported.
func (l LogicOperator) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// MetricAlarmCount reads the snapshot alarm list length instead of a stored metric.
const MetricAlarmCount = "alarmCount"

// Condition is a single boolean trigger. Exactly one kind's fields are
// populated: metric conditions carry EquipmentID/Metric/Operator/Threshold,
// time conditions carry a cron expression.
type Condition struct {
	ID   string        `json:"id"`
	Kind ConditionKind `json:"kind"`

	EquipmentID string   `json:"equipmentId,omitempty"`
	Metric      string   `json:"metric,omitempty"`
	Operator    Operator `json:"operator,omitempty"`
	Threshold   float64  `json:"threshold,omitempty"`

	Cron string `json:"cron,omitempty"`
}

// Validate checks condition invariants.
func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionMetric:
		if c.EquipmentID == "" {
			return errors.New("condition: empty equipment id")
		}
		if c.Metric == "" {
			return errors.New("condition: empty metric")
		}
		if !c.Operator.Valid() {
			return errors.New("condition: invalid operator")
		}
		if c.Cron != "" {
			return errors.New("condition: metric condition carries cron")
		}
		return nil
	case ConditionTime:
		if c.Cron == "" {
			return errors.New("condition: empty cron expression")
		}
		if c.EquipmentID != "" || c.Metric != "" || c.Operator != "" {
			return errors.New("condition: time condition carries metric fields")
		}
		return nil
	default:
		return errors.New("condition: unknown kind")
	}
}

// ConditionGroup combines conditions with a single intra-group operator.
// NextGroupOperator joins this group's result with the following group;
// the last group in a rule must leave it empty.
type ConditionGroup struct {
	ID                string        `json:"id"`
	Logic             LogicOperator `json:"logic"`
	Conditions        []Condition   `json:"conditions"`
	NextGroupOperator LogicOperator `json:"nextGroupOperator,omitempty"`
}

// Validate checks group invariants.
func (g ConditionGroup) Validate() error {
	if !g.Logic.Valid() {
		return errors.New("condition group: invalid logic")
	}
	if g.NextGroupOperator != "" && !g.NextGroupOperator.Valid() {
		return errors.New("condition group: invalid next-group operator")
	}
	for _, cond := range g.Conditions {
		if err := cond.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateGroups checks the inter-group operator chain: every group but the
// last declares its join operator, the last declares none.
func ValidateGroups(groups []ConditionGroup) error {
	for i, group := range groups {
		if err := group.Validate(); err != nil {
			return err
		}
		last := i == len(groups)-1
		if last && group.NextGroupOperator != "" {
			return errors.New("condition group: last group declares next-group operator")
		}
		if !last && group.NextGroupOperator == "" {
			return errors.New("condition group: missing next-group operator")
		}
	}
	return nil
}

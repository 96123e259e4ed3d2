package application

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	inventory "facility-cloud/internal/inventory/domain"
	rules "facility-cloud/internal/rules/domain"
)

// Standard 5-field cron spec (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// EvaluateCondition evaluates one condition against the snapshot set.
// A missing snapshot or metric never satisfies a threshold. A malformed
// cron expression evaluates false and returns a configuration error.
func EvaluateCondition(cond rules.Condition, snapshots map[string]inventory.Snapshot, now time.Time) (bool, error) {
	switch cond.Kind {
	case rules.ConditionMetric:
		snap, ok := snapshots[cond.EquipmentID]
		if !ok {
			return false, nil
		}
		value, ok := metricValue(snap, cond.Metric)
		if !ok {
			return false, nil
		}
		return cond.Operator.Compare(value, cond.Threshold), nil
	case rules.ConditionTime:
		return cronMatches(cond.Cron, now)
	default:
		return false, fmt.Errorf("automation: unknown condition kind %q", cond.Kind)
	}
}

// EvaluateGroups folds condition groups left to right, joining each group's
// result to the next with the group's declared operator. An empty group is
// vacuously true; a rule with zero groups is false so an automation with no
// conditions never fires.
func EvaluateGroups(groups []rules.ConditionGroup, snapshots map[string]inventory.Snapshot, now time.Time) (bool, error) {
	if len(groups) == 0 {
		return false, nil
	}

	var firstErr error
	result, err := evaluateGroup(groups[0], snapshots, now)
	if err != nil {
		firstErr = err
	}
	for i := 1; i < len(groups); i++ {
		next, err := evaluateGroup(groups[i], snapshots, now)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		switch groups[i-1].NextGroupOperator {
		case rules.LogicOr:
			result = result || next
		default:
			result = result && next
		}
	}
	return result, firstErr
}

func evaluateGroup(group rules.ConditionGroup, snapshots map[string]inventory.Snapshot, now time.Time) (bool, error) {
	if len(group.Conditions) == 0 {
		return true, nil
	}

	var firstErr error
	if group.Logic == rules.LogicOr {
		for _, cond := range group.Conditions {
			ok, err := EvaluateCondition(cond, snapshots, now)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if ok {
				return true, firstErr
			}
		}
		return false, firstErr
	}

	for _, cond := range group.Conditions {
		ok, err := EvaluateCondition(cond, snapshots, now)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if !ok {
			return false, firstErr
		}
	}
	return true, firstErr
}

// CompareMetric applies an alert-rule threshold to a snapshot metric value.
// Equality is exact; float tolerance is deliberately not applied.
func CompareMetric(snap inventory.Snapshot, metric string, op rules.Operator, threshold float64) bool {
	value, ok := metricValue(snap, metric)
	if !ok {
		return false
	}
	return op.Compare(value, threshold)
}

func metricValue(snap inventory.Snapshot, metric string) (float64, bool) {
	if metric == rules.MetricAlarmCount {
		return float64(snap.AlarmCount()), true
	}
	return snap.Metric(metric)
}

func cronMatches(expr string, now time.Time) (bool, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return false, fmt.Errorf("automation: malformed cron %q: %w", expr, err)
	}
	minute := now.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute), nil
}

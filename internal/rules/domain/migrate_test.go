package rules

import (
	"reflect"
	"testing"
)

func TestNormalizeAutomationLegacyFlat(t *testing.T) {
	legacy := Automation{
		ID:      "auto-1",
		Name:    "DG overload cutoff",
		SiteID:  "site-1",
		Enabled: true,
		Conditions: []Condition{
			{ID: "c1", Kind: ConditionMetric, EquipmentID: "eq-1", Metric: "powerKw", Operator: OperatorGreater, Threshold: 50},
			{ID: "c2", Kind: ConditionMetric, EquipmentID: "eq-1", Metric: "temperature", Operator: OperatorGreater, Threshold: 80},
		},
		ConditionLogic: LogicOr,
	}

	normalized := NormalizeAutomation(legacy)
	if len(normalized.ConditionGroups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(normalized.ConditionGroups))
	}
	group := normalized.ConditionGroups[0]
	if group.Logic != LogicOr {
		t.Fatalf("expected OR logic, got %s", group.Logic)
	}
	if len(group.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(group.Conditions))
	}
	if normalized.Conditions != nil || normalized.ConditionLogic != "" {
		t.Fatal("expected legacy fields cleared")
	}
	if legacy.Conditions == nil {
		t.Fatal("input automation mutated")
	}
}

func TestNormalizeAutomationModernWins(t *testing.T) {
	dual := Automation{
		ID:     "auto-2",
		Name:   "Pump schedule",
		SiteID: "site-1",
		ConditionGroups: []ConditionGroup{{
			ID:         "g1",
			Logic:      LogicAnd,
			Conditions: []Condition{{ID: "c1", Kind: ConditionTime, Cron: "0 6 * * *"}},
		}},
		Conditions:     []Condition{{ID: "stale", Kind: ConditionTime, Cron: "0 0 * * *"}},
		ConditionLogic: LogicAnd,
	}

	normalized := NormalizeAutomation(dual)
	if len(normalized.ConditionGroups) != 1 || normalized.ConditionGroups[0].ID != "g1" {
		t.Fatalf("expected modern groups preserved, got %+v", normalized.ConditionGroups)
	}
	if normalized.ConditionGroups[0].Conditions[0].Cron != "0 6 * * *" {
		t.Fatal("legacy condition leaked into groups")
	}
}

func TestNormalizeAutomationIdempotent(t *testing.T) {
	legacy := Automation{
		ID:             "auto-3",
		Name:           "Lights",
		SiteID:         "site-2",
		Conditions:     []Condition{{ID: "c1", Kind: ConditionTime, Cron: "0 18 * * *"}},
		ConditionLogic: LogicAnd,
	}
	once := NormalizeAutomation(legacy)
	twice := NormalizeAutomation(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalization not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestNormalizeAlertRuleLegacySiteCondition(t *testing.T) {
	legacy := AlertRule{
		ID:            "rule-1",
		Name:          "DG fuel low",
		Enabled:       true,
		EquipmentType: "dg",
		Severity:      SeverityHigh,
		SiteID:        "site-1",
		LegacyCondition: &AlertRuleCondition{
			Metric:          "fuelLevelPct",
			Operator:        OperatorLess,
			Threshold:       20,
			DurationMinutes: 5,
		},
	}

	normalized := NormalizeAlertRule(legacy)
	if normalized.SiteID != "" || normalized.LegacyCondition != nil {
		t.Fatal("expected legacy fields cleared")
	}
	if len(normalized.SiteOverrides) != 1 || normalized.SiteOverrides[0].SiteID != "site-1" {
		t.Fatalf("expected site override for site-1, got %+v", normalized.SiteOverrides)
	}
	if normalized.DefaultCondition.Metric != "fuelLevelPct" {
		t.Fatalf("expected default condition backfilled, got %+v", normalized.DefaultCondition)
	}
	if legacy.LegacyCondition == nil {
		t.Fatal("input rule mutated")
	}
}

func TestNormalizeAlertRuleModernWins(t *testing.T) {
	dual := AlertRule{
		ID:            "rule-2",
		Name:          "HVAC hot",
		EquipmentType: "hvac",
		Severity:      SeverityMedium,
		DefaultCondition: AlertRuleCondition{
			Metric: "temperature", Operator: OperatorGreater, Threshold: 30, DurationMinutes: 10,
		},
		SiteOverrides: []SiteOverride{{
			SiteID:    "site-1",
			Condition: AlertRuleCondition{Metric: "temperature", Operator: OperatorGreater, Threshold: 28, DurationMinutes: 10},
		}},
		SiteID:          "site-1",
		LegacyCondition: &AlertRuleCondition{Metric: "temperature", Operator: OperatorGreater, Threshold: 99, DurationMinutes: 1},
	}

	normalized := NormalizeAlertRule(dual)
	if normalized.DefaultCondition.Threshold != 30 {
		t.Fatalf("legacy condition overwrote default: %+v", normalized.DefaultCondition)
	}
	if len(normalized.SiteOverrides) != 1 || normalized.SiteOverrides[0].Condition.Threshold != 28 {
		t.Fatalf("legacy condition overwrote override: %+v", normalized.SiteOverrides)
	}
}

func TestNormalizeAlertRuleIdempotent(t *testing.T) {
	legacy := AlertRule{
		ID:            "rule-3",
		Name:          "UPS load",
		EquipmentType: "ups",
		Severity:      SeverityLow,
		SiteID:        "site-9",
		LegacyCondition: &AlertRuleCondition{
			Metric: "powerKw", Operator: OperatorGreater, Threshold: 10, DurationMinutes: 2,
		},
		Escalation: &EscalationConfig{Enabled: true, DelayMinutes: 10, NotifyRoles: []string{"operator"}},
	}
	once := NormalizeAlertRule(legacy)
	twice := NormalizeAlertRule(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalization not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestConditionForSite(t *testing.T) {
	rule := AlertRule{
		DefaultCondition: AlertRuleCondition{Metric: "temperature", Operator: OperatorGreater, Threshold: 30},
		SiteOverrides: []SiteOverride{
			{SiteID: "site-1", Condition: AlertRuleCondition{Metric: "temperature", Operator: OperatorGreater, Threshold: 25}},
		},
	}
	if got := rule.ConditionForSite("site-1").Threshold; got != 25 {
		t.Fatalf("expected override threshold 25, got %v", got)
	}
	if got := rule.ConditionForSite("site-2").Threshold; got != 30 {
		t.Fatalf("expected default threshold 30, got %v", got)
	}
}

func TestValidateGroupsOperatorChain(t *testing.T) {
	cond := Condition{ID: "c", Kind: ConditionMetric, EquipmentID: "eq", Metric: "powerKw", Operator: OperatorGreater, Threshold: 1}

	ok := []ConditionGroup{
		{ID: "g1", Logic: LogicAnd, Conditions: []Condition{cond}, NextGroupOperator: LogicOr},
		{ID: "g2", Logic: LogicOr, Conditions: []Condition{cond}},
	}
	if err := ValidateGroups(ok); err != nil {
		t.Fatalf("expected valid chain, got %v", err)
	}

	trailing := []ConditionGroup{
		{ID: "g1", Logic: LogicAnd, Conditions: []Condition{cond}, NextGroupOperator: LogicOr},
		{ID: "g2", Logic: LogicOr, Conditions: []Condition{cond}, NextGroupOperator: LogicAnd},
	}
	if err := ValidateGroups(trailing); err == nil {
		t.Fatal("expected error for trailing operator on last group")
	}

	missing := []ConditionGroup{
		{ID: "g1", Logic: LogicAnd, Conditions: []Condition{cond}},
		{ID: "g2", Logic: LogicOr, Conditions: []Condition{cond}},
	}
	if err := ValidateGroups(missing); err == nil {
		t.Fatal("expected error for missing operator between groups")
	}
}

func TestConditionValidateExactlyOneKind(t *testing.T) {
	mixed := Condition{ID: "c", Kind: ConditionMetric, EquipmentID: "eq", Metric: "powerKw", Operator: OperatorGreater, Cron: "* * * * *"}
	if err := mixed.Validate(); err == nil {
		t.Fatal("expected error for metric condition carrying cron")
	}
	timeWithMetric := Condition{ID: "c", Kind: ConditionTime, Cron: "* * * * *", Metric: "powerKw"}
	if err := timeWithMetric.Validate(); err == nil {
		t.Fatal("expected error for time condition carrying metric fields")
	}
}

package rules

// Legacy rules carry flat condition fields from before grouped conditions
// existed. Normalization produces the canonical grouped form so the engine
// never branches on which shape was stored. The transform is one-way and
// idempotent: modern fields always win, and normalizing an already-modern
// rule returns it unchanged apart from cleared legacy fields.

const legacyGroupIDSuffix = "-g1"

// NormalizeAutomation returns the automation in canonical grouped form
// without mutating the input.
func NormalizeAutomation(a Automation) Automation {
	out := a
	out.ConditionGroups = cloneGroups(a.ConditionGroups)
	out.Actions = append([]Action(nil), a.Actions...)

	if len(out.ConditionGroups) == 0 && len(a.Conditions) > 0 {
		logic := a.ConditionLogic
		if !logic.Valid() {
			logic = LogicAnd
		}
		out.ConditionGroups = []ConditionGroup{{
			ID:         a.ID + legacyGroupIDSuffix,
			Logic:      logic,
			Conditions: append([]Condition(nil), a.Conditions...),
		}}
	}

	out.Conditions = nil
	out.ConditionLogic = ""
	return out
}

// NormalizeAlertRule returns the alert rule in canonical default/override
// form without mutating the input.
func NormalizeAlertRule(r AlertRule) AlertRule {
	out := r
	out.SiteOverrides = append([]SiteOverride(nil), r.SiteOverrides...)
	if r.Escalation != nil {
		escalation := *r.Escalation
		escalation.NotifyRoles = append([]string(nil), r.Escalation.NotifyRoles...)
		out.Escalation = &escalation
	}

	if r.LegacyCondition != nil {
		if emptyCondition(out.DefaultCondition) && r.SiteID == "" {
			out.DefaultCondition = *r.LegacyCondition
		}
		if r.SiteID != "" && !hasOverride(out.SiteOverrides, r.SiteID) {
			out.SiteOverrides = append(out.SiteOverrides, SiteOverride{
				SiteID:    r.SiteID,
				Condition: *r.LegacyCondition,
			})
			if emptyCondition(out.DefaultCondition) {
				out.DefaultCondition = *r.LegacyCondition
			}
		}
	}

	out.SiteID = ""
	out.LegacyCondition = nil
	return out
}

func cloneGroups(groups []ConditionGroup) []ConditionGroup {
	if groups == nil {
		return nil
	}
	out := make([]ConditionGroup, len(groups))
	for i, group := range groups {
		out[i] = group
		out[i].Conditions = append([]Condition(nil), group.Conditions...)
	}
	return out
}

func hasOverride(overrides []SiteOverride, siteID string) bool {
	for _, override := range overrides {
		if override.SiteID == siteID {
			return true
		}
	}
	return false
}

func emptyCondition(c AlertRuleCondition) bool {
	return c.Metric == "" && c.Operator == "" && c.Threshold == 0 && c.DurationMinutes == 0
}

package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	alerts "facility-cloud/internal/alerts/domain"
	inventoryevents "facility-cloud/internal/inventory/application/events"
	inventory "facility-cloud/internal/inventory/domain"
	"facility-cloud/internal/observability/metrics"
	rules "facility-cloud/internal/rules/domain"
)

// AlertNotifier publishes alert lifecycle events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update. Escalation is set on "active"
// events so the notifier can schedule re-notification.
type AlertEvent struct {
	Type       string                  `json:"type"`
	Alert      alerts.Alert            `json:"alert"`
	Escalation *rules.EscalationConfig `json:"escalation,omitempty"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// RuleSource loads enabled alert rules.
type RuleSource interface {
	ListEnabled(ctx context.Context) ([]rules.AlertRule, error)
}

// AlertStore persists alert instances.
type AlertStore interface {
	Create(ctx context.Context, alert *alerts.Alert) error
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	FindOpenByRuleEquipment(ctx context.Context, ruleID, equipmentID string) (*alerts.Alert, error)
	MarkAcknowledged(ctx context.Context, id, by string, at time.Time) error
	MarkResolved(ctx context.Context, id string, lastValue float64, at time.Time) error
	IncrementEscalation(ctx context.Context, id string, at time.Time) (int, error)
	UpdateLastValue(ctx context.Context, id string, value float64, at time.Time) error
	ListByTime(ctx context.Context, siteID, status string, from, to time.Time) ([]alerts.Alert, error)
}

// EquipmentSource resolves snapshot equipment to its inventory record.
type EquipmentSource interface {
	GetByID(ctx context.Context, id string) (*inventory.Equipment, error)
}

// Service evaluates snapshots against alert rules and drives the alert
// lifecycle. Threshold crossings pass through an in-memory duration gate
// keyed by (rule, equipment): the condition must hold continuously for the
// rule's configured duration before an alert is raised, and a single
// non-matching snapshot discards the accumulated onset.
type Service struct {
	ruleSource RuleSource
	store      AlertStore
	equipment  EquipmentSource
	gate       *Gate
	notifier   AlertNotifier
	clock      Clock
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs an alert service.
func NewService(ruleSource RuleSource, store AlertStore, equipment EquipmentSource, opts ...ServiceOption) (*Service, error) {
	if ruleSource == nil {
		return nil, errors.New("alerts: nil rule source")
	}
	if store == nil {
		return nil, errors.New("alerts: nil alert store")
	}
	if equipment == nil {
		return nil, errors.New("alerts: nil equipment source")
	}
	service := &Service{
		ruleSource: ruleSource,
		store:      store,
		equipment:  equipment,
		gate:       NewGate(),
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// HandleSnapshotReceived evaluates one snapshot against every enabled rule
// matching the equipment's type.
func (s *Service) HandleSnapshotReceived(ctx context.Context, evt inventoryevents.SnapshotReceived) error {
	if s == nil {
		return errors.New("alerts: nil service")
	}
	snap := evt.Snapshot
	if snap.EquipmentID == "" {
		return errors.New("alerts: snapshot missing equipment id")
	}

	equip, err := s.equipment.GetByID(ctx, snap.EquipmentID)
	if err != nil {
		return err
	}
	if equip == nil {
		// Unregistered equipment has no type to match rules against.
		return nil
	}

	ruleList, err := s.ruleSource.ListEnabled(ctx)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(ruleList))
	for _, rule := range ruleList {
		keep[rule.ID] = struct{}{}
	}
	s.gate.RetainRules(keep)

	at := atOrNow(snap.At, s.clock)
	for _, rule := range ruleList {
		rule = rules.NormalizeAlertRule(rule)
		if err := rule.Validate(); err != nil {
			metrics.IncRuleSkipped("config")
			continue
		}
		if rule.EquipmentType != equip.Type {
			continue
		}
		if err := s.evaluateRule(ctx, rule, snap, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) evaluateRule(ctx context.Context, rule rules.AlertRule, snap inventory.Snapshot, at time.Time) error {
	cond := rule.ConditionForSite(snap.SiteID)
	value, ok := metricSample(snap, cond.Metric)
	holds := ok && cond.Operator.Compare(value, cond.Threshold)
	metrics.IncEvaluation("alert", holds)

	duration := time.Duration(cond.DurationMinutes) * time.Minute
	transition := s.gate.Observe(rule.ID, snap.EquipmentID, holds, duration, at)

	switch transition.Kind {
	case TransitionRaised:
		return s.raise(ctx, rule, cond, snap, transition.Onset, at)
	case TransitionResolved:
		return s.autoResolve(ctx, rule, snap, transition.AlertID, at)
	}

	if holds && s.gate.PhaseOf(rule.ID, snap.EquipmentID) == PhaseActive {
		open, err := s.store.FindOpenByRuleEquipment(ctx, rule.ID, snap.EquipmentID)
		if err != nil {
			return err
		}
		if open != nil {
			return s.store.UpdateLastValue(ctx, open.ID, value, at)
		}
	}
	return nil
}

// raise creates the alert for a Pending -> Active transition. If an open
// alert for the pair already exists (gate state rebuilt after a restart) it
// is adopted instead of duplicated.
func (s *Service) raise(ctx context.Context, rule rules.AlertRule, cond rules.AlertRuleCondition, snap inventory.Snapshot, onset, at time.Time) error {
	value, _ := metricSample(snap, cond.Metric)

	open, err := s.store.FindOpenByRuleEquipment(ctx, rule.ID, snap.EquipmentID)
	if err != nil {
		return err
	}
	if open != nil {
		s.gate.BindAlert(rule.ID, snap.EquipmentID, open.ID)
		return s.store.UpdateLastValue(ctx, open.ID, value, at)
	}

	now := s.clock.Now().UTC()
	alert := &alerts.Alert{
		ID:          buildAlertID(rule.ID, snap.EquipmentID, onset),
		RuleID:      rule.ID,
		Type:        rule.Name,
		TS:          onset.UTC(),
		Message:     buildAlertMessage(rule, cond, snap.EquipmentID, value),
		EquipmentID: snap.EquipmentID,
		SiteID:      snap.SiteID,
		Severity:    string(rule.Severity),
		Status:      alerts.StatusActive,
		LastValue:   value,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, alert); err != nil {
		return err
	}
	s.gate.BindAlert(rule.ID, snap.EquipmentID, alert.ID)
	s.notify(ctx, "active", *alert, rule.Escalation)
	return nil
}

func (s *Service) autoResolve(ctx context.Context, rule rules.AlertRule, snap inventory.Snapshot, alertID string, at time.Time) error {
	var open *alerts.Alert
	var err error
	if alertID != "" {
		open, err = s.store.GetByID(ctx, alertID)
	} else {
		open, err = s.store.FindOpenByRuleEquipment(ctx, rule.ID, snap.EquipmentID)
	}
	if err != nil {
		return err
	}
	if open == nil || open.Status == alerts.StatusResolved {
		return nil
	}
	cond := rule.ConditionForSite(snap.SiteID)
	value, _ := metricSample(snap, cond.Metric)
	if err := s.store.MarkResolved(ctx, open.ID, value, at); err != nil {
		return err
	}
	open.Status = alerts.StatusResolved
	open.ResolvedAt = at
	open.LastValue = value
	open.UpdatedAt = at
	s.notify(ctx, "resolved", *open, nil)
	return nil
}

// Acknowledge marks an active alert acknowledged. Acknowledging an already
// acknowledged or resolved alert is a no-op returning current state.
func (s *Service) Acknowledge(ctx context.Context, id, userID string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	if userID == "" {
		return nil, errors.New("alerts: user id required")
	}
	alert, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if alert.Status != alerts.StatusActive {
		return alert, nil
	}
	ackedAt := s.clock.Now().UTC()
	if err := s.store.MarkAcknowledged(ctx, alert.ID, userID, ackedAt); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusAcknowledged
	alert.AcknowledgedBy = userID
	alert.AcknowledgedAt = ackedAt
	alert.UpdatedAt = ackedAt
	s.notify(ctx, "acknowledged", *alert, nil)
	return alert, nil
}

// Resolve closes an alert manually and discards its gate state so the
// condition re-derives from the next snapshot.
func (s *Service) Resolve(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if alert.Status == alerts.StatusResolved {
		return alert, nil
	}
	resolvedAt := s.clock.Now().UTC()
	if err := s.store.MarkResolved(ctx, alert.ID, alert.LastValue, resolvedAt); err != nil {
		return nil, err
	}
	s.gate.Reset(alert.RuleID, alert.EquipmentID)
	alert.Status = alerts.StatusResolved
	alert.ResolvedAt = resolvedAt
	alert.UpdatedAt = resolvedAt
	s.notify(ctx, "resolved", *alert, nil)
	return alert, nil
}

// Escalate bumps the escalation level of a still-active alert. It returns
// nil when the alert has been acknowledged or resolved in the meantime, or
// when its (rule, equipment) gate is no longer active, which tells the
// notifier to stop rescheduling.
func (s *Service) Escalate(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	alert, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil || alert.Status != alerts.StatusActive {
		return nil, nil
	}
	// Disabling a rule mid-alert drops its gate pairs; escalation must not
	// outlive the gate.
	if s.gate.PhaseOf(alert.RuleID, alert.EquipmentID) != PhaseActive {
		return nil, nil
	}
	at := s.clock.Now().UTC()
	level, err := s.store.IncrementEscalation(ctx, alert.ID, at)
	if err != nil {
		return nil, err
	}
	alert.EscalationLevel = level
	alert.UpdatedAt = at
	metrics.IncEscalation()
	s.notify(ctx, "escalated", *alert, nil)
	return alert, nil
}

// ListAlerts returns alerts filtered by site, status and time range.
func (s *Service) ListAlerts(ctx context.Context, siteID, status string, from, to time.Time) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	return s.store.ListByTime(ctx, siteID, status, from.UTC(), to.UTC())
}

func (s *Service) notify(ctx context.Context, eventType string, alert alerts.Alert, escalation *rules.EscalationConfig) {
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert, Escalation: escalation})
}

// metricSample reads a metric from the snapshot. A missing metric never
// satisfies a threshold.
func metricSample(snap inventory.Snapshot, metric string) (float64, bool) {
	if metric == rules.MetricAlarmCount {
		return float64(snap.AlarmCount()), true
	}
	return snap.Metric(metric)
}

func buildAlertID(ruleID, equipmentID string, onset time.Time) string {
	sum := sha1.Sum([]byte(ruleID + "|" + equipmentID + "|" + onset.UTC().Format(time.RFC3339Nano)))
	return "alert-" + hex.EncodeToString(sum[:8])
}

func buildAlertMessage(rule rules.AlertRule, cond rules.AlertRuleCondition, equipmentID string, value float64) string {
	msg := fmt.Sprintf("%s: %s %s %s %g for %dm (value %g)",
		rule.Name, equipmentID, cond.Metric, cond.Operator, cond.Threshold, cond.DurationMinutes, value)
	return msg
}

func atOrNow(value time.Time, clock Clock) time.Time {
	if value.IsZero() {
		return clock.Now().UTC()
	}
	return value.UTC()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	alertapp "facility-cloud/internal/alerts/application"
	alerts "facility-cloud/internal/alerts/domain"
	rules "facility-cloud/internal/rules/domain"
)

// Escalator bumps the escalation level of a still-active alert. A nil alert
// means the alert was acknowledged or resolved and escalation must stop.
type Escalator interface {
	Escalate(ctx context.Context, alertID string) (*alerts.Alert, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

type escalationPlan struct {
	delay time.Duration
	roles []string
}

// Notifier sends alert notifications via a channel and drives escalation.
// An active alert whose rule enables escalation is re-notified every delay
// until acknowledged or resolved, incrementing the escalation level each
// round.
type Notifier struct {
	escalator      Escalator
	channel        Channel
	template       *Template
	clock          Clock
	interval       time.Duration
	maxLevel       int
	requestTimeout time.Duration
	cooldown       time.Duration
	dedupeWindow   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	plans  map[string]escalationPlan
	sent   map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithEscalationInterval overrides the per-rule escalation delay.
func WithEscalationInterval(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.interval = interval
		}
	}
}

// WithMaxLevel caps escalation rounds. Zero means unbounded.
func WithMaxLevel(level int) Option {
	return func(n *Notifier) {
		if level > 0 {
			n.maxLevel = level
		}
	}
}

// WithRequestTimeout overrides the default timeout for escalation rounds.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// alert and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(escalator Escalator, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if escalator == nil {
		return nil, errors.New("alert notifier: nil escalator")
	}
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		escalator:      escalator,
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		requestTimeout: 5 * time.Second,
		timers:         make(map[string]*time.Timer),
		plans:          make(map[string]escalationPlan),
		sent:           make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier.
func (n *Notifier) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	// Escalation steps are dispatched by the escalation timer itself.
	if event.Type != "escalated" {
		n.dispatch(ctx, event.Type, event.Alert, rolesFor(event.Escalation))
	}

	switch event.Type {
	case "active":
		n.scheduleEscalation(event.Alert, event.Escalation)
	case "acknowledged", "resolved":
		n.cancelEscalation(event.Alert.ID)
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[string]*time.Timer)
	n.plans = make(map[string]escalationPlan)
	n.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, eventType string, alert alerts.Alert, roles string) {
	data := buildTemplateData(eventType, alert, roles)
	content, err := n.template.Render(data)
	if err != nil {
		return
	}
	if !n.shouldSend(alert.ID, eventType, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return
	}
	n.markSent(alert.ID, eventType, content)
}

func (n *Notifier) scheduleEscalation(alert alerts.Alert, cfg *rules.EscalationConfig) {
	if n == nil || alert.ID == "" {
		return
	}
	if cfg == nil || !cfg.Enabled || cfg.DelayMinutes <= 0 {
		return
	}
	delay := time.Duration(cfg.DelayMinutes) * time.Minute
	if n.interval > 0 {
		delay = n.interval
	}
	plan := escalationPlan{
		delay: delay,
		roles: append([]string(nil), cfg.NotifyRoles...),
	}
	n.mu.Lock()
	if existing, ok := n.timers[alert.ID]; ok && existing != nil {
		existing.Stop()
	}
	n.plans[alert.ID] = plan
	n.timers[alert.ID] = time.AfterFunc(plan.delay, func() {
		n.runEscalation(alert.ID)
	})
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[alertID]
	delete(n.timers, alertID)
	delete(n.plans, alertID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// runEscalation performs one escalation round and reschedules while the
// alert remains active.
func (n *Notifier) runEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	delete(n.timers, alertID)
	plan, ok := n.plans[alertID]
	n.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}

	alert, err := n.escalator.Escalate(ctx, alertID)
	if err != nil || alert == nil {
		n.cancelEscalation(alertID)
		return
	}
	n.dispatch(ctx, "escalated", *alert, strings.Join(plan.roles, ", "))

	if n.maxLevel > 0 && alert.EscalationLevel >= n.maxLevel {
		n.cancelEscalation(alertID)
		return
	}
	n.mu.Lock()
	if _, active := n.plans[alertID]; active {
		n.timers[alertID] = time.AfterFunc(plan.delay, func() {
			n.runEscalation(alertID)
		})
	}
	n.mu.Unlock()
}

func rolesFor(cfg *rules.EscalationConfig) string {
	if cfg == nil {
		return ""
	}
	return strings.Join(cfg.NotifyRoles, ", ")
}

func buildTemplateData(eventType string, alert alerts.Alert, roles string) TemplateData {
	startAt := alert.TS
	if startAt.IsZero() {
		startAt = alert.CreatedAt
	}
	level := 0
	if eventType == "escalated" {
		level = alert.EscalationLevel
	}
	return TemplateData{
		Equipment:    alert.EquipmentID,
		Site:         alert.SiteID,
		Rule:         alert.Type,
		RuleID:       alert.RuleID,
		TriggerValue: formatFloat(alert.LastValue),
		StartTime:    startAt.UTC().Format(time.RFC3339),
		Status:       statusLabel(alert.Status),
		StatusCode:   alert.Status,
		Severity:     alert.Severity,
		Suggestion:   suggestionFor(alert.Severity),
		Event:        eventType,
		EventLabel:   eventLabel(eventType),
		Level:        level,
		Roles:        roles,
	}
}

func statusLabel(status string) string {
	switch status {
	case alerts.StatusActive:
		return "active"
	case alerts.StatusAcknowledged:
		return "acknowledged"
	case alerts.StatusResolved:
		return "resolved"
	default:
		return status
	}
}

func eventLabel(event string) string {
	switch event {
	case "active":
		return "Triggered"
	case "acknowledged":
		return "Acknowledged"
	case "resolved":
		return "Resolved"
	case "escalated":
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(severity string) string {
	switch strings.TrimSpace(strings.ToLower(severity)) {
	case "high":
		return "Investigate immediately and mitigate risk."
	case "medium":
		return "Verify the condition and take action if needed."
	default:
		return "Monitor the alert condition."
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func (n *Notifier) shouldSend(alertID, eventType, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alertID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alertID, eventType, content string) {
	if n == nil {
		return
	}
	key := notificationKey(alertID, eventType)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alertID, eventType string) string {
	return alertID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

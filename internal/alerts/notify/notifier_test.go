package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "facility-cloud/internal/alerts/application"
	alerts "facility-cloud/internal/alerts/domain"
	rules "facility-cloud/internal/rules/domain"
)

type stubEscalator struct {
	mu     sync.Mutex
	alert  *alerts.Alert
	calls  int
	levels []int
}

func (s *stubEscalator) Escalate(_ context.Context, _ string) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.alert == nil || s.alert.Status != alerts.StatusActive {
		return nil, nil
	}
	s.alert.EscalationLevel++
	s.levels = append(s.levels, s.alert.EscalationLevel)
	copied := *s.alert
	return &copied, nil
}

func (s *stubEscalator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubEscalator) Acknowledge() {
	s.mu.Lock()
	s.alert.Status = alerts.StatusAcknowledged
	s.mu.Unlock()
}

type recordingChannel struct {
	mu       sync.Mutex
	contents []string
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.mu.Lock()
	r.contents = append(r.contents, content)
	r.mu.Unlock()
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contents)
}

func (r *recordingChannel) Latest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.contents) == 0 {
		return ""
	}
	return r.contents[len(r.contents)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func activeAlert(id string) *alerts.Alert {
	return &alerts.Alert{
		ID:          id,
		RuleID:      "rule-1",
		Type:        "DG overload",
		TS:          time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		EquipmentID: "dg-1",
		SiteID:      "site-a",
		Severity:    "high",
		Status:      alerts.StatusActive,
		LastValue:   123.45,
		CreatedAt:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func escalationConfig(delayMinutes int) *rules.EscalationConfig {
	return &rules.EscalationConfig{
		Enabled:      true,
		DelayMinutes: delayMinutes,
		NotifyRoles:  []string{"supervisor", "manager"},
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	tpl, err := NewTemplate("")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}

	alert := activeAlert("alert-1")
	notifier, err := NewNotifier(&stubEscalator{alert: alert}, channel, tpl)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "active", Alert: *alert})

	select {
	case payload := <-payloadCh:
		if payload.Source != webhookSource {
			t.Fatalf("expected source %q, got %q", webhookSource, payload.Source)
		}
		content := payload.Text
		checks := []string{
			"[Alert Triggered]",
			"Equipment: dg-1",
			"Site: site-a",
			"Rule: DG overload",
			"Trigger Value: 123.45",
			"Start Time: 2026-03-01T08:00:00Z",
			"Current Status: active",
			"Severity: high",
			"Suggestion:",
		}
		for _, expected := range checks {
			if !strings.Contains(content, expected) {
				t.Fatalf("expected content to include %q, got %s", expected, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

func TestNotifierCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	alert := activeAlert("alert-2")

	notifier, err := NewNotifier(&stubEscalator{alert: alert}, channel, nil,
		WithClock(clock), WithCooldown(10*time.Minute))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "active", Alert: *alert})
	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "active", Alert: *alert})
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during cooldown, got %d", got)
	}

	clock.Add(11 * time.Minute)
	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "active", Alert: *alert})
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications after cooldown, got %d", got)
	}
}

func TestNotifierEscalatesUntilAcknowledged(t *testing.T) {
	channel := &recordingChannel{}
	alert := activeAlert("alert-3")
	escalator := &stubEscalator{alert: alert}

	notifier, err := NewNotifier(escalator, channel, nil,
		WithEscalationInterval(20*time.Millisecond),
		WithRequestTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{
		Type:       "active",
		Alert:      *alert,
		Escalation: escalationConfig(5),
	})

	deadline := time.After(time.Second)
	for channel.Count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated escalation, got %d notifications", channel.Count())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	latest := channel.Latest()
	if !strings.Contains(latest, "Escalated") {
		t.Fatalf("expected escalated content, got %s", latest)
	}
	if !strings.Contains(latest, "supervisor, manager") {
		t.Fatalf("expected notify roles in content, got %s", latest)
	}

	escalator.Acknowledge()
	time.Sleep(100 * time.Millisecond)
	settled := escalator.Calls()
	time.Sleep(100 * time.Millisecond)
	if escalator.Calls() > settled+1 {
		t.Fatalf("escalation kept running after acknowledge")
	}
}

func TestNotifierAcknowledgeCancelsEscalation(t *testing.T) {
	channel := &recordingChannel{}
	alert := activeAlert("alert-4")
	escalator := &stubEscalator{alert: alert}

	notifier, err := NewNotifier(escalator, channel, nil,
		WithEscalationInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{
		Type:       "active",
		Alert:      *alert,
		Escalation: escalationConfig(5),
	})
	acked := *alert
	acked.Status = alerts.StatusAcknowledged
	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "acknowledged", Alert: acked})

	time.Sleep(150 * time.Millisecond)
	if escalator.Calls() != 0 {
		t.Fatalf("escalation ran after acknowledge, calls = %d", escalator.Calls())
	}
}

func TestNotifierSkipsEscalationWhenDisabled(t *testing.T) {
	channel := &recordingChannel{}
	alert := activeAlert("alert-5")
	escalator := &stubEscalator{alert: alert}

	notifier, err := NewNotifier(escalator, channel, nil,
		WithEscalationInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{Type: "active", Alert: *alert})

	time.Sleep(100 * time.Millisecond)
	if escalator.Calls() != 0 {
		t.Fatalf("escalation ran without config, calls = %d", escalator.Calls())
	}
}

func TestNotifierMaxLevelStopsRescheduling(t *testing.T) {
	channel := &recordingChannel{}
	alert := activeAlert("alert-6")
	escalator := &stubEscalator{alert: alert}

	notifier, err := NewNotifier(escalator, channel, nil,
		WithEscalationInterval(20*time.Millisecond),
		WithMaxLevel(2))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), alertapp.AlertEvent{
		Type:       "active",
		Alert:      *alert,
		Escalation: escalationConfig(5),
	})

	deadline := time.After(time.Second)
	for escalator.Calls() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 escalation rounds, got %d", escalator.Calls())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	time.Sleep(100 * time.Millisecond)
	if escalator.Calls() != 2 {
		t.Fatalf("escalation exceeded max level, calls = %d", escalator.Calls())
	}
}

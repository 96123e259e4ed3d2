package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"facility-cloud/internal/commandlog"
	inventory "facility-cloud/internal/inventory/domain"
	rules "facility-cloud/internal/rules/domain"
)

type stubController struct {
	mu     sync.Mutex
	calls  []string
	status map[string]inventory.Status
	failID string
}

func newStubController() *stubController {
	return &stubController{status: map[string]inventory.Status{}}
}

func (c *stubController) SetStatus(_ context.Context, equipmentID string, status inventory.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, equipmentID)
	if equipmentID == c.failID {
		return errors.New("device unreachable")
	}
	c.status[equipmentID] = status
	return nil
}

type stubSender struct {
	mu       sync.Mutex
	contents []string
	err      error
}

func (s *stubSender) Send(_ context.Context, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.contents = append(s.contents, content)
	return nil
}

type memCommandLog struct {
	mu    sync.Mutex
	items []commandlog.Item
}

func (m *memCommandLog) Append(_ context.Context, item commandlog.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *memCommandLog) all() []commandlog.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]commandlog.Item(nil), m.items...)
}

func newTestDispatcher(t *testing.T, controller *stubController, sender *stubSender, cmdLog *memCommandLog) *Dispatcher {
	t.Helper()
	var ns NotificationSender
	if sender != nil {
		ns = sender
	}
	d, err := NewDispatcher(controller, ns, cmdLog, time.Second, log.New(&strings.Builder{}, "", 0))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestDispatchAllRunsInOrderBestEffort(t *testing.T) {
	controller := newStubController()
	controller.failID = "ac-2"
	cmdLog := &memCommandLog{}
	d := newTestDispatcher(t, controller, &stubSender{}, cmdLog)

	actions := []rules.Action{
		{ID: "a1", Kind: rules.ActionEquipment, TargetID: "ac-1", To: rules.StateOn},
		{ID: "a2", Kind: rules.ActionEquipment, TargetID: "ac-2", To: rules.StateOn},
		{ID: "a3", Kind: rules.ActionEquipment, TargetID: "ac-3", To: rules.StateOff},
	}
	failed := d.DispatchAll(context.Background(), "automation:auto-1", actions)

	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if got := controller.calls; len(got) != 3 || got[0] != "ac-1" || got[1] != "ac-2" || got[2] != "ac-3" {
		t.Fatalf("call order = %v", got)
	}
	if controller.status["ac-1"] != inventory.StatusOn {
		t.Fatalf("ac-1 status = %v", controller.status["ac-1"])
	}
	if controller.status["ac-3"] != inventory.StatusOff {
		t.Fatalf("ac-3 status = %v", controller.status["ac-3"])
	}

	items := cmdLog.all()
	if len(items) != 3 {
		t.Fatalf("command log items = %d, want 3", len(items))
	}
	for _, item := range items {
		if item.Actor != "automation:auto-1" {
			t.Fatalf("actor = %q", item.Actor)
		}
	}
	if items[0].Details != "ok" || items[2].Details != "ok" {
		t.Fatalf("details = %q / %q", items[0].Details, items[2].Details)
	}
	if !strings.HasPrefix(items[1].Details, "failed:") {
		t.Fatalf("failed item details = %q", items[1].Details)
	}
}

func TestDispatchNotification(t *testing.T) {
	sender := &stubSender{}
	cmdLog := &memCommandLog{}
	d := newTestDispatcher(t, newStubController(), sender, cmdLog)

	err := d.Dispatch(context.Background(), "automation:auto-2", rules.Action{
		ID:       "n1",
		Kind:     rules.ActionNotification,
		Message:  "generator room over temperature",
		Severity: rules.SeverityHigh,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.contents) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.contents))
	}
	if !strings.Contains(sender.contents[0], "generator room over temperature") {
		t.Fatalf("content = %q", sender.contents[0])
	}
	if !strings.Contains(sender.contents[0], string(rules.SeverityHigh)) {
		t.Fatalf("content missing severity: %q", sender.contents[0])
	}
}

func TestDispatchNotificationWithoutSenderFailsAndLogs(t *testing.T) {
	cmdLog := &memCommandLog{}
	d := newTestDispatcher(t, newStubController(), nil, cmdLog)

	err := d.Dispatch(context.Background(), "automation:auto-3", rules.Action{
		ID:      "n1",
		Kind:    rules.ActionNotification,
		Message: "hello",
	})
	if err == nil {
		t.Fatal("expected error with no sender configured")
	}
	items := cmdLog.all()
	if len(items) != 1 {
		t.Fatalf("command log items = %d, want 1", len(items))
	}
	if !strings.HasPrefix(items[0].Details, "failed:") {
		t.Fatalf("details = %q", items[0].Details)
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	cmdLog := &memCommandLog{}
	d := newTestDispatcher(t, newStubController(), &stubSender{}, cmdLog)

	err := d.Dispatch(context.Background(), "automation:auto-4", rules.Action{ID: "x1", Kind: "reboot"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if len(cmdLog.all()) != 1 {
		t.Fatal("unknown actions are still recorded in the command log")
	}
}

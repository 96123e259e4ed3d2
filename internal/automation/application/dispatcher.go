package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"facility-cloud/internal/commandlog"
	inventory "facility-cloud/internal/inventory/domain"
	"facility-cloud/internal/observability/metrics"
	rules "facility-cloud/internal/rules/domain"
)

// Controller is the equipment-control collaborator. Retry policy belongs to
// the collaborator, not to the dispatcher.
type Controller interface {
	SetStatus(ctx context.Context, equipmentID string, status inventory.Status) error
}

// NotificationSender delivers rendered notification content.
type NotificationSender interface {
	Send(ctx context.Context, content string) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Dispatcher executes the actions attached to a triggered automation.
// Actions run in declared order, best-effort: a failed action is logged and
// never blocks its siblings. Every dispatch attempt is recorded in the
// command log with its outcome.
type Dispatcher struct {
	controller Controller
	sender     NotificationSender
	commandLog commandlog.Appender
	timeout    time.Duration
	logger     *log.Logger
	clock      Clock
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(controller Controller, sender NotificationSender, commandLog commandlog.Appender, timeout time.Duration, logger *log.Logger) (*Dispatcher, error) {
	if controller == nil {
		return nil, errors.New("dispatcher: nil controller")
	}
	if commandLog == nil {
		return nil, errors.New("dispatcher: nil command log")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		controller: controller,
		sender:     sender,
		commandLog: commandLog,
		timeout:    timeout,
		logger:     logger,
		clock:      systemClock{},
	}, nil
}

// WithClock overrides the dispatcher clock.
func (d *Dispatcher) WithClock(clock Clock) *Dispatcher {
	if d != nil && clock != nil {
		d.clock = clock
	}
	return d
}

// DispatchAll executes actions in order on behalf of the named actor.
// It returns the number of failed actions.
func (d *Dispatcher) DispatchAll(ctx context.Context, actor string, actions []rules.Action) int {
	if d == nil {
		return len(actions)
	}
	failed := 0
	for _, action := range actions {
		if err := d.Dispatch(ctx, actor, action); err != nil {
			failed++
		}
	}
	return failed
}

// Dispatch executes one action and appends a command log item recording the
// outcome. The returned error reports delivery failure; it never aborts the
// caller's remaining actions.
func (d *Dispatcher) Dispatch(ctx context.Context, actor string, action rules.Action) error {
	if d == nil {
		return errors.New("dispatcher: nil")
	}
	start := d.clock.Now()
	var (
		description string
		err         error
	)
	switch action.Kind {
	case rules.ActionEquipment:
		description = fmt.Sprintf("set %s -> %s", action.TargetID, action.To)
		err = d.setEquipment(ctx, action)
	case rules.ActionNotification:
		description = fmt.Sprintf("notify [%s]", action.Severity)
		err = d.sendNotification(ctx, action)
	default:
		description = "unknown action"
		err = fmt.Errorf("dispatcher: unknown action kind %q", action.Kind)
	}
	metrics.ObserveDispatch(string(action.Kind), err, d.clock.Now().Sub(start))

	detail := "ok"
	if err != nil {
		detail = "failed: " + err.Error()
		d.logger.Printf("dispatch %s: %v", description, err)
	}
	logErr := d.commandLog.Append(ctx, commandlog.Item{
		Timestamp: start.UTC(),
		Actor:     actor,
		Action:    description,
		Details:   detail,
	})
	if logErr != nil {
		d.logger.Printf("command log append failed: %v", logErr)
	}
	return err
}

func (d *Dispatcher) setEquipment(ctx context.Context, action rules.Action) error {
	status := inventory.StatusOff
	if action.To == rules.StateOn {
		status = inventory.StatusOn
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.controller.SetStatus(ctx, action.TargetID, status)
}

func (d *Dispatcher) sendNotification(ctx context.Context, action rules.Action) error {
	if d.sender == nil {
		return errors.New("dispatcher: no notification sender configured")
	}
	content := fmt.Sprintf("[%s] %s", action.Severity, action.Message)
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(ctx, content)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

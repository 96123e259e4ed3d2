package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	automationevents "facility-cloud/internal/automation/application/events"
	"facility-cloud/internal/eventing"
	inventory "facility-cloud/internal/inventory/domain"
	"facility-cloud/internal/observability/metrics"
	rules "facility-cloud/internal/rules/domain"
)

// RuleSource loads the enabled rule set. Implementations return a fresh
// slice per call so each tick evaluates an immutable rule set snapshot;
// disabling a rule mid-tick is observed at the next tick boundary.
type RuleSource interface {
	ListEnabledAutomations(ctx context.Context) ([]rules.Automation, error)
	ListEnabledSchedules(ctx context.Context) ([]rules.Schedule, error)
}

// SnapshotReader loads the latest equipment snapshots for a site.
type SnapshotReader interface {
	ListLatestBySite(ctx context.Context, siteID string) ([]inventory.Snapshot, error)
}

// Publisher forwards engine events onto the bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Engine evaluates enabled automations and schedules on a periodic tick.
// The engine is schedule-agnostic: the caller supplies "now".
type Engine struct {
	source     RuleSource
	snapshots  SnapshotReader
	dispatcher *Dispatcher
	publisher  Publisher
	logger     *log.Logger
	workers    int
}

// NewEngine constructs an engine.
func NewEngine(source RuleSource, snapshots SnapshotReader, dispatcher *Dispatcher, publisher Publisher, logger *log.Logger, workers int) (*Engine, error) {
	if source == nil {
		return nil, errors.New("automation engine: nil rule source")
	}
	if snapshots == nil {
		return nil, errors.New("automation engine: nil snapshot reader")
	}
	if dispatcher == nil {
		return nil, errors.New("automation engine: nil dispatcher")
	}
	if logger == nil {
		logger = log.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		source:     source,
		snapshots:  snapshots,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		workers:    workers,
	}, nil
}

// Tick evaluates every enabled automation and schedule at the given time.
// Evaluation errors are confined to the rule they belong to; Tick only
// fails when the rule set itself cannot be loaded.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	if e == nil {
		return errors.New("automation engine: nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	start := time.Now()
	defer func() {
		metrics.ObserveTick("automation", time.Since(start))
	}()

	automations, err := e.source.ListEnabledAutomations(ctx)
	if err != nil {
		return err
	}
	schedules, err := e.source.ListEnabledSchedules(ctx)
	if err != nil {
		return err
	}

	siteSnapshots := e.loadSiteSnapshots(ctx, automations)

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for _, item := range automations {
		wg.Add(1)
		sem <- struct{}{}
		go func(a rules.Automation) {
			defer wg.Done()
			defer func() { <-sem }()
			e.evaluateAutomation(ctx, a, siteSnapshots[a.SiteID], now)
		}(item)
	}
	wg.Wait()

	for _, schedule := range schedules {
		e.evaluateSchedule(ctx, schedule, now)
	}
	return nil
}

func (e *Engine) loadSiteSnapshots(ctx context.Context, automations []rules.Automation) map[string]map[string]inventory.Snapshot {
	bySite := make(map[string]map[string]inventory.Snapshot)
	for _, item := range automations {
		if item.SiteID == "" {
			continue
		}
		if _, ok := bySite[item.SiteID]; ok {
			continue
		}
		snaps, err := e.snapshots.ListLatestBySite(ctx, item.SiteID)
		if err != nil {
			e.logger.Printf("automation engine: snapshots for site %s: %v", item.SiteID, err)
			bySite[item.SiteID] = map[string]inventory.Snapshot{}
			continue
		}
		indexed := make(map[string]inventory.Snapshot, len(snaps))
		for _, snap := range snaps {
			indexed[snap.EquipmentID] = snap
		}
		bySite[item.SiteID] = indexed
	}
	return bySite
}

func (e *Engine) evaluateAutomation(ctx context.Context, item rules.Automation, snapshots map[string]inventory.Snapshot, now time.Time) {
	if !item.Enabled {
		return
	}
	normalized := rules.NormalizeAutomation(item)
	if err := normalized.Validate(); err != nil {
		metrics.IncRuleSkipped("config")
		e.logger.Printf("automation %s skipped: %v", item.ID, err)
		return
	}

	matched, err := EvaluateGroups(normalized.ConditionGroups, snapshots, now)
	if err != nil {
		metrics.IncRuleSkipped("config")
		e.logger.Printf("automation %s: %v", item.ID, err)
	}
	metrics.IncEvaluation("automation", matched)
	if !matched {
		return
	}

	actor := "automation:" + normalized.ID
	actions := normalized.Actions
	if normalized.NotifyOnExecution {
		actions = append(actions, rules.Action{
			ID:       normalized.ID + "-exec-notice",
			Kind:     rules.ActionNotification,
			Message:  fmt.Sprintf("automation %q executed", normalized.Name),
			Severity: rules.SeverityLow,
		})
	}
	failed := e.dispatcher.DispatchAll(ctx, actor, actions)

	if e.publisher != nil {
		event := automationevents.AutomationTriggered{
			EventID:      eventing.NewEventID(),
			AutomationID: normalized.ID,
			SiteID:       normalized.SiteID,
			ActionCount:  len(actions),
			FailedCount:  failed,
			OccurredAt:   now.UTC(),
		}
		if err := e.publisher.Publish(eventing.WithEventID(ctx, event.EventID), event); err != nil {
			e.logger.Printf("automation %s: publish trigger event: %v", normalized.ID, err)
		}
	}
}

func (e *Engine) evaluateSchedule(ctx context.Context, schedule rules.Schedule, now time.Time) {
	if !schedule.Enabled {
		return
	}
	if err := schedule.Validate(); err != nil {
		metrics.IncRuleSkipped("config")
		e.logger.Printf("schedule %s skipped: %v", schedule.ID, err)
		return
	}
	due, err := cronMatches(schedule.Cron, now)
	if err != nil {
		metrics.IncRuleSkipped("config")
		e.logger.Printf("schedule %s: %v", schedule.ID, err)
		return
	}
	metrics.IncEvaluation("schedule", due)
	if !due {
		return
	}
	actor := "schedule:" + schedule.ID
	for _, target := range schedule.Targets {
		_ = e.dispatcher.Dispatch(ctx, actor, rules.Action{
			ID:       schedule.ID + ":" + target,
			Kind:     rules.ActionEquipment,
			TargetID: target,
			To:       schedule.Action,
		})
	}
}

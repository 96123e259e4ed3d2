package interfaces

import (
	"context"
	"log"
	"time"

	alertapp "facility-cloud/internal/alerts/application"
	alertevents "facility-cloud/internal/alerts/application/events"
	"facility-cloud/internal/eventing"
)

// OutboxPublisher adapts alert lifecycle events onto the outbox bus.
type OutboxPublisher struct {
	publisher *eventing.Publisher
	logger    *log.Logger
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher, logger *log.Logger) *OutboxPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &OutboxPublisher{publisher: publisher, logger: logger}
}

// Notify writes the matching lifecycle event to the outbox.
func (p *OutboxPublisher) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if p == nil || p.publisher == nil {
		return
	}
	eventID := eventing.NewEventID()
	now := time.Now().UTC()

	var payload any
	switch event.Type {
	case "active":
		payload = alertevents.AlertRaised{EventID: eventID, SiteID: event.Alert.SiteID, Alert: event.Alert, OccurredAt: now}
	case "acknowledged":
		payload = alertevents.AlertAcknowledged{EventID: eventID, SiteID: event.Alert.SiteID, Alert: event.Alert, OccurredAt: now}
	case "resolved":
		payload = alertevents.AlertResolved{EventID: eventID, SiteID: event.Alert.SiteID, Alert: event.Alert, OccurredAt: now}
	case "escalated":
		payload = alertevents.AlertEscalated{EventID: eventID, SiteID: event.Alert.SiteID, Alert: event.Alert, Level: event.Alert.EscalationLevel, OccurredAt: now}
	default:
		return
	}
	ctx = eventing.WithEventID(eventing.WithSiteID(ctx, event.Alert.SiteID), eventID)
	// Lifecycle events triggered while consuming a snapshot event inherit
	// its trace so a breach can be followed across the bus.
	if env, ok := eventing.DeliveredEnvelope(ctx); ok && env.Trace != "" {
		ctx = eventing.WithTrace(ctx, env.Trace)
	}
	if err := p.publisher.Publish(ctx, payload); err != nil {
		p.logger.Printf("alert outbox publish %s: %v", event.Type, err)
	}
}

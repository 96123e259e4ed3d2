package interfaces

import (
	"context"
	"errors"

	alertapp "facility-cloud/internal/alerts/application"
	inventoryevents "facility-cloud/internal/inventory/application/events"
)

// SnapshotReceivedConsumer adapts snapshot events into the alert service.
type SnapshotReceivedConsumer struct {
	app *alertapp.Service
}

// NewSnapshotReceivedConsumer constructs a consumer.
func NewSnapshotReceivedConsumer(app *alertapp.Service) (*SnapshotReceivedConsumer, error) {
	if app == nil {
		return nil, errors.New("alerts consumer: nil service")
	}
	return &SnapshotReceivedConsumer{app: app}, nil
}

// Consume handles a snapshot received event.
func (c *SnapshotReceivedConsumer) Consume(ctx context.Context, event inventoryevents.SnapshotReceived) error {
	return c.app.HandleSnapshotReceived(ctx, event)
}

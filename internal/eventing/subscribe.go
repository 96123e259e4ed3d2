package eventing

import (
	"context"

	"facility-cloud/internal/eventing/eventbus"
)

// ProcessedStore records which consumer has handled which event.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumer string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumer string) error
}

// Subscribe registers handler for eventType. With a store the handler runs
// at most once per envelope id per consumer.
func Subscribe(bus eventbus.EventBus, eventType, consumer string, handler eventbus.EventHandler, store ProcessedStore) {
	if store != nil {
		handler = dedupe(consumer, handler, store)
	}
	bus.Subscribe(eventType, handler)
}

func dedupe(consumer string, handler eventbus.EventHandler, store ProcessedStore) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		env, ok := DeliveredEnvelope(ctx)
		if !ok || env.ID == "" {
			// Direct bus publish without an envelope; nothing to dedupe on.
			return handler(ctx, event)
		}
		seen, err := store.HasProcessed(ctx, env.ID, consumer)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
		return store.MarkProcessed(ctx, env.ID, consumer)
	}
}

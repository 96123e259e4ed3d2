package eventing

import "context"

const defaultDispatchBatch = 50

// EventBus is the publish side of the in-process bus.
type EventBus interface {
	Publish(ctx context.Context, event any) error
}

// OutboxStore reads and settles pending outbox rows.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// DLQStore keeps envelopes that could not be delivered.
type DLQStore interface {
	RecordFailure(ctx context.Context, env Envelope, cause error) error
}

// OutboxRecord is one stored envelope awaiting dispatch.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
}

// Dispatcher drains the outbox onto the bus. Delivery is at-least-once;
// consumers dedupe via ProcessedStore.
type Dispatcher struct {
	bus      EventBus
	outbox   OutboxStore
	registry *Registry
	dlq      DLQStore
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(bus EventBus, outbox OutboxStore, registry *Registry, dlq DLQStore) *Dispatcher {
	return &Dispatcher{bus: bus, outbox: outbox, registry: registry, dlq: dlq}
}

// Dispatch delivers up to limit pending envelopes in insertion order.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) error {
	if d == nil || d.bus == nil || d.outbox == nil || d.registry == nil {
		return nil
	}
	if limit <= 0 {
		limit = defaultDispatchBatch
	}
	pending, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return err
	}
	for _, record := range pending {
		if err := d.deliver(ctx, record.Envelope); err != nil {
			_ = d.outbox.MarkFailed(ctx, record.ID)
			if d.dlq != nil {
				_ = d.dlq.RecordFailure(ctx, record.Envelope, err)
			}
			continue
		}
		_ = d.outbox.MarkSent(ctx, record.ID)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) error {
	event, err := d.registry.Decode(env)
	if err != nil {
		return err
	}
	return d.bus.Publish(withEnvelope(ctx, env), event)
}

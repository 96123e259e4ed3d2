package eventing

import "context"

type metaKey struct{}

type envelopeKey struct{}

// WithEventID pins the envelope id for the next publish on this context.
func WithEventID(ctx context.Context, id string) context.Context {
	meta := MetaFromContext(ctx)
	meta.EventID = id
	return context.WithValue(ctx, metaKey{}, meta)
}

// WithSiteID scopes the next publish to one site.
func WithSiteID(ctx context.Context, site string) context.Context {
	meta := MetaFromContext(ctx)
	meta.Site = site
	return context.WithValue(ctx, metaKey{}, meta)
}

// WithTrace correlates the next publish with an earlier event.
func WithTrace(ctx context.Context, trace string) context.Context {
	meta := MetaFromContext(ctx)
	meta.Trace = trace
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFromContext returns publish metadata accumulated on the context.
func MetaFromContext(ctx context.Context) Meta {
	if meta, ok := ctx.Value(metaKey{}).(Meta); ok {
		return meta
	}
	return Meta{}
}

func withEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, envelopeKey{}, env)
}

// DeliveredEnvelope returns the envelope a handler is being invoked for.
// It is only set on contexts passed to bus handlers by the dispatcher.
func DeliveredEnvelope(ctx context.Context) (Envelope, bool) {
	env, ok := ctx.Value(envelopeKey{}).(Envelope)
	return env, ok
}

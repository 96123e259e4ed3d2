package eventing

import (
	"encoding/json"
	"errors"
	"time"

	"facility-cloud/internal/eventing/eventbus"
)

// SiteScoped is implemented by events that belong to one site.
type SiteScoped interface {
	EventSite() string
}

// Timestamped is implemented by events that carry their occurrence time.
type Timestamped interface {
	EventTime() time.Time
}

// Envelope carries one serialized event through the outbox.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	At      time.Time       `json:"at"`
	Site    string          `json:"site,omitempty"`
	Trace   string          `json:"trace,omitempty"`
	Version int             `json:"version"`
	Body    json.RawMessage `json:"body"`
}

// Meta overrides envelope fields at publish time.
type Meta struct {
	EventID string
	Site    string
	Trace   string
	At      time.Time
	Version int
}

// Wrap serializes an event into an envelope. Meta wins; missing fields fall
// back to what the event reports about itself, then to generated values.
func Wrap(event any, meta Meta) (Envelope, error) {
	if event == nil {
		return Envelope{}, errors.New("eventing: nil event")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		ID:      meta.EventID,
		Kind:    eventbus.EventType(event),
		At:      meta.At,
		Site:    meta.Site,
		Trace:   meta.Trace,
		Version: meta.Version,
		Body:    body,
	}
	if env.ID == "" {
		env.ID = NewEventID()
	}
	if env.Site == "" {
		if scoped, ok := event.(SiteScoped); ok {
			env.Site = scoped.EventSite()
		}
	}
	if env.At.IsZero() {
		if stamped, ok := event.(Timestamped); ok {
			env.At = stamped.EventTime()
		}
	}
	if env.At.IsZero() {
		env.At = time.Now()
	}
	env.At = env.At.UTC()
	if env.Trace == "" {
		env.Trace = env.ID
	}
	if env.Version == 0 {
		env.Version = 1
	}
	return env, nil
}

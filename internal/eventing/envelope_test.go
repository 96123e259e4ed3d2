package eventing

import (
	"context"
	"testing"
	"time"
)

type breachNoted struct {
	Site string    `json:"site"`
	At   time.Time `json:"at"`
}

func (e breachNoted) EventSite() string { return e.Site }

func (e breachNoted) EventTime() time.Time { return e.At }

func TestWrapAppliesContextMeta(t *testing.T) {
	ctx := WithEventID(context.Background(), "evt-pinned")
	ctx = WithSiteID(ctx, "site-b")
	ctx = WithTrace(ctx, "evt-origin")

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env, err := Wrap(breachNoted{Site: "site-a", At: at}, MetaFromContext(ctx))
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if env.ID != "evt-pinned" {
		t.Fatalf("id = %q, want pinned id", env.ID)
	}
	if env.Site != "site-b" {
		t.Fatalf("site = %q, context must win over the event", env.Site)
	}
	if env.Trace != "evt-origin" {
		t.Fatalf("trace = %q, want evt-origin", env.Trace)
	}
	if !env.At.Equal(at) {
		t.Fatalf("at = %s, want event time %s", env.At, at)
	}
}

func TestWrapDefaultsFromEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env, err := Wrap(breachNoted{Site: "site-a", At: at}, Meta{})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if env.ID == "" {
		t.Fatalf("id not generated")
	}
	if env.Trace != env.ID {
		t.Fatalf("trace = %q, want own id %q", env.Trace, env.ID)
	}
	if env.Site != "site-a" {
		t.Fatalf("site = %q, want event site", env.Site)
	}
	if env.Version != 1 {
		t.Fatalf("version = %d, want 1", env.Version)
	}
}

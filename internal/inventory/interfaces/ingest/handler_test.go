package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"facility-cloud/internal/inventory/application/events"
	inventory "facility-cloud/internal/inventory/domain"
)

type memSnapshotWriter struct {
	snaps []inventory.Snapshot
}

func (m *memSnapshotWriter) UpsertLatest(_ context.Context, snap inventory.Snapshot) error {
	m.snaps = append(m.snaps, snap)
	return nil
}

type recordingPublisher struct {
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, event any) error {
	p.events = append(p.events, event)
	return nil
}

func newIngestHandler(t *testing.T) (*Handler, *memSnapshotWriter, *recordingPublisher) {
	t.Helper()
	writer := &memSnapshotWriter{}
	publisher := &recordingPublisher{}
	h, err := NewHandler(writer, publisher, log.New(&strings.Builder{}, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h, writer, publisher
}

func TestIngestBatchPersistsAndPublishes(t *testing.T) {
	h, writer, publisher := newIngestHandler(t)

	body := `{"snapshots":[
		{"equipmentId":"dg-1","siteId":"site-a","status":"ON","metrics":{"powerKw":61.5},"ts":1767261600000},
		{"equipmentId":"ac-2","siteId":"site-a","status":"OFF","metrics":{"temperature":21}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/snapshots", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Accepted int `json:"accepted"`
		Received int `json:"received"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Accepted != 2 || resp.Received != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(writer.snaps) != 2 {
		t.Fatalf("persisted = %d, want 2", len(writer.snaps))
	}
	if writer.snaps[0].EquipmentID != "dg-1" || writer.snaps[0].At.IsZero() {
		t.Fatalf("snapshot = %+v", writer.snaps[0])
	}
	if len(publisher.events) != 2 {
		t.Fatalf("published = %d, want 2", len(publisher.events))
	}
	evt, ok := publisher.events[0].(events.SnapshotReceived)
	if !ok {
		t.Fatalf("event type = %T", publisher.events[0])
	}
	if evt.SiteID != "site-a" || evt.EventID == "" {
		t.Fatalf("event = %+v", evt)
	}
	if got, _ := evt.Snapshot.Metric("powerKw"); got != 61.5 {
		t.Fatalf("powerKw = %v", got)
	}
}

func TestIngestSkipsInvalidSnapshots(t *testing.T) {
	h, writer, publisher := newIngestHandler(t)

	body := `{"snapshots":[
		{"equipmentId":"","siteId":"site-a","status":"ON"},
		{"equipmentId":"dg-1","siteId":"site-a","status":"EXPLODED"},
		{"equipmentId":"dg-1","siteId":"site-a","status":"ON","metrics":{"powerKw":40}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/snapshots", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(writer.snaps) != 1 || len(publisher.events) != 1 {
		t.Fatalf("persisted = %d published = %d, want 1/1", len(writer.snaps), len(publisher.events))
	}
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	h, _, _ := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/snapshots", strings.NewReader(`{"snapshots":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestRejectsBadJSON(t *testing.T) {
	h, _, _ := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/snapshots", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestRejectsGet(t *testing.T) {
	h, _, _ := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/ingest/snapshots", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"facility-cloud/internal/eventing"
	"facility-cloud/internal/inventory/application/events"
	inventory "facility-cloud/internal/inventory/domain"
	"facility-cloud/internal/observability/metrics"
)

// SnapshotWriter persists latest equipment snapshots.
type SnapshotWriter interface {
	UpsertLatest(ctx context.Context, snap inventory.Snapshot) error
}

// Publisher forwards snapshot events onto the bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Handler ingests equipment snapshot batches from the external telemetry
// feed and republishes them as SnapshotReceived events.
type Handler struct {
	snapshots SnapshotWriter
	publisher Publisher
	logger    *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(snapshots SnapshotWriter, publisher Publisher, logger *log.Logger) (*Handler, error) {
	if snapshots == nil {
		return nil, errors.New("snapshot ingest: nil snapshot writer")
	}
	if publisher == nil {
		return nil, errors.New("snapshot ingest: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{snapshots: snapshots, publisher: publisher, logger: logger}, nil
}

type batchRequest struct {
	Snapshots []snapshotPayload `json:"snapshots"`
}

type snapshotPayload struct {
	EquipmentID string             `json:"equipmentId"`
	SiteID      string             `json:"siteId"`
	TowerID     string             `json:"towerId"`
	Status      string             `json:"status"`
	Metrics     map[string]float64 `json:"metrics"`
	Alarms      []string           `json:"alarms"`
	TS          int64              `json:"ts"`
}

// ServeHTTP handles POST /ingest/snapshots.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("snapshot ingest: read body error: %v", err)
		metrics.IncIngest("error")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("snapshot ingest: decode error: %v", err)
		metrics.IncIngest("error")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.Snapshots) == 0 {
		metrics.IncIngest("error")
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, payload := range req.Snapshots {
		snap, err := payload.toSnapshot()
		if err != nil {
			h.logger.Printf("snapshot ingest: invalid snapshot: %v", err)
			continue
		}
		if err := h.snapshots.UpsertLatest(r.Context(), snap); err != nil {
			h.logger.Printf("snapshot ingest: upsert error: %v", err)
			continue
		}
		event := events.SnapshotReceived{
			EventID:    eventing.NewEventID(),
			SiteID:     snap.SiteID,
			Snapshot:   snap,
			OccurredAt: snap.At,
		}
		ctx := eventing.WithEventID(r.Context(), event.EventID)
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.Printf("snapshot ingest: publish error: %v", err)
			continue
		}
		accepted++
	}

	metrics.IncIngest("success")
	metrics.ObserveIngestLatency(time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": accepted, "received": len(req.Snapshots)})
}

func (p snapshotPayload) toSnapshot() (inventory.Snapshot, error) {
	if p.EquipmentID == "" {
		return inventory.Snapshot{}, errors.New("snapshot ingest: empty equipment id")
	}
	if p.SiteID == "" {
		return inventory.Snapshot{}, errors.New("snapshot ingest: empty site id")
	}
	status := inventory.Status(p.Status)
	if !status.Valid() {
		return inventory.Snapshot{}, errors.New("snapshot ingest: invalid status")
	}
	at := time.Now().UTC()
	if p.TS > 0 {
		at = time.UnixMilli(p.TS).UTC()
	}
	return inventory.Snapshot{
		EquipmentID: p.EquipmentID,
		SiteID:      p.SiteID,
		TowerID:     p.TowerID,
		Status:      status,
		Metrics:     p.Metrics,
		Alarms:      p.Alarms,
		At:          at,
	}, nil
}

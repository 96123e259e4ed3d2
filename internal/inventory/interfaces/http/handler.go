package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	inventory "facility-cloud/internal/inventory/domain"
)

// SiteSource reads site reference records.
type SiteSource interface {
	List(ctx context.Context) ([]inventory.Site, error)
	Get(ctx context.Context, id string) (*inventory.Site, error)
}

// EquipmentSource reads equipment reference records.
type EquipmentSource interface {
	ListBySite(ctx context.Context, siteID string) ([]inventory.Equipment, error)
	ListByType(ctx context.Context, equipmentType string) ([]inventory.Equipment, error)
}

// SnapshotSource reads the latest stored snapshot per equipment unit.
type SnapshotSource interface {
	GetLatest(ctx context.Context, equipmentID string) (*inventory.Snapshot, error)
}

// Handler serves read-only site and equipment endpoints under /api/v1/sites
// and /api/v1/equipment.
type Handler struct {
	sites     SiteSource
	equipment EquipmentSource
	snapshots SnapshotSource
}

// NewHandler constructs a handler.
func NewHandler(sites SiteSource, equipment EquipmentSource, snapshots SnapshotSource) (*Handler, error) {
	if sites == nil {
		return nil, errors.New("inventory handler: nil site source")
	}
	if equipment == nil {
		return nil, errors.New("inventory handler: nil equipment source")
	}
	if snapshots == nil {
		return nil, errors.New("inventory handler: nil snapshot source")
	}
	return &Handler{sites: sites, equipment: equipment, snapshots: snapshots}, nil
}

// ServeHTTP handles site and equipment routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/api/v1/sites" {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/v1/sites/") {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sites/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			h.handleGet(w, r, parts[0])
			return
		case len(parts) == 2 && parts[1] == "equipment":
			h.handleEquipment(w, r, parts[0])
			return
		}
	}
	if r.URL.Path == "/api/v1/equipment" {
		h.handleEquipmentByType(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/v1/equipment/") {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/equipment/")
		parts := strings.Split(rest, "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] == "latest" {
			h.handleLatestSnapshot(w, r, parts[0])
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.sites.List(r.Context())
	if err != nil {
		http.Error(w, "list sites failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	site, err := h.sites.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "get site failed", http.StatusInternalServerError)
		return
	}
	if site == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, site)
}

func (h *Handler) handleEquipment(w http.ResponseWriter, r *http.Request, siteID string) {
	list, err := h.equipment.ListBySite(r.Context(), siteID)
	if err != nil {
		http.Error(w, "list equipment failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleEquipmentByType(w http.ResponseWriter, r *http.Request) {
	equipmentType := r.URL.Query().Get("type")
	if equipmentType == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}
	list, err := h.equipment.ListByType(r.Context(), equipmentType)
	if err != nil {
		http.Error(w, "list equipment failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleLatestSnapshot(w http.ResponseWriter, r *http.Request, equipmentID string) {
	snap, err := h.snapshots.GetLatest(r.Context(), equipmentID)
	if err != nil {
		http.Error(w, "get snapshot failed", http.StatusInternalServerError)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

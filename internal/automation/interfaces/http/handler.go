package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"facility-cloud/internal/audit"
	"facility-cloud/internal/auth"
	rules "facility-cloud/internal/rules/domain"
)

// Store is the automation admin collaborator.
type Store interface {
	ListAutomations(ctx context.Context) ([]rules.Automation, error)
	GetAutomation(ctx context.Context, id string) (*rules.Automation, error)
	SaveAutomation(ctx context.Context, item rules.Automation) error
	SetAutomationEnabled(ctx context.Context, id string, enabled bool) error
}

// Handler provides automation admin endpoints under /api/v1/automations.
type Handler struct {
	store       Store
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(store Store, auditLogger audit.Logger) (*Handler, error) {
	if store == nil {
		return nil, errors.New("automation handler: nil store")
	}
	return &Handler{store: store, auditLogger: auditLogger}, nil
}

// ServeHTTP handles automation routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/automations" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost, http.MethodPut:
			h.handleSave(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/v1/automations/") {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/automations/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.handleGet(w, r, parts[0])
		case len(parts) == 2 && r.Method == http.MethodPost && parts[1] == "enable":
			h.handleSetEnabled(w, r, parts[0], true)
		case len(parts) == 2 && r.Method == http.MethodPost && parts[1] == "disable":
			h.handleSetEnabled(w, r, parts[0], false)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAutomations(r.Context())
	if err != nil {
		http.Error(w, "list automations failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	item, err := h.store.GetAutomation(r.Context(), id)
	if err != nil {
		http.Error(w, "get automation failed", http.StatusInternalServerError)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var item rules.Automation
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	normalized := rules.NormalizeAutomation(item)
	if err := normalized.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveAutomation(r.Context(), item); err != nil {
		http.Error(w, "save automation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": item.ID, "enabled": item.Enabled})
	h.logAudit(r, item.ID, item.SiteID, "automation.save", map[string]any{"enabled": item.Enabled})
}

func (h *Handler) handleSetEnabled(w http.ResponseWriter, r *http.Request, id string, enabled bool) {
	if err := h.store.SetAutomationEnabled(r.Context(), id, enabled); err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, "update automation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "enabled": enabled})
	action := "automation.disable"
	if enabled {
		action = "automation.enable"
	}
	h.logAudit(r, id, "", action, nil)
}

func (h *Handler) logAudit(r *http.Request, id, siteID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "automation",
		ResourceID:   id,
		SiteID:       siteID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

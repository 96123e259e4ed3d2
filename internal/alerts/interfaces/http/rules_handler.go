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

// RuleStore is the alert rule admin collaborator.
type RuleStore interface {
	List(ctx context.Context) ([]rules.AlertRule, error)
	GetByID(ctx context.Context, id string) (*rules.AlertRule, error)
	Save(ctx context.Context, rule rules.AlertRule) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// RulesHandler provides alert rule admin endpoints under /api/v1/alert-rules.
type RulesHandler struct {
	store       RuleStore
	auditLogger audit.Logger
}

// NewRulesHandler constructs a handler.
func NewRulesHandler(store RuleStore, auditLogger audit.Logger) (*RulesHandler, error) {
	if store == nil {
		return nil, errors.New("alert rules handler: nil store")
	}
	return &RulesHandler{store: store, auditLogger: auditLogger}, nil
}

// ServeHTTP handles alert rule routes.
func (h *RulesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/alert-rules" {
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
	if strings.HasPrefix(r.URL.Path, "/api/v1/alert-rules/") {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alert-rules/")
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

func (h *RulesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, "list alert rules failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *RulesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "get alert rule failed", http.StatusInternalServerError)
		return
	}
	if rule == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	var rule rules.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	normalized := rules.NormalizeAlertRule(rule)
	if err := normalized.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Save(r.Context(), rule); err != nil {
		http.Error(w, "save alert rule failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": rule.ID, "enabled": rule.Enabled})
	h.logRuleAudit(r, rule.ID, "alert_rule.save", map[string]any{"enabled": rule.Enabled})
}

func (h *RulesHandler) handleSetEnabled(w http.ResponseWriter, r *http.Request, id string, enabled bool) {
	if err := h.store.SetEnabled(r.Context(), id, enabled); err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, "update alert rule failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "enabled": enabled})
	action := "alert_rule.disable"
	if enabled {
		action = "alert_rule.enable"
	}
	h.logRuleAudit(r, id, action, nil)
}

func (h *RulesHandler) logRuleAudit(r *http.Request, id, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "alert_rule",
		ResourceID:   id,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

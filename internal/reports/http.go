package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	alerts "facility-cloud/internal/alerts/domain"
	"facility-cloud/internal/audit"
	"facility-cloud/internal/auth"
	"facility-cloud/internal/commandlog"
	"facility-cloud/internal/observability/metrics"
)

// AlertSource lists alerts for export.
type AlertSource interface {
	ListByTime(ctx context.Context, siteID, status string, from, to time.Time) ([]alerts.Alert, error)
}

// CommandLogSource lists command log items for export.
type CommandLogSource interface {
	ListByTime(ctx context.Context, from, to time.Time, limit int) ([]commandlog.Item, error)
}

// Handler serves report exports under /api/v1/exports.
type Handler struct {
	alerts      AlertSource
	commandLog  CommandLogSource
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(alertSource AlertSource, commandLogSource CommandLogSource, auditLogger audit.Logger) (*Handler, error) {
	if alertSource == nil {
		return nil, errors.New("reports handler: nil alert source")
	}
	if commandLogSource == nil {
		return nil, errors.New("reports handler: nil command log source")
	}
	return &Handler{alerts: alertSource, commandLog: commandLogSource, auditLogger: auditLogger}, nil
}

// ServeHTTP handles export routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/exports/alerts.xlsx":
		h.handleAlerts(w, r, "xlsx")
	case "/api/v1/exports/alerts.csv":
		h.handleAlerts(w, r, "csv")
	case "/api/v1/exports/alerts.pdf":
		h.handleAlerts(w, r, "pdf")
	case "/api/v1/exports/command-log.xlsx":
		h.handleCommandLog(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	from, to, err := timeWindow(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	siteID := r.URL.Query().Get("site_id")
	status := r.URL.Query().Get("status")

	list, err := h.alerts.ListByTime(r.Context(), siteID, status, from, to)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "list alerts failed", http.StatusInternalServerError)
		return
	}

	var data []byte
	var contentType string
	switch format {
	case "xlsx":
		data, err = BuildAlertHistoryXLSX(list)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		data, err = BuildAlertHistoryCSV(list)
		contentType = "text/csv"
	case "pdf":
		data, err = BuildAlertSummaryPDF(siteID, from, to, list)
		contentType = "application/pdf"
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, siteID, "alerts", map[string]any{
		"format": format,
		"from":   from.Format(time.RFC3339),
		"to":     to.Format(time.RFC3339),
		"status": status,
	})
}

func (h *Handler) handleCommandLog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("xlsx", result, time.Since(start))
	}()

	from, to, err := timeWindow(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	items, err := h.commandLog.ListByTime(r.Context(), from, to, 0)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "list command log failed", http.StatusInternalServerError)
		return
	}
	data, err := BuildCommandLogXLSX(items)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "", "command-log", map[string]any{
		"format": "xlsx",
		"from":   from.Format(time.RFC3339),
		"to":     to.Format(time.RFC3339),
	})
}

func (h *Handler) logAudit(r *http.Request, siteID, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "report.export",
		ResourceType: "report",
		ResourceID:   resourceID,
		SiteID:       siteID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func timeWindow(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC3339")
		}
		from = parsed.UTC()
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC3339")
		}
		to = parsed.UTC()
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

package reports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	alerts "facility-cloud/internal/alerts/domain"
	"facility-cloud/internal/commandlog"
)

type stubAlertSource struct {
	list []alerts.Alert
}

func (s *stubAlertSource) ListByTime(_ context.Context, siteID, status string, _, _ time.Time) ([]alerts.Alert, error) {
	var out []alerts.Alert
	for _, a := range s.list {
		if siteID != "" && a.SiteID != siteID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type stubCommandLogSource struct {
	items []commandlog.Item
}

func (s *stubCommandLogSource) ListByTime(_ context.Context, _, _ time.Time, _ int) ([]commandlog.Item, error) {
	return s.items, nil
}

func sampleAlerts() []alerts.Alert {
	raised := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	return []alerts.Alert{
		{
			ID:          "alert-aa11bb22",
			RuleID:      "rule-1",
			Type:        "DG overload",
			TS:          raised,
			EquipmentID: "dg-1",
			SiteID:      "site-a",
			Severity:    "high",
			Status:      alerts.StatusActive,
			LastValue:   61.5,
		},
		{
			ID:          "alert-cc33dd44",
			RuleID:      "rule-2",
			Type:        "Chiller temperature",
			TS:          raised.Add(30 * time.Minute),
			EquipmentID: "ch-2",
			SiteID:      "site-b",
			Severity:    "medium",
			Status:      alerts.StatusResolved,
			ResolvedAt:  raised.Add(2 * time.Hour),
			LastValue:   12.0,
		},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(
		&stubAlertSource{list: sampleAlerts()},
		&stubCommandLogSource{items: []commandlog.Item{
			{ID: "cmd-1", Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), Actor: "automation:auto-1", Action: "notify", Details: "sent"},
		}},
		nil,
	)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

func TestExportAlertsCSV(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.csv?from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("content type = %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alert-aa11bb22") || !strings.Contains(body, "alert-cc33dd44") {
		t.Fatalf("csv missing rows: %q", body)
	}
	if !strings.HasPrefix(body, "id,rule_id,type,ts") {
		t.Fatalf("csv missing header: %q", body)
	}
}

func TestExportAlertsCSVFiltersBySite(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.csv?from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z&site_id=site-a", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "alert-aa11bb22") {
		t.Fatalf("csv missing site-a row: %q", body)
	}
	if strings.Contains(body, "alert-cc33dd44") {
		t.Fatalf("csv should not contain site-b row: %q", body)
	}
}

func TestExportAlertsXLSX(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.xlsx?from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty xlsx body")
	}
}

func TestExportAlertsPDF(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.pdf?from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("body is not a pdf")
	}
}

func TestExportCommandLogXLSX(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/command-log.xlsx?from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty xlsx body")
	}
}

func TestExportRejectsInvertedWindow(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.csv?from=2026-03-11T00:00:00Z&to=2026-03-10T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestExportUnknownPath(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.docx", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	alertapp "facility-cloud/internal/alerts/application"
	alerts "facility-cloud/internal/alerts/domain"
	inventory "facility-cloud/internal/inventory/domain"
	rules "facility-cloud/internal/rules/domain"
)

type stubRuleSource struct{}

func (stubRuleSource) ListEnabled(context.Context) ([]rules.AlertRule, error) {
	return nil, nil
}

type stubEquipmentSource struct{}

func (stubEquipmentSource) GetByID(context.Context, string) (*inventory.Equipment, error) {
	return nil, nil
}

type listAlertStore struct {
	alerts []alerts.Alert
}

func (s *listAlertStore) Create(context.Context, *alerts.Alert) error { return nil }

func (s *listAlertStore) GetByID(context.Context, string) (*alerts.Alert, error) {
	return nil, nil
}

func (s *listAlertStore) FindOpenByRuleEquipment(context.Context, string, string) (*alerts.Alert, error) {
	return nil, nil
}

func (s *listAlertStore) MarkAcknowledged(context.Context, string, string, time.Time) error {
	return nil
}

func (s *listAlertStore) MarkResolved(context.Context, string, float64, time.Time) error {
	return nil
}

func (s *listAlertStore) IncrementEscalation(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func (s *listAlertStore) UpdateLastValue(context.Context, string, float64, time.Time) error {
	return nil
}

func (s *listAlertStore) ListByTime(_ context.Context, siteID, status string, from, to time.Time) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for _, alert := range s.alerts {
		if siteID != "" && alert.SiteID != siteID {
			continue
		}
		if status != "" && alert.Status != status {
			continue
		}
		if alert.TS.Before(from) || !alert.TS.Before(to) {
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

func newListHandler(t *testing.T, stored []alerts.Alert) *Handler {
	t.Helper()
	service, err := alertapp.NewService(stubRuleSource{}, &listAlertStore{alerts: stored}, stubEquipmentSource{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewHandler(service, nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler
}

func listedAlert(id, severity string, ts time.Time) alerts.Alert {
	return alerts.Alert{
		ID:       id,
		SiteID:   "site-a",
		Severity: severity,
		Status:   alerts.StatusActive,
		TS:       ts,
	}
}

func TestListAlertsFiltersByMinSeverity(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	handler := newListHandler(t, []alerts.Alert{
		listedAlert("alert-1", string(rules.SeverityLow), ts),
		listedAlert("alert-2", string(rules.SeverityMedium), ts),
		listedAlert("alert-3", string(rules.SeverityHigh), ts),
	})

	url := "/api/v1/alerts?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z&min_severity=medium"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var list []alerts.Alert
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("alerts = %d, want 2", len(list))
	}
	for _, alert := range list {
		if alert.Severity == string(rules.SeverityLow) {
			t.Fatalf("low severity alert passed medium filter: %+v", alert)
		}
	}
}

func TestListAlertsRejectsUnknownSeverity(t *testing.T) {
	handler := newListHandler(t, nil)
	url := "/api/v1/alerts?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z&min_severity=catastrophic"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListAlertsWithoutSeverityReturnsAll(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	handler := newListHandler(t, []alerts.Alert{
		listedAlert("alert-1", string(rules.SeverityLow), ts),
		listedAlert("alert-2", string(rules.SeverityHigh), ts),
	})

	url := "/api/v1/alerts?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []alerts.Alert
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("alerts = %d, want 2", len(list))
	}
}

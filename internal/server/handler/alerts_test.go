package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

type fakeAlertService struct {
	alerts   []domain.Alert
	acked    []string
	lastFilt domain.AlertFilter
}

func (f *fakeAlertService) List(_ context.Context, filt domain.AlertFilter) ([]domain.Alert, error) {
	f.lastFilt = filt
	return f.alerts, nil
}

func (f *fakeAlertService) Get(_ context.Context, id string) (domain.Alert, error) {
	for _, a := range f.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Alert{}, domain.ErrNotFound
}

func (f *fakeAlertService) Acknowledge(_ context.Context, id string) (domain.Alert, error) {
	a, err := f.Get(context.Background(), id)
	if err != nil {
		return domain.Alert{}, err
	}
	f.acked = append(f.acked, id)
	a.Acknowledged = true
	return a, nil
}

func newAlertMux(svc AlertService) *http.ServeMux {
	h := NewAlertHandler(svc, slog.Default())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/alerts", h.ListAlerts)
	mux.HandleFunc("GET /api/alerts/{id}", h.GetAlert)
	mux.HandleFunc("PATCH /api/alerts/{id}/acknowledge", h.AcknowledgeAlert)
	return mux
}

func TestListAlertsAppliesQueryFilter(t *testing.T) {
	svc := &fakeAlertService{alerts: []domain.Alert{
		{ID: "a1", Type: domain.AlertPriceSurge, Area: "jvc", TriggeredAt: time.Now()},
	}}
	mux := newAlertMux(svc)

	req := httptest.NewRequest(http.MethodGet,
		"/api/alerts?area=jvc&type=PRICE_SURGE&unacknowledged=true&limit=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastFilt.Area != "jvc" {
		t.Errorf("filter area = %q, want jvc", svc.lastFilt.Area)
	}
	if svc.lastFilt.Type != domain.AlertPriceSurge {
		t.Errorf("filter type = %q, want PRICE_SURGE", svc.lastFilt.Type)
	}
	if !svc.lastFilt.Unacknowledged {
		t.Error("filter unacknowledged = false, want true")
	}
	if svc.lastFilt.Limit != 10 {
		t.Errorf("filter limit = %d, want 10", svc.lastFilt.Limit)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	svc := &fakeAlertService{alerts: []domain.Alert{{ID: "a1"}}}
	mux := newAlertMux(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/a1/acknowledge", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.acked) != 1 || svc.acked[0] != "a1" {
		t.Errorf("acked = %v, want [a1]", svc.acked)
	}

	var got domain.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !got.Acknowledged {
		t.Error("response alert not marked acknowledged")
	}
}

func TestAcknowledgeUnknownAlertReturns404(t *testing.T) {
	mux := newAlertMux(&fakeAlertService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/nope/acknowledge", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

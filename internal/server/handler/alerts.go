package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// AlertService defines the methods the alert handler requires from the
// service layer.
type AlertService interface {
	List(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error)
	Get(ctx context.Context, id string) (domain.Alert, error)
	Acknowledge(ctx context.Context, id string) (domain.Alert, error)
}

// AlertHandler serves alert endpoints.
type AlertHandler struct {
	alerts AlertService
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler with the given service and logger.
func NewAlertHandler(alerts AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logger,
	}
}

// ListAlerts returns alerts matching the query filters, newest first.
// GET /api/alerts?area=dubai-marina&type=PRICE_SURGE&severity=WARNING&unacknowledged=true&hours=48
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	filter := domain.AlertFilter{
		Area:           q.Get("area"),
		Type:           domain.AlertType(q.Get("type")),
		Severity:       domain.AlertSeverity(q.Get("severity")),
		Unacknowledged: q.Get("unacknowledged") == "true",
		Limit:          opts.Limit,
		Offset:         opts.Offset,
	}
	if v := q.Get("hours"); v != "" {
		if d, err := time.ParseDuration(v + "h"); err == nil && d > 0 {
			filter.Since = time.Now().UTC().Add(-d)
		}
	}

	alerts, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list alerts failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetAlert returns a single alert by its ID.
// GET /api/alerts/{id}
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}

	alert, err := h.alerts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get alert failed",
			slog.String("alert_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// AcknowledgeAlert marks an alert as handled, re-arming its rule.
// PATCH /api/alerts/{id}/acknowledge
func (h *AlertHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}

	alert, err := h.alerts.Acknowledge(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: acknowledge alert failed",
			slog.String("alert_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

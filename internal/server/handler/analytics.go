package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/service"
)

// AnalyticsService defines the methods the analytics handler requires from
// the service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type AnalyticsService interface {
	GetOverview(ctx context.Context) (service.Overview, error)
	GetPriceTracker(ctx context.Context, area string, days int) (service.PriceTracker, error)
	GetVelocity(ctx context.Context, area string, days int) (service.Velocity, error)
	GetHeatMap(ctx context.Context) ([]service.HeatMapCell, error)
	GetSourceComparison(ctx context.Context, area string) (service.SourceComparison, error)
	ListListings(ctx context.Context, area string) ([]domain.Listing, error)
}

// AnalyticsHandler serves the market analytics endpoints.
type AnalyticsHandler struct {
	analytics AnalyticsService
	logger    *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler with the given service and
// logger.
func NewAnalyticsHandler(analytics AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// Overview returns the cross-area dashboard summary.
// GET /api/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.GetOverview(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: overview failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build overview")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// PriceTracker returns price statistics and the recent change ledger for an
// area.
// GET /api/analytics/price-tracker?area=dubai-marina&days=14
func (h *AnalyticsHandler) PriceTracker(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")
	if area == "" {
		writeError(w, http.StatusBadRequest, "missing area parameter")
		return
	}

	tracker, err := h.analytics.GetPriceTracker(r.Context(), area, parseDays(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no metrics for area")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: price tracker failed",
			slog.String("area", area),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build price tracker")
		return
	}
	writeJSON(w, http.StatusOK, tracker)
}

// Velocity returns listing velocity and its snapshot series for an area.
// GET /api/analytics/listing-velocity?area=dubai-marina&days=30
func (h *AnalyticsHandler) Velocity(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")
	if area == "" {
		writeError(w, http.StatusBadRequest, "missing area parameter")
		return
	}

	velocity, err := h.analytics.GetVelocity(r.Context(), area, parseDays(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no metrics for area")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: velocity failed",
			slog.String("area", area),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build velocity view")
		return
	}
	writeJSON(w, http.StatusOK, velocity)
}

// HeatMap returns the newest heat reading per area, hottest first.
// GET /api/analytics/heat-map
func (h *AnalyticsHandler) HeatMap(w http.ResponseWriter, r *http.Request) {
	cells, err := h.analytics.GetHeatMap(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: heat map failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build heat map")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": cells})
}

// SourceComparison breaks one area down by portal.
// GET /api/analytics/competitor-comparison?area=dubai-marina
func (h *AnalyticsHandler) SourceComparison(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")
	if area == "" {
		writeError(w, http.StatusBadRequest, "missing area parameter")
		return
	}

	cmp, err := h.analytics.GetSourceComparison(r.Context(), area)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: source comparison failed",
			slog.String("area", area),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build source comparison")
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// Listings returns the active listings in one area.
// GET /api/listings?area=dubai-marina
func (h *AnalyticsHandler) Listings(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")
	if area == "" {
		writeError(w, http.StatusBadRequest, "missing area parameter")
		return
	}

	listings, err := h.analytics.ListListings(r.Context(), area)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list listings failed",
			slog.String("area", area),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"area":     area,
		"listings": listings,
		"count":    len(listings),
	})
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// AlertService handles alert queries and acknowledgement.
type AlertService struct {
	alerts domain.AlertStore
	logger *slog.Logger
}

// NewAlertService creates an AlertService.
func NewAlertService(alerts domain.AlertStore, logger *slog.Logger) *AlertService {
	return &AlertService{alerts: alerts, logger: logger}
}

// List returns alerts matching the filter, newest first.
func (s *AlertService) List(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	alerts, err := s.alerts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list: %w", err)
	}
	return alerts, nil
}

// Get retrieves one alert by ID.
func (s *AlertService) Get(ctx context.Context, id string) (domain.Alert, error) {
	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: get %s: %w", id, err)
	}
	return a, nil
}

// Acknowledge marks an alert as handled, re-arming its rule for the area.
func (s *AlertService) Acknowledge(ctx context.Context, id string) (domain.Alert, error) {
	if err := s.alerts.Acknowledge(ctx, id, time.Now().UTC()); err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: acknowledge %s: %w", id, err)
	}

	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: reload %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "alert acknowledged",
		slog.String("alert_id", id),
		slog.String("type", string(a.Type)),
		slog.String("area", a.Area),
	)
	return a, nil
}

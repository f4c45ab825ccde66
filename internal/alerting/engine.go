package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omaralj/propwatch/internal/domain"
)

// DefaultSuppression is how long an open alert silences re-triggers of the
// same (type, area) pair.
const DefaultSuppression = 24 * time.Hour

// ChannelAlerts is the signal bus channel new alerts go out on.
const ChannelAlerts = "alerts"

// Notifier pushes an alert to an external sink (Telegram, Discord).
type Notifier interface {
	Notify(ctx context.Context, a domain.Alert) error
}

// Options carries the optional collaborators and tuning for an Engine.
type Options struct {
	Notifier    Notifier
	Bus         domain.SignalBus
	Thresholds  Thresholds
	Suppression time.Duration
}

// Engine evaluates alert rules against finished metric snapshots. An open
// alert of the same type and area inside the suppression window absorbs a
// re-trigger (its observed value is refreshed); acknowledged alerts do not
// suppress.
type Engine struct {
	snapshots domain.MetricStore
	alerts    domain.AlertStore
	listings  domain.ListingStore
	opts      Options
	logger    *slog.Logger
}

func NewEngine(
	snapshots domain.MetricStore,
	alerts domain.AlertStore,
	listings domain.ListingStore,
	opts Options,
	logger *slog.Logger,
) *Engine {
	if opts.Suppression <= 0 {
		opts.Suppression = DefaultSuppression
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	return &Engine{
		snapshots: snapshots,
		alerts:    alerts,
		listings:  listings,
		opts:      opts,
		logger:    logger.With("component", "alert_engine"),
	}
}

// Evaluate runs all rules against one snapshot and returns the alerts it
// created. Snapshots older than the area's newest stored snapshot are
// ignored so late-arriving computations cannot fire on stale data.
func (e *Engine) Evaluate(ctx context.Context, snap domain.MarketMetricSnapshot) ([]domain.Alert, error) {
	latest, err := e.snapshots.Latest(ctx, snap.Area)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("alerting: latest snapshot %s: %w", snap.Area, err)
	}
	if err == nil && latest.ComputedAt.After(snap.ComputedAt) {
		e.logger.Debug("stale snapshot, skipping evaluation",
			"area", snap.Area, "computed_at", snap.ComputedAt, "latest", latest.ComputedAt)
		return nil, nil
	}

	floodBySource, err := e.listings.CountNewBySource(ctx, snap.Area, snap.ComputedAt.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("alerting: flood counts %s: %w", snap.Area, err)
	}

	var created []domain.Alert
	for _, cand := range evaluateRules(snap, floodBySource, e.opts.Thresholds) {
		since := snap.ComputedAt.Add(-e.opts.Suppression)
		open, err := e.alerts.FindOpen(ctx, cand.Type, snap.Area, since)
		switch {
		case err == nil:
			// Still open inside the window: refresh, do not duplicate.
			if err := e.alerts.Refresh(ctx, open.ID, cand.MetricValue, snap.ComputedAt); err != nil {
				return created, fmt.Errorf("alerting: refresh alert %s: %w", open.ID, err)
			}
			e.logger.Debug("alert suppressed", "type", cand.Type, "area", snap.Area, "open_id", open.ID)
			continue
		case !errors.Is(err, domain.ErrNotFound):
			return created, fmt.Errorf("alerting: find open alert: %w", err)
		}

		alert := domain.Alert{
			ID:             uuid.NewString(),
			Type:           cand.Type,
			Severity:       cand.Severity,
			Area:           snap.Area,
			Title:          cand.Title,
			Description:    cand.Description,
			MetricValue:    cand.MetricValue,
			ThresholdValue: cand.ThresholdValue,
			TriggeredAt:    snap.ComputedAt,
		}
		if err := e.alerts.Insert(ctx, alert); err != nil {
			return created, fmt.Errorf("alerting: insert alert: %w", err)
		}
		created = append(created, alert)
		e.fanOut(ctx, alert)

		e.logger.Info("alert raised",
			"type", alert.Type,
			"severity", alert.Severity,
			"area", alert.Area,
			"value", alert.MetricValue,
			"threshold", alert.ThresholdValue)
	}
	return created, nil
}

// Acknowledge marks an alert handled, which re-arms its rule immediately.
func (e *Engine) Acknowledge(ctx context.Context, id string, at time.Time) error {
	return e.alerts.Acknowledge(ctx, id, at)
}

// fanOut pushes a new alert to the bus and the notifier, best-effort.
func (e *Engine) fanOut(ctx context.Context, alert domain.Alert) {
	if e.opts.Bus != nil {
		payload, err := json.Marshal(alert)
		if err == nil {
			err = e.opts.Bus.Publish(ctx, ChannelAlerts, payload)
		}
		if err != nil {
			e.logger.Warn("publish alert", "alert_id", alert.ID, "error", err)
		}
	}
	if e.opts.Notifier != nil {
		if err := e.opts.Notifier.Notify(ctx, alert); err != nil {
			e.logger.Warn("notify alert", "alert_id", alert.ID, "error", err)
		}
	}
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omaralj/propwatch/internal/alerting"
	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/ingest"
	"github.com/omaralj/propwatch/internal/metrics"
	"github.com/omaralj/propwatch/internal/pipeline"
	"github.com/omaralj/propwatch/internal/server"
	"github.com/omaralj/propwatch/internal/server/handler"
	"github.com/omaralj/propwatch/internal/server/ws"
	"github.com/omaralj/propwatch/internal/service"
)

// IngestMode runs the collection pipeline only: portal fetching, change
// detection, metric computation, alerting, staleness reaping, and archival.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode",
		slog.Int("providers", len(deps.Providers)),
		slog.Int("areas", len(a.cfg.Ingest.Areas)),
	)

	orch := a.buildOrchestrator(deps)
	return orch.Run(ctx)
}

// ServerMode runs the HTTP API and WebSocket hub on top of existing data.
// No collection happens; POST /api/ingest/trigger accepts but has no
// pipeline to signal.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode runs the collection pipeline and the HTTP API together. The
// ingest trigger endpoint is wired to the pipeline so one collection cycle
// can be requested ahead of schedule.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	orch := a.buildOrchestrator(deps)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, orch.TriggerCh())
	}

	return g.Wait()
}

// buildOrchestrator assembles the collection pipeline from the wired
// dependencies: ingestor, aggregator, alert engine, reaper, and archiver.
func (a *App) buildOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	detector := ingest.NewDetector(deps.Listings, a.logger)
	ingestor := ingest.NewIngestor(detector, deps.Jobs, a.cfg.Ingest.Workers, a.logger)

	aggregator := metrics.NewAggregator(deps.Listings, deps.History, deps.Metrics,
		metrics.Options{
			Cache:               deps.MetricCache,
			Locks:               deps.Locks,
			Bus:                 deps.Bus,
			DefaultAreaCapacity: a.cfg.Metrics.DefaultAreaCapacity,
			AreaCapacities:      a.cfg.Metrics.AreaCapacities,
		}, a.logger)

	var engine *alerting.Engine
	if a.cfg.Alerts.Enabled {
		engine = alerting.NewEngine(deps.Metrics, deps.Alerts, deps.Listings,
			alerting.Options{
				Notifier: deps.Notifier,
				Bus:      deps.Bus,
				Thresholds: alerting.Thresholds{
					PriceSurgeWarnPct:  a.cfg.Alerts.SurgePerDay,
					PriceSurgeCritPct:  a.cfg.Alerts.SurgePerDayCritical,
					PriceDropPct:       a.cfg.Alerts.DropPct,
					VelocitySpikeRatio: a.cfg.Alerts.VelocityRatio,
					HeatIndexHigh:      a.cfg.Alerts.HeatIndex,
					ListingFloodCount:  int64(a.cfg.Alerts.FloodPerSource24h),
				},
				Suppression: time.Duration(a.cfg.Alerts.SuppressionHours) * time.Hour,
			}, a.logger)
	}

	collector := pipeline.NewCollector(
		deps.Providers, a.cfg.Ingest.Areas, ingestor, aggregator, engine, a.logger,
	)

	staleAfter := time.Duration(a.cfg.Ingest.StaleAfterDays) * 24 * time.Hour
	reaper := ingest.NewReaper(deps.Listings, staleAfter, a.logger)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Ingest.RetentionDays, a.logger)
	}

	return pipeline.NewOrchestrator(
		collector, reaper, archiver,
		a.cfg.Ingest.Interval.Duration,
		a.cfg.Ingest.ReapInterval.Duration,
		a.cfg.Ingest.ArchiveCron,
		a.logger,
	)
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// given errgroup. triggerCh is optional; when non-nil, POST
// /api/ingest/trigger sends on it to request one collection cycle.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	triggerCh chan<- struct{},
) {
	analyticsSvc := service.NewAnalyticsService(
		deps.Listings, deps.History, deps.Metrics, deps.Alerts, deps.MetricCache, a.logger,
	)
	alertSvc := service.NewAlertService(deps.Alerts, a.logger)

	sources := make([]domain.Source, 0, len(a.cfg.Ingest.Sources))
	for _, src := range a.cfg.Ingest.Sources {
		sources = append(sources, domain.Source{
			ID:      src.Name,
			Name:    src.Name,
			FeedURL: src.FeedURL,
			Enabled: src.Enabled,
		})
	}

	ingestH := handler.NewIngestHandler(a.logger)
	if triggerCh != nil {
		ingestH = ingestH.WithTriggerChannel(triggerCh)
	}

	var archivesH *handler.ArchiveHandler
	if deps.BlobReader != nil {
		archivesH = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Analytics: handler.NewAnalyticsHandler(analyticsSvc, a.logger),
		Alerts:    handler.NewAlertHandler(alertSvc, a.logger),
		Sources:   handler.NewSourceHandler(sources, deps.Jobs, a.logger),
		Ingest:    ingestH,
		Archives:  archivesH,
	}

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		err := hub.Run(ctx)
		if err == nil || ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

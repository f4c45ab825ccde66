package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omaralj/propwatch/internal/ingest"
)

// Orchestrator manages all pipeline goroutines: the collection loop, the
// stale-listing reaper, and cold-storage archival.
type Orchestrator struct {
	collector       *Collector
	reaper          *ingest.Reaper
	archiver        *Archiver // nil disables archival
	collectInterval time.Duration
	reapInterval    time.Duration
	archiveCron     string
	triggerCh       chan struct{}
	logger          *slog.Logger
}

// NewOrchestrator creates a new Orchestrator that coordinates all pipeline
// sub-systems.
func NewOrchestrator(
	collector *Collector,
	reaper *ingest.Reaper,
	archiver *Archiver,
	collectInterval time.Duration,
	reapInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		collector:       collector,
		reaper:          reaper,
		archiver:        archiver,
		collectInterval: collectInterval,
		reapInterval:    reapInterval,
		archiveCron:     archiveCron,
		triggerCh:       make(chan struct{}, 1),
		logger:          logger,
	}
}

// TriggerCh returns the channel a handler sends on to run one collection
// cycle ahead of schedule.
func (o *Orchestrator) TriggerCh() chan<- struct{} {
	return o.triggerCh
}

// Run starts all sub-pipelines as concurrent goroutines using an errgroup.
// Each goroutine respects ctx cancellation. If any goroutine returns a
// non-context error, the errgroup cancels the shared context and Run returns
// that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("collect_interval", o.collectInterval),
		slog.Duration("reap_interval", o.reapInterval),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	// 1. Collection loop on ticker plus manual trigger.
	g.Go(func() error {
		o.logger.Info("starting collector loop")
		err := o.collector.RunLoop(ctx, o.collectInterval, o.triggerCh)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("collector: %w", err)
	})

	// 2. Stale-listing reaper on ticker.
	g.Go(func() error {
		o.logger.Info("starting reaper loop")
		err := o.runReaper(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("reaper: %w", err)
	})

	// 3. Archiver on cron schedule.
	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver cron")
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// runReaper marks stale listings REMOVED on a fixed interval. The first pass
// runs immediately so a long collect interval cannot delay staleness
// detection after a restart.
func (o *Orchestrator) runReaper(ctx context.Context) error {
	if _, err := o.reaper.Run(ctx, time.Now().UTC()); err != nil {
		o.logger.Error("reaper pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("reaper loop stopped")
			return ctx.Err()
		case <-ticker.C:
			removed, err := o.reaper.Run(ctx, time.Now().UTC())
			if err != nil {
				o.logger.Error("reaper pass failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				o.logger.Info("stale listings removed", slog.Int64("count", removed))
			}
		}
	}
}

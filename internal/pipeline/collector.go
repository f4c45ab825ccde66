package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omaralj/propwatch/internal/alerting"
	"github.com/omaralj/propwatch/internal/ingest"
	"github.com/omaralj/propwatch/internal/metrics"
	"github.com/omaralj/propwatch/internal/source"
)

// maxConcurrentFetches bounds how many provider/area fetches run at once so
// a long area list does not hammer every portal simultaneously.
const maxConcurrentFetches = 4

// Collector runs the full collection cycle: fetch every configured area from
// every provider, push the raw batches through the ingestor, recompute area
// metrics, and evaluate alert rules on the fresh snapshots.
type Collector struct {
	providers  []source.Provider
	areas      []string
	ingestor   *ingest.Ingestor
	aggregator *metrics.Aggregator
	engine     *alerting.Engine // nil disables alert evaluation
	logger     *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(
	providers []source.Provider,
	areas []string,
	ingestor *ingest.Ingestor,
	aggregator *metrics.Aggregator,
	engine *alerting.Engine,
	logger *slog.Logger,
) *Collector {
	return &Collector{
		providers:  providers,
		areas:      areas,
		ingestor:   ingestor,
		aggregator: aggregator,
		engine:     engine,
		logger:     logger,
	}
}

// RunCycle executes one full collection pass. Individual provider failures
// are logged and skipped so one flaky portal cannot starve the rest; the
// cycle only fails on context cancellation.
func (c *Collector) RunCycle(ctx context.Context) error {
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, provider := range c.providers {
		for _, area := range c.areas {
			provider, area := provider, area
			g.Go(func() error {
				if err := c.collectOne(gctx, provider, area); err != nil {
					// Only context errors abort the cycle.
					if gctx.Err() != nil {
						return gctx.Err()
					}
					c.logger.Error("collection failed",
						slog.String("source", provider.Name()),
						slog.String("area", area),
						slog.String("error", err.Error()),
					)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("pipeline: collection cycle: %w", err)
	}

	c.recompute(ctx)

	c.logger.Info("collection cycle complete",
		slog.Int("providers", len(c.providers)),
		slog.Int("areas", len(c.areas)),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

// RunLoop runs collection cycles on a fixed interval until the context is
// cancelled. A send on triggerCh runs one cycle ahead of schedule. The first
// cycle runs immediately on start.
func (c *Collector) RunLoop(ctx context.Context, interval time.Duration, triggerCh <-chan struct{}) error {
	if err := c.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("collection cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector loop stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-triggerCh:
			c.logger.Info("collection cycle triggered manually")
		}

		if err := c.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("collection cycle failed", slog.String("error", err.Error()))
		}
	}
}

// collectOne fetches one provider/area pair and submits the batch.
func (c *Collector) collectOne(ctx context.Context, provider source.Provider, area string) error {
	raws, err := provider.Fetch(ctx, area)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	result, err := c.ingestor.SubmitRaw(ctx, provider.Name(), area, raws)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	c.logger.Info("batch ingested",
		slog.String("source", provider.Name()),
		slog.String("area", area),
		slog.Int("found", result.Found),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("touched", result.Touched),
		slog.Int("rejected", result.Rejected),
	)
	return nil
}

// recompute refreshes metrics for every active area and runs the alert rules
// on each fresh snapshot. Failures are logged, never fatal: the next cycle
// recomputes from scratch anyway.
func (c *Collector) recompute(ctx context.Context) {
	snaps, err := c.aggregator.ComputeAll(ctx, time.Now().UTC())
	if err != nil {
		c.logger.Error("metric recompute failed", slog.String("error", err.Error()))
		return
	}

	if c.engine == nil {
		return
	}
	for _, snap := range snaps {
		alerts, err := c.engine.Evaluate(ctx, snap)
		if err != nil {
			c.logger.Error("alert evaluation failed",
				slog.String("area", snap.Area),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, a := range alerts {
			c.logger.Info("alert fired",
				slog.String("type", string(a.Type)),
				slog.String("severity", string(a.Severity)),
				slog.String("area", a.Area),
			)
		}
	}
}

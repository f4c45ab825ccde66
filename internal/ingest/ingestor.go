package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/normalize"
)

const defaultWorkers = 8

// ItemFailure records why a single raw item did not make it into the store.
type ItemFailure struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// Result tallies one ingested batch.
type Result struct {
	JobID     string        `json:"job_id"`
	SourceID  string        `json:"source_id"`
	Found     int           `json:"found"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Touched   int           `json:"touched"`
	Rejected  int           `json:"rejected"`
	Failures  []ItemFailure `json:"failures,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

// Ingestor normalizes raw batches and pushes each observation through the
// change detector on a bounded worker pool. Every batch is wrapped in a
// scrape job audit record.
type Ingestor struct {
	detector *Detector
	jobs     domain.ScrapeJobStore
	workers  int
	logger   *slog.Logger
}

func NewIngestor(detector *Detector, jobs domain.ScrapeJobStore, workers int, logger *slog.Logger) *Ingestor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Ingestor{
		detector: detector,
		jobs:     jobs,
		workers:  workers,
		logger:   logger.With("component", "ingestor"),
	}
}

// SubmitRaw ingests one raw batch from a source. Invalid items are
// rejected individually and never fail the batch; only persistence-level
// failures (context cancellation, database down) abort the run, and those
// mark the scrape job FAILED.
func (in *Ingestor) SubmitRaw(ctx context.Context, sourceID, area string, batch []domain.RawListing) (Result, error) {
	seenAt := time.Now().UTC()
	job := domain.ScrapeJob{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		Area:      area,
		Status:    domain.JobRunning,
		Found:     len(batch),
		StartedAt: seenAt,
	}
	if err := in.jobs.Start(ctx, job); err != nil {
		return Result{}, err
	}

	res := Result{JobID: job.ID, SourceID: sourceID, Found: len(batch), StartedAt: seenAt}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for _, raw := range batch {
		g.Go(func() error {
			l, err := normalize.Listing(raw, sourceID)
			if err != nil {
				if domain.IsValidation(err) {
					mu.Lock()
					res.Rejected++
					res.Failures = append(res.Failures, ItemFailure{ExternalID: raw.ExternalID, Reason: err.Error()})
					mu.Unlock()
					return nil
				}
				return err
			}

			outcome, err := in.detector.Observe(gctx, l, seenAt)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// Exhausted retries on one item: record and move on.
				mu.Lock()
				res.Rejected++
				res.Failures = append(res.Failures, ItemFailure{ExternalID: l.ExternalID, Reason: err.Error()})
				mu.Unlock()
				in.logger.Warn("observation failed", "external_id", l.ExternalID, "source_id", sourceID, "error", err)
				return nil
			}

			mu.Lock()
			switch outcome {
			case OutcomeInserted:
				res.Inserted++
			case OutcomeUpdated:
				res.Updated++
			case OutcomeTouched:
				res.Touched++
			}
			mu.Unlock()
			return nil
		})
	}

	runErr := g.Wait()

	completed := time.Now().UTC()
	job.CompletedAt = &completed
	job.New = res.Inserted
	job.Updated = res.Updated
	job.Unchanged = res.Touched
	job.Rejected = res.Rejected
	if runErr != nil {
		job.Status = domain.JobFailed
		job.Error = runErr.Error()
	} else {
		job.Status = domain.JobSuccess
	}
	if err := in.jobs.Finish(ctx, job); err != nil {
		in.logger.Error("finish scrape job", "job_id", job.ID, "error", err)
	}

	if runErr != nil {
		return res, runErr
	}

	in.logger.Info("batch ingested",
		"source_id", sourceID,
		"area", area,
		"found", res.Found,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"touched", res.Touched,
		"rejected", res.Rejected)
	return res, nil
}

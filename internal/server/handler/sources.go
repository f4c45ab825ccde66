package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/omaralj/propwatch/internal/domain"
)

// JobLister defines what the source handler needs to report collection runs.
type JobLister interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ScrapeJob, error)
}

// SourceHandler serves the configured portal sources and their collection
// run history.
type SourceHandler struct {
	sources []domain.Source
	jobs    JobLister
	logger  *slog.Logger
}

// NewSourceHandler creates a SourceHandler with the configured sources and
// job store.
func NewSourceHandler(sources []domain.Source, jobs JobLister, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{
		sources: sources,
		jobs:    jobs,
		logger:  logger,
	}
}

// ListSources returns the configured portal sources.
// GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": h.sources,
		"count":   len(h.sources),
	})
}

// ListScrapeJobs returns recent collection runs, newest first.
// GET /api/sources/scrape-jobs?limit=50&offset=0
func (h *SourceHandler) ListScrapeJobs(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	jobs, err := h.jobs.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list scrape jobs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list scrape jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

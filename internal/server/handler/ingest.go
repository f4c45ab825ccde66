package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// IngestHandler serves the manual collection trigger endpoint.
type IngestHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{} // when non-nil, sending triggers one collection cycle
}

// NewIngestHandler creates an IngestHandler with the given logger.
func NewIngestHandler(logger *slog.Logger) *IngestHandler {
	return &IngestHandler{logger: logger}
}

// WithTriggerChannel sets the channel to send on when a trigger is requested.
// The orchestrator loop must receive from this channel to run one cycle.
func (h *IngestHandler) WithTriggerChannel(ch chan<- struct{}) *IngestHandler {
	h.triggerCh = ch
	return h
}

// TriggerIngest enqueues one collection cycle. If a trigger channel is
// configured, a non-blocking send is performed so the orchestrator runs one
// cycle ahead of schedule.
// POST /api/ingest/trigger
func (h *IngestHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: ingest trigger requested")
	if h.triggerCh != nil {
		select {
		case h.triggerCh <- struct{}{}:
		default:
			// already triggered and not yet consumed
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      "collection cycle enqueued",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

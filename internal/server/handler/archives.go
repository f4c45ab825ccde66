package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/omaralj/propwatch/internal/domain"
)

// ArchiveHandler lists the JSONL archive files in object storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		reader: reader,
		logger: logger,
	}
}

// ListArchives returns the archive files, optionally narrowed by kind.
// GET /api/archives?kind=price_history
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "archival storage not configured")
		return
	}

	prefix := "archive/"
	if kind := r.URL.Query().Get("kind"); kind != "" {
		// Path segments only; reject traversal attempts.
		if strings.ContainsAny(kind, "/\\") {
			writeError(w, http.StatusBadRequest, "invalid kind parameter")
			return
		}
		prefix += kind + "/"
	}

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prefix":   prefix,
		"archives": infos,
		"count":    len(infos),
	})
}

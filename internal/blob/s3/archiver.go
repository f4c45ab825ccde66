package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// multipartThreshold is the serialized size above which the archiver
// switches to a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// ArchiveImpl implements domain.Archiver by querying the stores for aged
// rows, serializing them to JSONL, uploading the file to S3, and then
// pruning the archived rows from the primary store. The delete runs only
// after the upload succeeded, so a failed upload leaves the rows in place
// for the next cycle.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	jobs    domain.ScrapeJobStore
	history domain.PriceHistoryStore
	logger  *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	jobs domain.ScrapeJobStore,
	history domain.PriceHistoryStore,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		jobs:    jobs,
		history: history,
		logger:  logger.With("component", "archiver"),
	}
}

// ArchiveScrapeJobs moves collection run records started before the cutoff
// to archive/scrape_jobs/YYYY-MM.jsonl and prunes them from the database.
func (a *ArchiveImpl) ArchiveScrapeJobs(ctx context.Context, before time.Time) (int64, error) {
	jobs, err := a.jobs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive scrape jobs query: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	path := archivePath("scrape_jobs", before)
	if err := a.upload(ctx, path, jobs); err != nil {
		return 0, err
	}

	deleted, err := a.jobs.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune scrape jobs: %w", err)
	}

	a.logger.Info("scrape jobs archived", "path", path, "count", len(jobs), "pruned", deleted)
	return int64(len(jobs)), nil
}

// ArchivePriceHistory moves price changes recorded before the cutoff to
// archive/price_history/YYYY-MM.jsonl and prunes them from the database.
func (a *ArchiveImpl) ArchivePriceHistory(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.history.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	path := archivePath("price_history", before)
	if err := a.upload(ctx, path, entries); err != nil {
		return 0, err
	}

	deleted, err := a.history.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune price history: %w", err)
	}

	a.logger.Info("price history archived", "path", path, "count", len(entries), "pruned", deleted)
	return int64(len(entries)), nil
}

func (a *ArchiveImpl) upload(ctx context.Context, path string, records any) error {
	buf, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("s3blob: archive marshal %s: %w", path, err)
	}
	if len(buf) >= multipartThreshold {
		if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0); err != nil {
			return fmt.Errorf("s3blob: archive upload %s: %w", path, err)
		}
		return nil
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive upload %s: %w", path, err)
	}
	return nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/scrape_jobs/2026-07.jsonl
//	archive/price_history/2026-07.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes a slice as newline-delimited JSON.
func marshalJSONL(records any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	switch rs := records.(type) {
	case []domain.ScrapeJob:
		for i, r := range rs {
			if err := enc.Encode(r); err != nil {
				return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
			}
		}
	case []domain.PriceHistoryEntry:
		for i, r := range rs {
			if err := enc.Encode(r); err != nil {
				return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
			}
		}
	default:
		return nil, fmt.Errorf("jsonl: unsupported record type %T", records)
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

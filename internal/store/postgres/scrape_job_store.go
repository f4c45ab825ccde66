package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omaralj/propwatch/internal/domain"
)

// ScrapeJobStore implements domain.ScrapeJobStore using PostgreSQL.
type ScrapeJobStore struct {
	pool *pgxpool.Pool
}

// NewScrapeJobStore creates a new ScrapeJobStore backed by the given pool.
func NewScrapeJobStore(pool *pgxpool.Pool) *ScrapeJobStore {
	return &ScrapeJobStore{pool: pool}
}

const jobCols = `id, source_id, area, status, listings_found, listings_new,
	listings_updated, listings_unchanged, listings_rejected, error_message,
	started_at, completed_at`

func scanJob(row pgx.Row) (domain.ScrapeJob, error) {
	var j domain.ScrapeJob
	var status string
	err := row.Scan(
		&j.ID, &j.SourceID, &j.Area, &status, &j.Found, &j.New,
		&j.Updated, &j.Unchanged, &j.Rejected, &j.Error,
		&j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return domain.ScrapeJob{}, err
	}
	j.Status = domain.JobStatus(status)
	return j, nil
}

// Start records the beginning of a collection run.
func (s *ScrapeJobStore) Start(ctx context.Context, job domain.ScrapeJob) error {
	const query = `
		INSERT INTO scrape_jobs (
			id, source_id, area, status, listings_found, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		job.ID, job.SourceID, job.Area, string(job.Status), job.Found, job.StartedAt)
	if err != nil {
		return fmt.Errorf("postgres: start scrape job %s: %w", job.ID, err)
	}
	return nil
}

// Finish records the outcome and counters of a completed run.
func (s *ScrapeJobStore) Finish(ctx context.Context, job domain.ScrapeJob) error {
	const query = `
		UPDATE scrape_jobs SET
			status             = $2,
			listings_found     = $3,
			listings_new       = $4,
			listings_updated   = $5,
			listings_unchanged = $6,
			listings_rejected  = $7,
			error_message      = $8,
			completed_at       = $9
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Found, job.New,
		job.Updated, job.Unchanged, job.Rejected, job.Error, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: finish scrape job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves one job.
func (s *ScrapeJobStore) GetByID(ctx context.Context, id string) (domain.ScrapeJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobCols+` FROM scrape_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ScrapeJob{}, domain.ErrNotFound
		}
		return domain.ScrapeJob{}, fmt.Errorf("postgres: get scrape job %s: %w", id, err)
	}
	return j, nil
}

// ListRecent returns jobs newest first.
func (s *ScrapeJobStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ScrapeJob, error) {
	query := `SELECT ` + jobCols + ` FROM scrape_jobs ORDER BY started_at DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scrape jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScrapeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan scrape job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scrape jobs rows: %w", err)
	}
	return out, nil
}

// ListBefore returns jobs started before the given time, oldest first.
func (s *ScrapeJobStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ScrapeJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobCols+` FROM scrape_jobs WHERE started_at < $1 ORDER BY started_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scrape jobs before %s: %w", before, err)
	}
	defer rows.Close()

	var out []domain.ScrapeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan scrape job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scrape jobs before rows: %w", err)
	}
	return out, nil
}

// DeleteBefore removes jobs started before the given time.
func (s *ScrapeJobStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scrape_jobs WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete scrape jobs before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.ScrapeJobStore = (*ScrapeJobStore)(nil)

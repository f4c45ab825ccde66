package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omaralj/propwatch/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
// Rows are appended by ListingStore.UpdateObserved inside the listing
// update transaction; this store only reads and prunes.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

const historyCols = `id, listing_id, old_price, new_price, change_pct, recorded_at`

func scanHistory(rows pgx.Rows) ([]domain.PriceHistoryEntry, error) {
	var entries []domain.PriceHistoryEntry
	for rows.Next() {
		var e domain.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ListingID, &e.OldPrice, &e.NewPrice, &e.ChangePct, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan price history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: price history rows: %w", err)
	}
	return entries, nil
}

// ListByListing returns a listing's price changes, newest first.
func (s *PriceHistoryStore) ListByListing(ctx context.Context, listingID string, opts domain.ListOpts) ([]domain.PriceHistoryEntry, error) {
	query := `SELECT ` + historyCols + ` FROM price_history
		WHERE listing_id = $1 ORDER BY recorded_at DESC`
	args := []any{listingID}
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
		return nil, fmt.Errorf("postgres: list price history %s: %w", listingID, err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// AvgChangePctInArea averages change_pct over entries recorded since the
// given time for listings in the area. nil means no qualifying entries.
func (s *PriceHistoryStore) AvgChangePctInArea(ctx context.Context, area string, since time.Time) (*float64, error) {
	var avg *float64
	err := s.pool.QueryRow(ctx,
		`SELECT AVG(ph.change_pct)
		 FROM price_history ph
		 JOIN listings l ON l.id = ph.listing_id
		 WHERE l.area = $1 AND ph.recorded_at >= $2 AND ph.change_pct IS NOT NULL`,
		area, since).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("postgres: avg change pct %s: %w", area, err)
	}
	return avg, nil
}

// ListRecentInArea returns recent price changes within an area, newest first.
func (s *PriceHistoryStore) ListRecentInArea(ctx context.Context, area string, since time.Time, opts domain.ListOpts) ([]domain.PriceHistoryEntry, error) {
	query := `SELECT ph.id, ph.listing_id, ph.old_price, ph.new_price, ph.change_pct, ph.recorded_at
		FROM price_history ph
		JOIN listings l ON l.id = ph.listing_id
		WHERE l.area = $1 AND ph.recorded_at >= $2
		ORDER BY ph.recorded_at DESC`
	args := []any{area, since}
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
		return nil, fmt.Errorf("postgres: list recent price history %s: %w", area, err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// ListBefore returns entries recorded before the given time, oldest first.
// Used by the archiver to page aged rows out to cold storage.
func (s *PriceHistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PriceHistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyCols+` FROM price_history
		 WHERE recorded_at < $1 ORDER BY recorded_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price history before %s: %w", before, err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// DeleteBefore removes entries recorded before the given time.
func (s *PriceHistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM price_history WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete price history before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)

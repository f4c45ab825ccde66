package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omaralj/propwatch/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
//
// The write methods realize the compare-and-set contract at the SQL level:
// every UPDATE carries `content_hash = $expected` in its WHERE clause, so
// a row changed by a concurrent worker simply matches zero rows and the
// caller sees domain.ErrConflict.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

const listingCols = `id, external_id, source_id, title, area, unmapped, sub_area,
	property_type, price, price_per_sqft, bedrooms, bathrooms, size_sqft,
	url, status, content_hash, first_seen, last_seen, listed_at,
	created_at, updated_at`

// scanListing scans a single listing row into a domain.Listing.
func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	var status string
	err := row.Scan(
		&l.ID, &l.ExternalID, &l.SourceID, &l.Title, &l.Area, &l.Unmapped, &l.SubArea,
		&l.PropertyType, &l.Price, &l.PricePerSqft, &l.Bedrooms, &l.Bathrooms, &l.SizeSqft,
		&l.URL, &status, &l.ContentHash, &l.FirstSeen, &l.LastSeen, &l.ListedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Status = domain.ListingStatus(status)
	return l, nil
}

// GetByKey retrieves a listing by its (external_id, source_id) dedup key.
func (s *ListingStore) GetByKey(ctx context.Context, externalID, sourceID string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingCols+` FROM listings WHERE external_id = $1 AND source_id = $2`,
		externalID, sourceID)
	l, err := scanListing(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s/%s: %w", sourceID, externalID, err)
	}
	return l, nil
}

// GetByID retrieves a listing by its primary key.
func (s *ListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingCols+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s: %w", id, err)
	}
	return l, nil
}

// Insert creates a brand-new listing. The unique (external_id, source_id)
// constraint resolves concurrent first-insert races: the loser gets
// domain.ErrAlreadyExists and retries as an update.
func (s *ListingStore) Insert(ctx context.Context, l domain.Listing) error {
	const query = `
		INSERT INTO listings (
			id, external_id, source_id, title, area, unmapped, sub_area,
			property_type, price, price_per_sqft, bedrooms, bathrooms, size_sqft,
			url, status, content_hash, first_seen, last_seen, listed_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			NOW(), NOW()
		)
		ON CONFLICT (external_id, source_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		l.ID, l.ExternalID, l.SourceID, l.Title, l.Area, l.Unmapped, l.SubArea,
		l.PropertyType, l.Price, l.PricePerSqft, l.Bedrooms, l.Bathrooms, l.SizeSqft,
		l.URL, string(l.Status), l.ContentHash, l.FirstSeen, l.LastSeen, l.ListedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert listing %s/%s: %w", l.SourceID, l.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// Touch advances last_seen (never backwards) and reactivates the listing,
// guarded by the expected content hash.
func (s *ListingStore) Touch(ctx context.Context, externalID, sourceID, expectHash string, seenAt time.Time) error {
	const query = `
		UPDATE listings SET
			last_seen  = GREATEST(last_seen, $4),
			status     = 'ACTIVE',
			updated_at = NOW()
		WHERE external_id = $1 AND source_id = $2 AND content_hash = $3`

	tag, err := s.pool.Exec(ctx, query, externalID, sourceID, expectHash, seenAt)
	if err != nil {
		return fmt.Errorf("postgres: touch listing %s/%s: %w", sourceID, externalID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// UpdateObserved applies the observed fields, swaps the content hash and
// appends the optional price history entry, all in one transaction guarded
// by the expected content hash.
func (s *ListingStore) UpdateObserved(ctx context.Context, l domain.Listing, expectHash string, entry *domain.PriceHistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin update listing: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		UPDATE listings SET
			title          = $4,
			area           = $5,
			unmapped       = $6,
			sub_area       = $7,
			property_type  = $8,
			price          = $9,
			price_per_sqft = $10,
			bedrooms       = $11,
			bathrooms      = $12,
			size_sqft      = $13,
			url            = $14,
			listed_at      = $15,
			content_hash   = $16,
			last_seen      = GREATEST(last_seen, $17),
			status         = 'ACTIVE',
			updated_at     = NOW()
		WHERE external_id = $1 AND source_id = $2 AND content_hash = $3`

	tag, err := tx.Exec(ctx, query,
		l.ExternalID, l.SourceID, expectHash,
		l.Title, l.Area, l.Unmapped, l.SubArea, l.PropertyType,
		l.Price, l.PricePerSqft, l.Bedrooms, l.Bathrooms, l.SizeSqft,
		l.URL, l.ListedAt, l.ContentHash, l.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s/%s: %w", l.SourceID, l.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}

	if entry != nil {
		const insertEntry = `
			INSERT INTO price_history (id, listing_id, old_price, new_price, change_pct, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insertEntry,
			entry.ID, entry.ListingID, entry.OldPrice, entry.NewPrice, entry.ChangePct, entry.RecordedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert price history %s: %w", entry.ListingID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit update listing: %w", err)
	}
	return nil
}

// MarkStale flips ACTIVE listings unseen since cutoff to REMOVED.
func (s *ListingStore) MarkStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE listings SET status = 'REMOVED', updated_at = NOW()
		WHERE status = 'ACTIVE' AND last_seen < $1`
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: mark stale listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActiveByArea returns the active listings in one area.
func (s *ListingStore) ListActiveByArea(ctx context.Context, area string) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingCols+` FROM listings
		 WHERE area = $1 AND status = 'ACTIVE'
		 ORDER BY price`, area)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active listings %s: %w", area, err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active listings rows: %w", err)
	}
	return listings, nil
}

// DistinctActiveAreas returns every area with at least one active listing.
func (s *ListingStore) DistinctActiveAreas(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT area FROM listings WHERE status = 'ACTIVE' ORDER BY area`)
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct areas: %w", err)
	}
	defer rows.Close()

	var areas []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("postgres: scan area: %w", err)
		}
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: distinct areas rows: %w", err)
	}
	return areas, nil
}

// CountActive returns the total number of active listings.
func (s *ListingStore) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE status = 'ACTIVE'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count active listings: %w", err)
	}
	return count, nil
}

// CountNewInArea counts listings first seen in the area at or after since.
func (s *ListingStore) CountNewInArea(ctx context.Context, area string, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE area = $1 AND first_seen >= $2`,
		area, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count new listings %s: %w", area, err)
	}
	return count, nil
}

// CountNewBySource groups the new-listing count in an area by source.
func (s *ListingStore) CountNewBySource(ctx context.Context, area string, since time.Time) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, COUNT(*) FROM listings
		 WHERE area = $1 AND first_seen >= $2
		 GROUP BY source_id`, area, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: count new by source %s: %w", area, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var src string
		var n int64
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan source count: %w", err)
		}
		counts[src] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count new by source rows: %w", err)
	}
	return counts, nil
}

// SourceStats summarizes the active inventory of an area per source.
func (s *ListingStore) SourceStats(ctx context.Context, area string) ([]domain.SourceStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id,
		        COUNT(*),
		        AVG(price),
		        COUNT(*) FILTER (WHERE first_seen >= NOW() - INTERVAL '24 hours')
		 FROM listings
		 WHERE area = $1 AND status = 'ACTIVE'
		 GROUP BY source_id
		 ORDER BY source_id`, area)
	if err != nil {
		return nil, fmt.Errorf("postgres: source stats %s: %w", area, err)
	}
	defer rows.Close()

	var stats []domain.SourceStat
	for rows.Next() {
		var st domain.SourceStat
		if err := rows.Scan(&st.SourceID, &st.ActiveCount, &st.AvgPrice, &st.NewLast24h); err != nil {
			return nil, fmt.Errorf("postgres: scan source stat: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: source stats rows: %w", err)
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.ListingStore = (*ListingStore)(nil)

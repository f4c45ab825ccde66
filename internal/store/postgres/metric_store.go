package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omaralj/propwatch/internal/domain"
)

// MetricStore implements domain.MetricStore using PostgreSQL. Snapshots
// are insert-only.
type MetricStore struct {
	pool *pgxpool.Pool
}

// NewMetricStore creates a new MetricStore backed by the given connection pool.
func NewMetricStore(pool *pgxpool.Pool) *MetricStore {
	return &MetricStore{pool: pool}
}

const metricCols = `id, area, active_count, new_count_7d, new_count_30d,
	avg_price, median_price, min_price, max_price, stddev_price,
	avg_price_per_sqft, velocity_ratio, trend, price_change_14d_pct,
	price_change_30d_pct, heat_index, saturation, computed_at`

func scanMetric(row pgx.Row) (domain.MarketMetricSnapshot, error) {
	var m domain.MarketMetricSnapshot
	var trend *string
	err := row.Scan(
		&m.ID, &m.Area, &m.ActiveCount, &m.NewCount7d, &m.NewCount30d,
		&m.AvgPrice, &m.MedianPrice, &m.MinPrice, &m.MaxPrice, &m.StdDevPrice,
		&m.AvgPricePerSqft, &m.VelocityRatio, &trend, &m.PriceChange14dPct,
		&m.PriceChange30dPct, &m.HeatIndex, &m.Saturation, &m.ComputedAt,
	)
	if err != nil {
		return domain.MarketMetricSnapshot{}, err
	}
	if trend != nil {
		t := domain.TrendLabel(*trend)
		m.Trend = &t
	}
	return m, nil
}

// Insert persists one snapshot.
func (s *MetricStore) Insert(ctx context.Context, snap domain.MarketMetricSnapshot) error {
	const query = `
		INSERT INTO market_metrics (
			id, area, active_count, new_count_7d, new_count_30d,
			avg_price, median_price, min_price, max_price, stddev_price,
			avg_price_per_sqft, velocity_ratio, trend, price_change_14d_pct,
			price_change_30d_pct, heat_index, saturation, computed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18
		)`

	var trend *string
	if snap.Trend != nil {
		t := string(*snap.Trend)
		trend = &t
	}
	_, err := s.pool.Exec(ctx, query,
		snap.ID, snap.Area, snap.ActiveCount, snap.NewCount7d, snap.NewCount30d,
		snap.AvgPrice, snap.MedianPrice, snap.MinPrice, snap.MaxPrice, snap.StdDevPrice,
		snap.AvgPricePerSqft, snap.VelocityRatio, trend, snap.PriceChange14dPct,
		snap.PriceChange30dPct, snap.HeatIndex, snap.Saturation, snap.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert metric snapshot %s: %w", snap.Area, err)
	}
	return nil
}

// Latest returns the newest snapshot for an area.
func (s *MetricStore) Latest(ctx context.Context, area string) (domain.MarketMetricSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+metricCols+` FROM market_metrics
		 WHERE area = $1 ORDER BY computed_at DESC LIMIT 1`, area)
	m, err := scanMetric(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MarketMetricSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketMetricSnapshot{}, fmt.Errorf("postgres: latest metric %s: %w", area, err)
	}
	return m, nil
}

// LatestBefore returns the newest snapshot computed strictly before the
// given time.
func (s *MetricStore) LatestBefore(ctx context.Context, area string, before time.Time) (domain.MarketMetricSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+metricCols+` FROM market_metrics
		 WHERE area = $1 AND computed_at < $2
		 ORDER BY computed_at DESC LIMIT 1`, area, before)
	m, err := scanMetric(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MarketMetricSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketMetricSnapshot{}, fmt.Errorf("postgres: metric before %s: %w", area, err)
	}
	return m, nil
}

// SeriesSince returns an area's snapshots since the given time, oldest first.
func (s *MetricStore) SeriesSince(ctx context.Context, area string, since time.Time) ([]domain.MarketMetricSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+metricCols+` FROM market_metrics
		 WHERE area = $1 AND computed_at >= $2
		 ORDER BY computed_at`, area, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: metric series %s: %w", area, err)
	}
	defer rows.Close()

	var out []domain.MarketMetricSnapshot
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: metric series rows: %w", err)
	}
	return out, nil
}

// LatestPerArea returns the newest snapshot of every area.
func (s *MetricStore) LatestPerArea(ctx context.Context) ([]domain.MarketMetricSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (area) `+metricCols+` FROM market_metrics
		 ORDER BY area, computed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest metrics per area: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketMetricSnapshot
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: latest metrics rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.MetricStore = (*MetricStore)(nil)

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omaralj/propwatch/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

const alertCols = `id, alert_type, severity, area, title, description,
	metric_value, threshold_value, acknowledged, triggered_at,
	acknowledged_at, refreshed_at`

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	var typ, sev string
	err := row.Scan(
		&a.ID, &typ, &sev, &a.Area, &a.Title, &a.Description,
		&a.MetricValue, &a.ThresholdValue, &a.Acknowledged, &a.TriggeredAt,
		&a.AcknowledgedAt, &a.RefreshedAt,
	)
	if err != nil {
		return domain.Alert{}, err
	}
	a.Type = domain.AlertType(typ)
	a.Severity = domain.AlertSeverity(sev)
	return a, nil
}

// Insert persists a new alert.
func (s *AlertStore) Insert(ctx context.Context, a domain.Alert) error {
	const query = `
		INSERT INTO alerts (
			id, alert_type, severity, area, title, description,
			metric_value, threshold_value, acknowledged, triggered_at,
			acknowledged_at, refreshed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, string(a.Type), string(a.Severity), a.Area, a.Title, a.Description,
		a.MetricValue, a.ThresholdValue, a.Acknowledged, a.TriggeredAt,
		a.AcknowledgedAt, a.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert alert %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves an alert by its primary key.
func (s *AlertStore) GetByID(ctx context.Context, id string) (domain.Alert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Alert{}, domain.ErrNotFound
		}
		return domain.Alert{}, fmt.Errorf("postgres: get alert %s: %w", id, err)
	}
	return a, nil
}

// FindOpen returns the newest unacknowledged alert of the given type and
// area triggered at or after since.
func (s *AlertStore) FindOpen(ctx context.Context, typ domain.AlertType, area string, since time.Time) (domain.Alert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+alertCols+` FROM alerts
		 WHERE alert_type = $1 AND area = $2 AND NOT acknowledged AND triggered_at >= $3
		 ORDER BY triggered_at DESC LIMIT 1`,
		string(typ), area, since)
	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Alert{}, domain.ErrNotFound
		}
		return domain.Alert{}, fmt.Errorf("postgres: find open alert %s/%s: %w", typ, area, err)
	}
	return a, nil
}

// Refresh updates the observed value on a still-open alert.
func (s *AlertStore) Refresh(ctx context.Context, id string, metricValue float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET metric_value = $2, refreshed_at = $3 WHERE id = $1 AND NOT acknowledged`,
		id, metricValue, at)
	if err != nil {
		return fmt.Errorf("postgres: refresh alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Acknowledge marks an alert handled. Acknowledging twice is a no-op.
func (s *AlertStore) Acknowledge(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET acknowledged = TRUE, acknowledged_at = COALESCE(acknowledged_at, $2)
		 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: acknowledge alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns alerts matching the filter, newest first.
func (s *AlertStore) List(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	query := `SELECT ` + alertCols + ` FROM alerts WHERE TRUE`
	args := []any{}
	argIdx := 1

	if f.Area != "" {
		query += fmt.Sprintf(" AND area = $%d", argIdx)
		args = append(args, f.Area)
		argIdx++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND alert_type = $%d", argIdx)
		args = append(args, string(f.Type))
		argIdx++
	}
	if f.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, string(f.Severity))
		argIdx++
	}
	if f.Unacknowledged {
		query += " AND NOT acknowledged"
	}
	if !f.Since.IsZero() {
		query += fmt.Sprintf(" AND triggered_at >= $%d", argIdx)
		args = append(args, f.Since)
		argIdx++
	}

	query += " ORDER BY triggered_at DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alerts rows: %w", err)
	}
	return out, nil
}

// CountUnacknowledged returns how many alerts are still open.
func (s *AlertStore) CountUnacknowledged(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE NOT acknowledged`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count unacknowledged alerts: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)

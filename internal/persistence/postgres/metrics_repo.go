package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkpulse/parkpulse/internal/persistence"
)

// metricsRepo implements MetricsRepo for PostgreSQL
type metricsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMetricsRepo creates a new PostgreSQL storage metrics repository
func NewMetricsRepo(db *sqlx.DB, timeout time.Duration) persistence.MetricsRepo {
	return &metricsRepo{db: db, timeout: timeout}
}

// trackedTables are the warehouse tables sampled for growth monitoring.
var trackedTables = []string{
	"park_activity_snapshots",
	"ride_status_snapshots",
	"ride_hourly_stats",
	"park_hourly_stats",
	"ride_daily_stats",
	"park_daily_stats",
	"ride_weekly_stats",
	"park_weekly_stats",
	"data_quality_logs",
}

// Sample reads current per-table sizes from the pg catalog. Row counts use
// reltuples estimates; exact counts over partitioned snapshot tables would
// scan every partition.
func (r *metricsRepo) Sample(ctx context.Context) ([]persistence.StorageMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	out := make([]persistence.StorageMetrics, 0, len(trackedTables))

	for _, table := range trackedTables {
		var m persistence.StorageMetrics
		query := `
			SELECT COALESCE(SUM(c.reltuples), 0)::BIGINT AS row_count,
			       COALESCE(SUM(pg_table_size(c.oid)), 0)::BIGINT AS data_bytes,
			       COALESCE(SUM(pg_indexes_size(c.oid)), 0)::BIGINT AS index_bytes
			FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = 'public' AND (c.relname = $1 OR c.relname LIKE $1 || '_y%')`
		if err := r.db.QueryRowxContext(ctx, query, table).Scan(&m.RowCount, &m.DataBytes, &m.IndexBytes); err != nil {
			return nil, fmt.Errorf("failed to sample table %s: %w", table, err)
		}
		m.TableName = table
		m.SampledAt = now
		out = append(out, m)
	}

	return out, nil
}

// Insert persists metric samples and derives growth_per_day against the
// previous sample of each table.
func (r *metricsRepo) Insert(ctx context.Context, rows []persistence.StorageMetrics) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		var prevCount int64
		var prevAt time.Time
		err := tx.QueryRowxContext(ctx, `
			SELECT row_count, sampled_at FROM storage_metrics
			WHERE table_name = $1 ORDER BY sampled_at DESC LIMIT 1`, row.TableName).
			Scan(&prevCount, &prevAt)
		if err == nil {
			if days := row.SampledAt.Sub(prevAt).Hours() / 24; days > 0 {
				row.GrowthPerDay = float64(row.RowCount-prevCount) / days
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO storage_metrics (table_name, row_count, data_bytes, index_bytes, growth_per_day, sampled_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (table_name, sampled_at) DO NOTHING`,
			row.TableName, row.RowCount, row.DataBytes, row.IndexBytes, row.GrowthPerDay, row.SampledAt)
		if err != nil {
			return fmt.Errorf("failed to insert storage metrics: %w", err)
		}
	}

	return tx.Commit()
}

// Latest returns the newest sample per table
func (r *metricsRepo) Latest(ctx context.Context) ([]persistence.StorageMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.StorageMetrics
	query := `
		SELECT DISTINCT ON (table_name)
		       table_name, row_count, data_bytes, index_bytes, growth_per_day, sampled_at
		FROM storage_metrics
		ORDER BY table_name, sampled_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list latest storage metrics: %w", err)
	}

	return rows, nil
}

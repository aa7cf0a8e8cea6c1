package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// aggLogRepo implements AggLogRepo for PostgreSQL
type aggLogRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAggLogRepo creates a new PostgreSQL aggregation log repository
func NewAggLogRepo(db *sqlx.DB, timeout time.Duration) persistence.AggLogRepo {
	return &aggLogRepo{db: db, timeout: timeout}
}

// Get returns the most recent log row for (date, level), nil if none
func (r *aggLogRepo) Get(ctx context.Context, date time.Time, level model.AggregationLevel) (*persistence.AggregationLog, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row persistence.AggregationLog
	query := `
		SELECT id, aggregation_date, aggregation_type, status, entities_updated, error, started_at, finished_at
		FROM aggregation_logs
		WHERE aggregation_date = $1 AND aggregation_type = $2
		ORDER BY started_at DESC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, date, level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get aggregation log: %w", err)
	}

	return &row, nil
}

// Start writes a running row and returns its ID
func (r *aggLogRepo) Start(ctx context.Context, date time.Time, level model.AggregationLevel) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	query := `
		INSERT INTO aggregation_logs (aggregation_date, aggregation_type, status)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, date, level, model.AggRunning).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to start aggregation log: %w", err)
	}

	return id, nil
}

// Finish marks a run successful with its entity count
func (r *aggLogRepo) Finish(ctx context.Context, id int64, entities int) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE aggregation_logs
		SET status = $2, entities_updated = $3, finished_at = now()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, model.AggSuccess, entities); err != nil {
		return fmt.Errorf("failed to finish aggregation log: %w", err)
	}

	return nil
}

// Fail marks a run failed with the error message
func (r *aggLogRepo) Fail(ctx context.Context, id int64, cause string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE aggregation_logs
		SET status = $2, error = $3, finished_at = now()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, model.AggFailed, cause); err != nil {
		return fmt.Errorf("failed to fail aggregation log: %w", err)
	}

	return nil
}

// HasSuccess reports whether the cleanup barrier holds for a date
func (r *aggLogRepo) HasSuccess(ctx context.Context, date time.Time, level model.AggregationLevel) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `
		SELECT COUNT(*)
		FROM aggregation_logs
		WHERE aggregation_date = $1 AND aggregation_type = $2 AND status = $3`
	if err := r.db.QueryRowxContext(ctx, query, date, level, model.AggSuccess).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check aggregation barrier: %w", err)
	}

	return count > 0, nil
}

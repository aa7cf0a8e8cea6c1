package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// qualityRepo implements QualityRepo for PostgreSQL
type qualityRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewQualityRepo creates a new PostgreSQL data quality repository
func NewQualityRepo(db *sqlx.DB, timeout time.Duration) persistence.QualityRepo {
	return &qualityRepo{db: db, timeout: timeout}
}

// Insert appends one quality log entry
func (r *qualityRepo) Insert(ctx context.Context, entry persistence.DataQualityLog) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO data_quality_logs (import_id, issue_type, entity_type, external_id, description)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ImportID, entry.IssueType, entry.EntityType, entry.ExternalID, entry.Description); err != nil {
		return fmt.Errorf("failed to insert quality log: %w", err)
	}

	return nil
}

// ListByImport returns quality entries for one import newest-first
func (r *qualityRepo) ListByImport(ctx context.Context, importID int64, limit int) ([]persistence.DataQualityLog, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var entries []persistence.DataQualityLog
	query := `
		SELECT id, import_id, issue_type, entity_type, external_id, description, created_at
		FROM data_quality_logs
		WHERE import_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &entries, query, importID, limit); err != nil {
		return nil, fmt.Errorf("failed to list quality logs: %w", err)
	}

	return entries, nil
}

// CountByType returns issue counts grouped by type in a time window
func (r *qualityRepo) CountByType(ctx context.Context, tr persistence.TimeRange) (map[model.QualityIssueType]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT issue_type, COUNT(*)
		FROM data_quality_logs
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY issue_type`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to count quality logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.QualityIssueType]int64)
	for rows.Next() {
		var issueType model.QualityIssueType
		var count int64
		if err := rows.Scan(&issueType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan quality count: %w", err)
		}
		counts[issueType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

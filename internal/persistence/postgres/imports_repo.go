package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// ErrIllegalTransition is returned when a checkpoint status update would
// violate the import state machine.
var ErrIllegalTransition = errors.New("illegal import status transition")

// importsRepo implements ImportsRepo for PostgreSQL
type importsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewImportsRepo creates a new PostgreSQL imports repository
func NewImportsRepo(db *sqlx.DB, timeout time.Duration) persistence.ImportsRepo {
	return &importsRepo{db: db, timeout: timeout}
}

const checkpointColumns = `id, destination_uuid, status, last_processed_date, last_processed_file, records_imported, errors_encountered, resumable, created_at, updated_at`

// Create inserts a new checkpoint in PENDING state
func (r *importsRepo) Create(ctx context.Context, cp persistence.ImportCheckpoint) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if cp.Status == "" {
		cp.Status = model.ImportPending
	}

	query := `
		INSERT INTO import_checkpoints (destination_uuid, status, resumable)
		VALUES ($1, $2, $3)
		RETURNING id`

	var id int64
	err := r.db.QueryRowxContext(ctx, query, cp.DestinationUUID, cp.Status, cp.Resumable).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("import already exists for destination %s: %w", cp.DestinationUUID, err)
		}
		return 0, fmt.Errorf("failed to create import checkpoint: %w", err)
	}

	return id, nil
}

// GetByID retrieves a checkpoint by ID
func (r *importsRepo) GetByID(ctx context.Context, id int64) (*persistence.ImportCheckpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cp persistence.ImportCheckpoint
	query := `SELECT ` + checkpointColumns + ` FROM import_checkpoints WHERE id = $1`
	if err := r.db.GetContext(ctx, &cp, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get import checkpoint: %w", err)
	}

	return &cp, nil
}

// GetByDestination retrieves a checkpoint by destination UUID
func (r *importsRepo) GetByDestination(ctx context.Context, destUUID string) (*persistence.ImportCheckpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cp persistence.ImportCheckpoint
	query := `SELECT ` + checkpointColumns + ` FROM import_checkpoints WHERE destination_uuid = $1`
	if err := r.db.GetContext(ctx, &cp, query, destUUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get import checkpoint by destination: %w", err)
	}

	return &cp, nil
}

// List returns recent checkpoints newest-first
func (r *importsRepo) List(ctx context.Context, limit int) ([]persistence.ImportCheckpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cps []persistence.ImportCheckpoint
	query := `SELECT ` + checkpointColumns + ` FROM import_checkpoints ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &cps, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list import checkpoints: %w", err)
	}

	return cps, nil
}

// UpdateStatus moves a checkpoint through the state machine. The current
// status is read and validated inside the same transaction so concurrent
// admin actions cannot race an illegal transition through.
func (r *importsRepo) UpdateStatus(ctx context.Context, id int64, to model.ImportStatus) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current model.ImportStatus
	if err := tx.GetContext(ctx, &current, `SELECT status FROM import_checkpoints WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("import checkpoint %d not found", id)
		}
		return fmt.Errorf("failed to read import status: %w", err)
	}

	if !model.CanTransition(current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, to)
	}

	resumable := to != model.ImportCancelled && to != model.ImportCompleted
	_, err = tx.ExecContext(ctx,
		`UPDATE import_checkpoints SET status = $2, resumable = $3, updated_at = now() WHERE id = $1`,
		id, to, resumable)
	if err != nil {
		return fmt.Errorf("failed to update import status: %w", err)
	}

	return tx.Commit()
}

// SaveProgress atomically persists resume state and counters
func (r *importsRepo) SaveProgress(ctx context.Context, id int64, lastDate time.Time, lastFile string, imported, errCount int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE import_checkpoints
		SET last_processed_date = $2,
		    last_processed_file = $3,
		    records_imported = $4,
		    errors_encountered = $5,
		    updated_at = now()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lastDate, lastFile, imported, errCount); err != nil {
		return fmt.Errorf("failed to save import progress: %w", err)
	}

	return nil
}

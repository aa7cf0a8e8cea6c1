package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parkpulse/parkpulse/internal/persistence"
)

// ridesRepo implements RidesRepo for PostgreSQL
type ridesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRidesRepo creates a new PostgreSQL rides repository
func NewRidesRepo(db *sqlx.DB, timeout time.Duration) persistence.RidesRepo {
	return &ridesRepo{db: db, timeout: timeout}
}

const rideColumns = `id, external_id, park_id, name, category, tier, last_operated_at, active, created_at`

// Create inserts a new ride and returns the internal ID
func (r *ridesRepo) Create(ctx context.Context, ride persistence.Ride) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO rides (external_id, park_id, name, category, tier, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		ride.ExternalID, ride.ParkID, ride.Name, ride.Category, ride.Tier, ride.Active).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("duplicate ride external id %s: %w", ride.ExternalID, err)
		}
		return 0, fmt.Errorf("failed to create ride: %w", err)
	}

	return id, nil
}

// GetByID retrieves a ride by internal ID
func (r *ridesRepo) GetByID(ctx context.Context, id int64) (*persistence.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ride persistence.Ride
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	if err := r.db.GetContext(ctx, &ride, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride by id: %w", err)
	}

	return &ride, nil
}

// GetByExternalID retrieves a ride by upstream external ID
func (r *ridesRepo) GetByExternalID(ctx context.Context, externalID string) (*persistence.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ride persistence.Ride
	query := `SELECT ` + rideColumns + ` FROM rides WHERE external_id = $1`
	if err := r.db.GetContext(ctx, &ride, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride by external id: %w", err)
	}

	return &ride, nil
}

// ListByPark returns all rides of a park
func (r *ridesRepo) ListByPark(ctx context.Context, parkID int64) ([]persistence.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rides []persistence.Ride
	query := `SELECT ` + rideColumns + ` FROM rides WHERE park_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &rides, query, parkID); err != nil {
		return nil, fmt.Errorf("failed to list rides by park: %w", err)
	}

	return rides, nil
}

// TouchLastOperated bumps last_operated_at for dormancy tracking
func (r *ridesRepo) TouchLastOperated(ctx context.Context, rideID int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `UPDATE rides SET last_operated_at = $2 WHERE id = $1 AND (last_operated_at IS NULL OR last_operated_at < $2)`
	if _, err := r.db.ExecContext(ctx, query, rideID, at); err != nil {
		return fmt.Errorf("failed to touch last_operated_at: %w", err)
	}

	return nil
}

// UpsertClassification writes the classification row and the denormalized
// ride tier in one transaction so the two never diverge.
func (r *ridesRepo) UpsertClassification(ctx context.Context, c persistence.RideClassification) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ride_classifications (ride_id, tier, tier_weight, method, confidence, reasoning, sources, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (ride_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			tier_weight = EXCLUDED.tier_weight,
			method = EXCLUDED.method,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			sources = EXCLUDED.sources,
			updated_at = now()`,
		c.RideID, c.Tier, c.TierWeight, c.Method, c.Confidence, c.Reasoning, c.Sources)
	if err != nil {
		return fmt.Errorf("failed to upsert classification: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rides SET tier = $2 WHERE id = $1`, c.RideID, c.Tier); err != nil {
		return fmt.Errorf("failed to update ride tier: %w", err)
	}

	return tx.Commit()
}

// GetClassification retrieves the canonical classification for a ride
func (r *ridesRepo) GetClassification(ctx context.Context, rideID int64) (*persistence.RideClassification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var c persistence.RideClassification
	query := `
		SELECT ride_id, tier, tier_weight, method, confidence, reasoning, sources, updated_at
		FROM ride_classifications
		WHERE ride_id = $1`
	if err := r.db.GetContext(ctx, &c, query, rideID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}

	return &c, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkpulse/parkpulse/internal/persistence"
)

// parksRepo implements ParksRepo for PostgreSQL
type parksRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewParksRepo creates a new PostgreSQL parks repository
func NewParksRepo(db *sqlx.DB, timeout time.Duration) persistence.ParksRepo {
	return &parksRepo{db: db, timeout: timeout}
}

const parkColumns = `id, external_id, name, country, latitude, longitude, timezone, is_disney, is_universal, active, created_at`

// Upsert inserts or updates a park keyed by external ID
func (r *parksRepo) Upsert(ctx context.Context, park persistence.Park) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO parks (external_id, name, country, latitude, longitude, timezone, is_disney, is_universal, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			timezone = EXCLUDED.timezone,
			is_disney = EXCLUDED.is_disney,
			is_universal = EXCLUDED.is_universal,
			active = EXCLUDED.active
		RETURNING id`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		park.ExternalID, park.Name, park.Country, park.Latitude, park.Longitude,
		park.Timezone, park.IsDisney, park.IsUniversal, park.Active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert park %s: %w", park.ExternalID, err)
	}

	return id, nil
}

// GetByID retrieves a park by internal ID
func (r *parksRepo) GetByID(ctx context.Context, id int64) (*persistence.Park, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var park persistence.Park
	query := `SELECT ` + parkColumns + ` FROM parks WHERE id = $1`
	if err := r.db.GetContext(ctx, &park, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get park by id: %w", err)
	}

	return &park, nil
}

// GetByExternalID retrieves a park by upstream external ID
func (r *parksRepo) GetByExternalID(ctx context.Context, externalID string) (*persistence.Park, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var park persistence.Park
	query := `SELECT ` + parkColumns + ` FROM parks WHERE external_id = $1`
	if err := r.db.GetContext(ctx, &park, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get park by external id: %w", err)
	}

	return &park, nil
}

// ListActive returns all parks currently tracked by the collector
func (r *parksRepo) ListActive(ctx context.Context) ([]persistence.Park, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var parks []persistence.Park
	query := `SELECT ` + parkColumns + ` FROM parks WHERE active = TRUE ORDER BY name`
	if err := r.db.SelectContext(ctx, &parks, query); err != nil {
		return nil, fmt.Errorf("failed to list active parks: %w", err)
	}

	return parks, nil
}

// ListByCountry returns active parks in one country
func (r *parksRepo) ListByCountry(ctx context.Context, country string) ([]persistence.Park, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var parks []persistence.Park
	query := `SELECT ` + parkColumns + ` FROM parks WHERE active = TRUE AND country = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &parks, query, country); err != nil {
		return nil, fmt.Errorf("failed to list parks by country: %w", err)
	}

	return parks, nil
}

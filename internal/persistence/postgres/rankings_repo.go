package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// rankingsRepo implements RankingsRepo for PostgreSQL. The served tables
// are only ever replaced wholesale via the staging swap; no in-place
// updates touch them.
type rankingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRankingsRepo creates a new PostgreSQL rankings repository
func NewRankingsRepo(db *sqlx.DB, timeout time.Duration) persistence.RankingsRepo {
	return &rankingsRepo{db: db, timeout: timeout}
}

// TruncateStaging clears both staging tables before a rebuild
func (r *rankingsRepo) TruncateStaging(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `TRUNCATE park_live_rankings_staging, ride_live_rankings_staging`); err != nil {
		return fmt.Errorf("failed to truncate rankings staging: %w", err)
	}
	return nil
}

// InsertParkStaging bulk-inserts park rows into staging
func (r *rankingsRepo) InsertParkStaging(ctx context.Context, rows []persistence.ParkLiveRanking) error {
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO park_live_rankings_staging
			(park_id, park_name, is_disney, is_universal, shame_score, rides_tracked, rides_open,
			 rides_down, avg_wait_time, max_wait_time, park_appears_open, today_downtime_hours, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.ParkID, row.ParkName, row.IsDisney, row.IsUniversal, row.ShameScore,
			row.RidesTracked, row.RidesOpen, row.RidesDown, row.AvgWaitTime, row.MaxWaitTime,
			row.ParkAppearsOpen, row.TodayDowntimeHours, row.RecordedAt)
		if err != nil {
			return fmt.Errorf("failed to insert park ranking row: %w", err)
		}
	}

	return tx.Commit()
}

// InsertRideStaging bulk-inserts ride rows into staging
func (r *rankingsRepo) InsertRideStaging(ctx context.Context, rows []persistence.RideLiveRanking) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ride_live_rankings_staging
			(ride_id, ride_name, park_id, park_name, tier, tier_weight, current_status, current_is_open,
			 currently_down, wait_time, park_is_open, today_downtime_hours, today_avg_wait, today_peak_wait, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.RideID, row.RideName, row.ParkID, row.ParkName, row.Tier, row.TierWeight,
			row.CurrentStatus, row.CurrentIsOpen, row.CurrentlyDown, row.WaitTime, row.ParkIsOpen,
			row.TodayDowntimeHours, row.TodayAvgWait, row.TodayPeakWait, row.RecordedAt)
		if err != nil {
			return fmt.Errorf("failed to insert ride ranking row: %w", err)
		}
	}

	return tx.Commit()
}

// SwapStaging rotates staging into the served position for both rankings
// tables. The six renames run in one transaction; Postgres takes an
// ACCESS EXCLUSIVE lock per rename so readers see either the old or the
// new generation, never an empty or partial table.
func (r *rankingsRepo) SwapStaging(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pair := range []struct{ live, staging string }{
		{"park_live_rankings", "park_live_rankings_staging"},
		{"ride_live_rankings", "ride_live_rankings_staging"},
	} {
		stmts := []string{
			fmt.Sprintf(`ALTER TABLE %s RENAME TO %s_old`, pair.live, pair.live),
			fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, pair.staging, pair.live),
			fmt.Sprintf(`ALTER TABLE %s_old RENAME TO %s`, pair.live, pair.staging),
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to swap rankings tables: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListParkRankings returns the served park rankings worst-first
func (r *rankingsRepo) ListParkRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]persistence.ParkLiveRanking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT park_id, park_name, is_disney, is_universal, shame_score, rides_tracked, rides_open,
		       rides_down, avg_wait_time, max_wait_time, park_appears_open, today_downtime_hours, recorded_at
		FROM park_live_rankings`
	if filter == model.FilterDisneyUniversal {
		query += ` WHERE (is_disney OR is_universal)`
	}
	query += ` ORDER BY shame_score DESC NULLS LAST, park_name LIMIT $1`

	var rows []persistence.ParkLiveRanking
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list park rankings: %w", err)
	}

	return rows, nil
}

// ListRideRankings returns the served ride rankings worst-first
func (r *rankingsRepo) ListRideRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]persistence.RideLiveRanking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT rr.ride_id, rr.ride_name, rr.park_id, rr.park_name, rr.tier, rr.tier_weight,
		       rr.current_status, rr.current_is_open, rr.currently_down, rr.wait_time, rr.park_is_open,
		       rr.today_downtime_hours, rr.today_avg_wait, rr.today_peak_wait, rr.recorded_at
		FROM ride_live_rankings rr`
	if filter == model.FilterDisneyUniversal {
		query += ` JOIN parks p ON p.id = rr.park_id AND (p.is_disney OR p.is_universal)`
	}
	query += ` ORDER BY rr.today_downtime_hours DESC, rr.ride_name LIMIT $1`

	var rows []persistence.RideLiveRanking
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list ride rankings: %w", err)
	}

	return rows, nil
}

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

// statsRepo implements StatsRepo for PostgreSQL. Every write is an UPSERT
// keyed by (entity, period key) so aggregation reruns are idempotent.
type statsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStatsRepo creates a new PostgreSQL stats repository
func NewStatsRepo(db *sqlx.DB, timeout time.Duration) persistence.StatsRepo {
	return &statsRepo{db: db, timeout: timeout}
}

func (r *statsRepo) batchTimeout(n int) time.Duration {
	return r.timeout * time.Duration(n/500+1)
}

// UpsertRideHourly upserts ride hourly aggregates
func (r *statsRepo) UpsertRideHourly(ctx context.Context, rows []persistence.RideHourlyStats) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout(len(rows)))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ride_hourly_stats
			(ride_id, park_id, hour_start_utc, operating_snapshots, down_snapshots, snapshot_count,
			 downtime_hours, weighted_downtime_hours, effective_weight, uptime_pct, avg_wait_time, ride_operated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ride_id, hour_start_utc) DO UPDATE SET
			operating_snapshots = EXCLUDED.operating_snapshots,
			down_snapshots = EXCLUDED.down_snapshots,
			snapshot_count = EXCLUDED.snapshot_count,
			downtime_hours = EXCLUDED.downtime_hours,
			weighted_downtime_hours = EXCLUDED.weighted_downtime_hours,
			effective_weight = EXCLUDED.effective_weight,
			uptime_pct = EXCLUDED.uptime_pct,
			avg_wait_time = EXCLUDED.avg_wait_time,
			ride_operated = EXCLUDED.ride_operated`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.RideID, row.ParkID, row.HourStartUTC, row.OperatingSnapshots, row.DownSnapshots,
			row.SnapshotCount, row.DowntimeHours, row.WeightedDowntimeHours, row.EffectiveWeight,
			row.UptimePct, row.AvgWaitTime, row.RideOperated)
		if err != nil {
			return fmt.Errorf("failed to upsert ride hourly stats: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertParkHourly upserts park hourly aggregates
func (r *statsRepo) UpsertParkHourly(ctx context.Context, rows []persistence.ParkHourlyStats) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout(len(rows)))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO park_hourly_stats
			(park_id, hour_start_utc, avg_shame_score, avg_wait_time, max_wait_time,
			 rides_down, total_downtime_hours, park_was_open, snapshot_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (park_id, hour_start_utc) DO UPDATE SET
			avg_shame_score = EXCLUDED.avg_shame_score,
			avg_wait_time = EXCLUDED.avg_wait_time,
			max_wait_time = EXCLUDED.max_wait_time,
			rides_down = EXCLUDED.rides_down,
			total_downtime_hours = EXCLUDED.total_downtime_hours,
			park_was_open = EXCLUDED.park_was_open,
			snapshot_count = EXCLUDED.snapshot_count`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.ParkID, row.HourStartUTC, row.AvgShameScore, row.AvgWaitTime, row.MaxWaitTime,
			row.RidesDown, row.TotalDowntimeHours, row.ParkWasOpen, row.SnapshotCount)
		if err != nil {
			return fmt.Errorf("failed to upsert park hourly stats: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertRideDaily upserts ride daily aggregates
func (r *statsRepo) UpsertRideDaily(ctx context.Context, rows []persistence.RideDailyStats) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout(len(rows)))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ride_daily_stats
			(ride_id, park_id, stat_date, uptime_minutes, downtime_minutes, operating_hours_minutes,
			 avg_wait_time, min_wait_time, max_wait_time, peak_wait_time, status_changes,
			 longest_downtime_minutes, snapshot_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ride_id, stat_date) DO UPDATE SET
			uptime_minutes = EXCLUDED.uptime_minutes,
			downtime_minutes = EXCLUDED.downtime_minutes,
			operating_hours_minutes = EXCLUDED.operating_hours_minutes,
			avg_wait_time = EXCLUDED.avg_wait_time,
			min_wait_time = EXCLUDED.min_wait_time,
			max_wait_time = EXCLUDED.max_wait_time,
			peak_wait_time = EXCLUDED.peak_wait_time,
			status_changes = EXCLUDED.status_changes,
			longest_downtime_minutes = EXCLUDED.longest_downtime_minutes,
			snapshot_count = EXCLUDED.snapshot_count`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.RideID, row.ParkID, row.StatDate, row.UptimeMinutes, row.DowntimeMinutes,
			row.OperatingHoursMinutes, row.AvgWaitTime, row.MinWaitTime, row.MaxWaitTime,
			row.PeakWaitTime, row.StatusChanges, row.LongestDowntimeMinutes, row.SnapshotCount)
		if err != nil {
			return fmt.Errorf("failed to upsert ride daily stats: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertParkDaily upserts park daily aggregates
func (r *statsRepo) UpsertParkDaily(ctx context.Context, rows []persistence.ParkDailyStats) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout(len(rows)))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO park_daily_stats
			(park_id, stat_date, avg_shame_score, total_downtime_hours, rides_down,
			 avg_wait_time, peak_wait_time, park_was_open, snapshot_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (park_id, stat_date) DO UPDATE SET
			avg_shame_score = EXCLUDED.avg_shame_score,
			total_downtime_hours = EXCLUDED.total_downtime_hours,
			rides_down = EXCLUDED.rides_down,
			avg_wait_time = EXCLUDED.avg_wait_time,
			peak_wait_time = EXCLUDED.peak_wait_time,
			park_was_open = EXCLUDED.park_was_open,
			snapshot_count = EXCLUDED.snapshot_count`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.ParkID, row.StatDate, row.AvgShameScore, row.TotalDowntimeHours, row.RidesDown,
			row.AvgWaitTime, row.PeakWaitTime, row.ParkWasOpen, row.SnapshotCount)
		if err != nil {
			return fmt.Errorf("failed to upsert park daily stats: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertRideWeekly upserts ride weekly aggregates
func (r *statsRepo) UpsertRideWeekly(ctx context.Context, rows []persistence.RideWeeklyStats) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout(len(rows)))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ride_weekly_stats
			(ride_id, park_id, iso_year, iso_week, week_start_date, uptime_minutes, downtime_minutes,
			 operating_hours_minutes, uptime_percentage, avg_wait_time, peak_wait_time, status_changes,
			 trend_vs_previous_week, days_with_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (ride_id, iso_year, iso_week) DO UPDATE SET
			week_start_date = EXCLUDED.week_start_date,
			uptime_minutes = EXCLUDED.uptime_minutes,
			downtime_minutes = EXCLUDED.downtime_minutes,
			operating_hours_minutes = EXCLUDED.operating_hours_minutes,
			uptime_percentage = EXCLUDED.uptime_percentage,
			avg_wait_time = EXCLUDED.avg_wait_time,
			peak_wait_time = EXCLUDED.peak_wait_time,
			status_changes = EXCLUDED.status_changes,
			trend_vs_previous_week = EXCLUDED.trend_vs_previous_week,
			days_with_data = EXCLUDED.days_with_data`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.RideID, row.ParkID, row.ISOYear, row.ISOWeek, row.WeekStartDate,
			row.UptimeMinutes, row.DowntimeMinutes, row.OperatingHoursMinutes, row.UptimePercentage,
			row.AvgWaitTime, row.PeakWaitTime, row.StatusChanges, row.TrendVsPreviousWeek, row.DaysWithData)
		if err != nil {
			return fmt.Errorf("failed to upsert ride weekly stats: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertParkWeekly upserts park weekly aggregates
func (r *statsRepo) UpsertParkWeekly(ctx context.Context, rows []persistence.ParkWeeklyStats) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout(len(rows)))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO park_weekly_stats
			(park_id, iso_year, iso_week, week_start_date, avg_shame_score, total_downtime_hours,
			 avg_wait_time, peak_wait_time, trend_vs_previous_week, days_with_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (park_id, iso_year, iso_week) DO UPDATE SET
			week_start_date = EXCLUDED.week_start_date,
			avg_shame_score = EXCLUDED.avg_shame_score,
			total_downtime_hours = EXCLUDED.total_downtime_hours,
			avg_wait_time = EXCLUDED.avg_wait_time,
			peak_wait_time = EXCLUDED.peak_wait_time,
			trend_vs_previous_week = EXCLUDED.trend_vs_previous_week,
			days_with_data = EXCLUDED.days_with_data`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.ParkID, row.ISOYear, row.ISOWeek, row.WeekStartDate, row.AvgShameScore,
			row.TotalDowntimeHours, row.AvgWaitTime, row.PeakWaitTime, row.TrendVsPreviousWeek, row.DaysWithData)
		if err != nil {
			return fmt.Errorf("failed to upsert park weekly stats: %w", err)
		}
	}

	return tx.Commit()
}

// ListRideHourly returns ride hourly stats in a UTC window
func (r *statsRepo) ListRideHourly(ctx context.Context, tr persistence.TimeRange) ([]persistence.RideHourlyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.RideHourlyStats
	query := `
		SELECT ride_id, park_id, hour_start_utc, operating_snapshots, down_snapshots, snapshot_count,
		       downtime_hours, weighted_downtime_hours, effective_weight, uptime_pct, avg_wait_time, ride_operated
		FROM ride_hourly_stats
		WHERE hour_start_utc >= $1 AND hour_start_utc < $2
		ORDER BY ride_id, hour_start_utc`
	if err := r.db.SelectContext(ctx, &rows, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list ride hourly stats: %w", err)
	}

	return rows, nil
}

// ListParkHourly returns park hourly stats in a UTC window
func (r *statsRepo) ListParkHourly(ctx context.Context, tr persistence.TimeRange) ([]persistence.ParkHourlyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.ParkHourlyStats
	query := `
		SELECT park_id, hour_start_utc, avg_shame_score, avg_wait_time, max_wait_time,
		       rides_down, total_downtime_hours, park_was_open, snapshot_count
		FROM park_hourly_stats
		WHERE hour_start_utc >= $1 AND hour_start_utc < $2
		ORDER BY park_id, hour_start_utc`
	if err := r.db.SelectContext(ctx, &rows, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list park hourly stats: %w", err)
	}

	return rows, nil
}

// ListRideDaily returns ride daily stats in a date window
func (r *statsRepo) ListRideDaily(ctx context.Context, tr persistence.TimeRange) ([]persistence.RideDailyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.RideDailyStats
	query := `
		SELECT ride_id, park_id, stat_date, uptime_minutes, downtime_minutes, operating_hours_minutes,
		       avg_wait_time, min_wait_time, max_wait_time, peak_wait_time, status_changes,
		       longest_downtime_minutes, snapshot_count
		FROM ride_daily_stats
		WHERE stat_date >= $1 AND stat_date < $2
		ORDER BY ride_id, stat_date`
	if err := r.db.SelectContext(ctx, &rows, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list ride daily stats: %w", err)
	}

	return rows, nil
}

// ListParkDaily returns park daily stats in a date window
func (r *statsRepo) ListParkDaily(ctx context.Context, tr persistence.TimeRange) ([]persistence.ParkDailyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.ParkDailyStats
	query := `
		SELECT park_id, stat_date, avg_shame_score, total_downtime_hours, rides_down,
		       avg_wait_time, peak_wait_time, park_was_open, snapshot_count
		FROM park_daily_stats
		WHERE stat_date >= $1 AND stat_date < $2
		ORDER BY park_id, stat_date`
	if err := r.db.SelectContext(ctx, &rows, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list park daily stats: %w", err)
	}

	return rows, nil
}

// GetRideWeekly returns one ride week, nil if absent
func (r *statsRepo) GetRideWeekly(ctx context.Context, rideID int64, isoYear, isoWeek int) (*persistence.RideWeeklyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row persistence.RideWeeklyStats
	query := `
		SELECT ride_id, park_id, iso_year, iso_week, week_start_date, uptime_minutes, downtime_minutes,
		       operating_hours_minutes, uptime_percentage, avg_wait_time, peak_wait_time, status_changes,
		       trend_vs_previous_week, days_with_data
		FROM ride_weekly_stats
		WHERE ride_id = $1 AND iso_year = $2 AND iso_week = $3`
	if err := r.db.GetContext(ctx, &row, query, rideID, isoYear, isoWeek); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride weekly stats: %w", err)
	}

	return &row, nil
}

// ListRideWeekly returns all ride rows for one ISO week
func (r *statsRepo) ListRideWeekly(ctx context.Context, isoYear, isoWeek int) ([]persistence.RideWeeklyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.RideWeeklyStats
	query := `
		SELECT ride_id, park_id, iso_year, iso_week, week_start_date, uptime_minutes, downtime_minutes,
		       operating_hours_minutes, uptime_percentage, avg_wait_time, peak_wait_time, status_changes,
		       trend_vs_previous_week, days_with_data
		FROM ride_weekly_stats
		WHERE iso_year = $1 AND iso_week = $2
		ORDER BY ride_id`
	if err := r.db.SelectContext(ctx, &rows, query, isoYear, isoWeek); err != nil {
		return nil, fmt.Errorf("failed to list ride weekly stats: %w", err)
	}

	return rows, nil
}

// ListParkWeekly returns all park rows for one ISO week
func (r *statsRepo) ListParkWeekly(ctx context.Context, isoYear, isoWeek int) ([]persistence.ParkWeeklyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []persistence.ParkWeeklyStats
	query := `
		SELECT park_id, iso_year, iso_week, week_start_date, avg_shame_score, total_downtime_hours,
		       avg_wait_time, peak_wait_time, trend_vs_previous_week, days_with_data
		FROM park_weekly_stats
		WHERE iso_year = $1 AND iso_week = $2
		ORDER BY park_id`
	if err := r.db.SelectContext(ctx, &rows, query, isoYear, isoWeek); err != nil {
		return nil, fmt.Errorf("failed to list park weekly stats: %w", err)
	}

	return rows, nil
}

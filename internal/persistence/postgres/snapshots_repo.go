package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkpulse/parkpulse/internal/persistence"
)

// snapshotsRepo implements SnapshotsRepo for PostgreSQL
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotsRepo creates a new PostgreSQL snapshots repository
func NewSnapshotsRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotsRepo {
	return &snapshotsRepo{db: db, timeout: timeout}
}

// WriteCycle persists one park collection cycle atomically. All rows must
// share the park snapshot's recorded_at; the timestamp-equality join used
// by aggregation and the live materializer depends on it.
func (r *snapshotsRepo) WriteCycle(ctx context.Context, park persistence.ParkActivitySnapshot, rides []persistence.RideStatusSnapshot) error {
	for _, rs := range rides {
		if !rs.RecordedAt.Equal(park.RecordedAt) {
			return fmt.Errorf("ride snapshot recorded_at %s does not match cycle recorded_at %s",
				rs.RecordedAt.Format(time.RFC3339), park.RecordedAt.Format(time.RFC3339))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rides)/200+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO park_activity_snapshots
			(park_id, recorded_at, rides_tracked, rides_open, rides_closed, avg_wait_time, max_wait_time, park_appears_open, shame_score, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		park.ParkID, park.RecordedAt, park.RidesTracked, park.RidesOpen, park.RidesClosed,
		park.AvgWaitTime, park.MaxWaitTime, park.ParkAppearsOpen, park.ShameScore, park.DataSource)
	if err != nil {
		return fmt.Errorf("failed to insert park snapshot: %w", err)
	}

	if err := insertRideSnapshots(ctx, tx, rides); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertRideBatch appends ride snapshots outside a cycle (archive import)
func (r *snapshotsRepo) InsertRideBatch(ctx context.Context, snaps []persistence.RideStatusSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(snaps)/200+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRideSnapshots(ctx, tx, snaps); err != nil {
		return err
	}

	return tx.Commit()
}

func insertRideSnapshots(ctx context.Context, tx *sqlx.Tx, snaps []persistence.RideStatusSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ride_status_snapshots
			(ride_id, park_id, recorded_at, status, computed_is_open, wait_time, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ride_id, recorded_at) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		_, err = stmt.ExecContext(ctx,
			s.RideID, s.ParkID, s.RecordedAt, s.Status, s.ComputedIsOpen, s.WaitTime, s.DataSource)
		if err != nil {
			return fmt.Errorf("failed to insert ride snapshot in batch: %w", err)
		}
	}

	return nil
}

// InsertStatusChanges appends observed ride status flips
func (r *snapshotsRepo) InsertStatusChanges(ctx context.Context, changes []persistence.StatusChange) error {
	if len(changes) == 0 {
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
		INSERT INTO ride_status_changes (ride_id, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range changes {
		if _, err := stmt.ExecContext(ctx, c.RideID, c.FromStatus, c.ToStatus, c.ChangedAt); err != nil {
			return fmt.Errorf("failed to insert status change: %w", err)
		}
	}

	return tx.Commit()
}

const parkSnapColumns = `id, park_id, recorded_at, rides_tracked, rides_open, rides_closed, avg_wait_time, max_wait_time, park_appears_open, shame_score, data_source`
const rideSnapColumns = `id, ride_id, park_id, recorded_at, status, computed_is_open, wait_time, data_source`

// ListParkSnapshots returns park snapshots in a UTC window
func (r *snapshotsRepo) ListParkSnapshots(ctx context.Context, parkID int64, tr persistence.TimeRange) ([]persistence.ParkActivitySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var snaps []persistence.ParkActivitySnapshot
	query := `
		SELECT ` + parkSnapColumns + `
		FROM park_activity_snapshots
		WHERE park_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at`
	if err := r.db.SelectContext(ctx, &snaps, query, parkID, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list park snapshots: %w", err)
	}

	return snaps, nil
}

// ListRideSnapshots returns ride snapshots for a park in a UTC window
func (r *snapshotsRepo) ListRideSnapshots(ctx context.Context, parkID int64, tr persistence.TimeRange) ([]persistence.RideStatusSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var snaps []persistence.RideStatusSnapshot
	query := `
		SELECT ` + rideSnapColumns + `
		FROM ride_status_snapshots
		WHERE park_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY ride_id, recorded_at`
	if err := r.db.SelectContext(ctx, &snaps, query, parkID, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list ride snapshots: %w", err)
	}

	return snaps, nil
}

// ListStatusChanges returns status flips for a park in a UTC window
func (r *snapshotsRepo) ListStatusChanges(ctx context.Context, parkID int64, tr persistence.TimeRange) ([]persistence.StatusChange, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var changes []persistence.StatusChange
	query := `
		SELECT c.id, c.ride_id, c.from_status, c.to_status, c.changed_at
		FROM ride_status_changes c
		JOIN rides rd ON rd.id = c.ride_id
		WHERE rd.park_id = $1 AND c.changed_at >= $2 AND c.changed_at < $3
		ORDER BY c.changed_at`
	if err := r.db.SelectContext(ctx, &changes, query, parkID, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list status changes: %w", err)
	}

	return changes, nil
}

// ListAllParkSnapshots returns park snapshots across all parks in a UTC window
func (r *snapshotsRepo) ListAllParkSnapshots(ctx context.Context, tr persistence.TimeRange) ([]persistence.ParkActivitySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var snaps []persistence.ParkActivitySnapshot
	query := `
		SELECT ` + parkSnapColumns + `
		FROM park_activity_snapshots
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY park_id, recorded_at`
	if err := r.db.SelectContext(ctx, &snaps, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list all park snapshots: %w", err)
	}

	return snaps, nil
}

// ListAllRideSnapshots returns ride snapshots across all parks in a UTC window
func (r *snapshotsRepo) ListAllRideSnapshots(ctx context.Context, tr persistence.TimeRange) ([]persistence.RideStatusSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var snaps []persistence.RideStatusSnapshot
	query := `
		SELECT ` + rideSnapColumns + `
		FROM ride_status_snapshots
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY ride_id, recorded_at`
	if err := r.db.SelectContext(ctx, &snaps, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list all ride snapshots: %w", err)
	}

	return snaps, nil
}

// PruneBefore deletes raw snapshots older than cutoff. The aggregator's
// success barrier for every affected date is the caller's responsibility.
func (r *snapshotsRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var total int64
	for _, table := range []string{"ride_status_snapshots", "park_activity_snapshots"} {
		res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE recorded_at < $1`, table), cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	return total, nil
}

// Package aggregator rolls raw snapshots up into hourly, daily, and
// weekly statistics. Each run is recorded in the aggregation log, and
// raw snapshot pruning is gated on a successful daily run for every
// affected date.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// stuckRunningAfter is how long a running log row may age before it is
// treated as crashed and rerun.
const stuckRunningAfter = 6 * time.Hour

// Aggregator computes derived statistics from raw snapshots.
type Aggregator struct {
	repo *persistence.Repository

	// intervalMinutes is the collection cadence; one snapshot stands for
	// this many minutes of wall time in all downtime math.
	intervalMinutes int
}

// New creates an aggregator for the given snapshot cadence.
func New(repo *persistence.Repository, intervalMinutes int) *Aggregator {
	return &Aggregator{repo: repo, intervalMinutes: intervalMinutes}
}

// RunDaily aggregates one UTC calendar date at every level that date
// closes: all 24 hourly buckets, the per-park local days, and the ISO
// week when the date is a Sunday. force reruns even over a prior
// success.
func (a *Aggregator) RunDaily(ctx context.Context, date time.Time, force bool) error {
	date = date.UTC().Truncate(24 * time.Hour)

	if err := a.runLevel(ctx, date, model.AggHourly, force, func(ctx context.Context) (int, error) {
		return a.aggregateHours(ctx, date)
	}); err != nil {
		return err
	}

	if err := a.runLevel(ctx, date, model.AggDaily, force, func(ctx context.Context) (int, error) {
		return a.aggregateDay(ctx, date)
	}); err != nil {
		return err
	}

	// The ISO week closes with its Sunday; aggregate it once complete.
	if date.Weekday() == time.Sunday {
		if err := a.runLevel(ctx, date, model.AggWeekly, force, func(ctx context.Context) (int, error) {
			return a.aggregateWeek(ctx, date)
		}); err != nil {
			return err
		}
	}

	return nil
}

// runLevel wraps one aggregation pass in the log barrier protocol.
func (a *Aggregator) runLevel(ctx context.Context, date time.Time, level model.AggregationLevel, force bool, fn func(context.Context) (int, error)) error {
	last, err := a.repo.AggLog.Get(ctx, date, level)
	if err != nil {
		return fmt.Errorf("failed to read aggregation log: %w", err)
	}
	if last != nil && !force {
		switch last.Status {
		case model.AggSuccess:
			log.Debug().
				Time("date", date).
				Str("level", string(level)).
				Msg("aggregation already succeeded, skipping")
			return nil
		case model.AggRunning:
			if time.Since(last.StartedAt) < stuckRunningAfter {
				log.Warn().
					Time("date", date).
					Str("level", string(level)).
					Msg("aggregation already running, skipping")
				return nil
			}
			log.Warn().
				Time("date", date).
				Str("level", string(level)).
				Time("started_at", last.StartedAt).
				Msg("stale running aggregation, rerunning")
		}
	}

	id, err := a.repo.AggLog.Start(ctx, date, level)
	if err != nil {
		return fmt.Errorf("failed to start aggregation log: %w", err)
	}

	entities, err := fn(ctx)
	if err != nil {
		if failErr := a.repo.AggLog.Fail(ctx, id, err.Error()); failErr != nil {
			log.Error().Err(failErr).Msg("failed to record aggregation failure")
		}
		return fmt.Errorf("%s aggregation for %s failed: %w", level, date.Format("2006-01-02"), err)
	}

	if err := a.repo.AggLog.Finish(ctx, id, entities); err != nil {
		return fmt.Errorf("failed to finish aggregation log: %w", err)
	}

	log.Info().
		Time("date", date).
		Str("level", string(level)).
		Int("entities", entities).
		Msg("aggregation complete")
	return nil
}

// PruneSnapshots deletes raw snapshots older than retentionDays, but
// only when every date inside the verification window behind the cutoff
// has a successful daily aggregation. Dates without any snapshots pass
// trivially.
func (a *Aggregator) PruneSnapshots(ctx context.Context, retentionDays, verifyDays int) (int64, error) {
	cutoff := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -retentionDays)

	for i := 1; i <= verifyDays; i++ {
		date := cutoff.AddDate(0, 0, -i)

		ok, err := a.repo.AggLog.HasSuccess(ctx, date, model.AggDaily)
		if err != nil {
			return 0, fmt.Errorf("failed to check aggregation barrier: %w", err)
		}
		if ok {
			continue
		}

		snaps, err := a.repo.Snapshots.ListAllParkSnapshots(ctx, persistence.TimeRange{
			From: date,
			To:   date.AddDate(0, 0, 1),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to check snapshots for %s: %w", date.Format("2006-01-02"), err)
		}
		if len(snaps) > 0 {
			return 0, fmt.Errorf("refusing to prune: %s has snapshots but no successful daily aggregation", date.Format("2006-01-02"))
		}
	}

	deleted, err := a.repo.Snapshots.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	log.Info().
		Time("cutoff", cutoff).
		Int64("deleted", deleted).
		Msg("pruned raw snapshots")
	return deleted, nil
}

// snapshotHours converts a snapshot count to hours of wall time.
func (a *Aggregator) snapshotHours(n int) float64 {
	return float64(n*a.intervalMinutes) / 60
}

// snapshotMinutes converts a snapshot count to minutes of wall time.
func (a *Aggregator) snapshotMinutes(n int) int {
	return n * a.intervalMinutes
}

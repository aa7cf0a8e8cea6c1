package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// aggregateWeek rolls the ISO week containing date up from daily stats.
// Weekly rows are derived from daily rows only, never from raw
// snapshots, so they stay computable after snapshot pruning.
func (a *Aggregator) aggregateWeek(ctx context.Context, date time.Time) (int, error) {
	weekStart := model.ISOWeekStart(date)
	isoYear, isoWeek := date.ISOWeek()
	prevYear, prevWeek := weekStart.AddDate(0, 0, -7).ISOWeek()

	window := persistence.TimeRange{From: weekStart, To: weekStart.AddDate(0, 0, 7)}

	rideDaily, err := a.repo.Stats.ListRideDaily(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("failed to list ride daily stats: %w", err)
	}
	parkDaily, err := a.repo.Stats.ListParkDaily(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("failed to list park daily stats: %w", err)
	}

	prevRide, err := a.repo.Stats.ListRideWeekly(ctx, prevYear, prevWeek)
	if err != nil {
		return 0, fmt.Errorf("failed to list previous ride weekly stats: %w", err)
	}
	prevRideDowntime := make(map[int64]int, len(prevRide))
	for _, r := range prevRide {
		prevRideDowntime[r.RideID] = r.DowntimeMinutes
	}

	prevPark, err := a.repo.Stats.ListParkWeekly(ctx, prevYear, prevWeek)
	if err != nil {
		return 0, fmt.Errorf("failed to list previous park weekly stats: %w", err)
	}
	prevParkDowntime := make(map[int64]float64, len(prevPark))
	for _, p := range prevPark {
		prevParkDowntime[p.ParkID] = p.TotalDowntimeHours
	}

	rideRows := rollupRideWeek(rideDaily, isoYear, isoWeek, weekStart, prevRideDowntime)
	parkRows := rollupParkWeek(parkDaily, isoYear, isoWeek, weekStart, prevParkDowntime)

	if err := a.repo.Stats.UpsertRideWeekly(ctx, rideRows); err != nil {
		return 0, fmt.Errorf("failed to upsert ride weekly stats: %w", err)
	}
	if err := a.repo.Stats.UpsertParkWeekly(ctx, parkRows); err != nil {
		return 0, fmt.Errorf("failed to upsert park weekly stats: %w", err)
	}

	return len(rideRows) + len(parkRows), nil
}

func rollupRideWeek(daily []persistence.RideDailyStats, isoYear, isoWeek int, weekStart time.Time, prevDowntime map[int64]int) []persistence.RideWeeklyStats {
	byRide := make(map[int64][]persistence.RideDailyStats)
	for _, d := range daily {
		byRide[d.RideID] = append(byRide[d.RideID], d)
	}

	rows := make([]persistence.RideWeeklyStats, 0, len(byRide))
	for rideID, days := range byRide {
		row := persistence.RideWeeklyStats{
			RideID:        rideID,
			ParkID:        days[0].ParkID,
			ISOYear:       isoYear,
			ISOWeek:       isoWeek,
			WeekStartDate: weekStart,
			DaysWithData:  len(days),
		}

		var waitSum float64
		var waitWeight int
		for _, d := range days {
			row.UptimeMinutes += d.UptimeMinutes
			row.DowntimeMinutes += d.DowntimeMinutes
			row.OperatingHoursMinutes += d.OperatingHoursMinutes
			row.StatusChanges += d.StatusChanges
			// Wait averages weight each day by how long the park was
			// open, so a short operating day cannot outvote a full one.
			if d.AvgWaitTime != nil && d.OperatingHoursMinutes > 0 {
				waitSum += *d.AvgWaitTime * float64(d.OperatingHoursMinutes)
				waitWeight += d.OperatingHoursMinutes
			}
			if d.PeakWaitTime != nil && (row.PeakWaitTime == nil || *d.PeakWaitTime > *row.PeakWaitTime) {
				w := *d.PeakWaitTime
				row.PeakWaitTime = &w
			}
		}

		if total := row.UptimeMinutes + row.DowntimeMinutes; total > 0 {
			pct := 100 * float64(row.UptimeMinutes) / float64(total)
			row.UptimePercentage = &pct
		}
		if waitWeight > 0 {
			avg := waitSum / float64(waitWeight)
			row.AvgWaitTime = &avg
		}
		if prev, ok := prevDowntime[rideID]; ok && prev > 0 {
			trend := 100 * float64(row.DowntimeMinutes-prev) / float64(prev)
			row.TrendVsPreviousWeek = &trend
		}

		rows = append(rows, row)
	}
	return rows
}

func rollupParkWeek(daily []persistence.ParkDailyStats, isoYear, isoWeek int, weekStart time.Time, prevDowntime map[int64]float64) []persistence.ParkWeeklyStats {
	byPark := make(map[int64][]persistence.ParkDailyStats)
	for _, d := range daily {
		byPark[d.ParkID] = append(byPark[d.ParkID], d)
	}

	rows := make([]persistence.ParkWeeklyStats, 0, len(byPark))
	for parkID, days := range byPark {
		row := persistence.ParkWeeklyStats{
			ParkID:        parkID,
			ISOYear:       isoYear,
			ISOWeek:       isoWeek,
			WeekStartDate: weekStart,
			DaysWithData:  len(days),
		}

		var shameSum, waitSum float64
		var shameWeight, waitWeight int
		for _, d := range days {
			row.TotalDowntimeHours += d.TotalDowntimeHours
			if d.AvgShameScore != nil && d.SnapshotCount > 0 {
				shameSum += *d.AvgShameScore * float64(d.SnapshotCount)
				shameWeight += d.SnapshotCount
			}
			if d.AvgWaitTime != nil && d.SnapshotCount > 0 {
				waitSum += *d.AvgWaitTime * float64(d.SnapshotCount)
				waitWeight += d.SnapshotCount
			}
			if d.PeakWaitTime != nil && (row.PeakWaitTime == nil || *d.PeakWaitTime > *row.PeakWaitTime) {
				w := *d.PeakWaitTime
				row.PeakWaitTime = &w
			}
		}

		if shameWeight > 0 {
			avg := shameSum / float64(shameWeight)
			row.AvgShameScore = &avg
		}
		if waitWeight > 0 {
			avg := waitSum / float64(waitWeight)
			row.AvgWaitTime = &avg
		}
		if prev, ok := prevDowntime[parkID]; ok && prev > 0 {
			trend := 100 * (row.TotalDowntimeHours - prev) / prev
			row.TrendVsPreviousWeek = &trend
		}

		rows = append(rows, row)
	}
	return rows
}

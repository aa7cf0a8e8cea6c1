package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// aggregateDay computes daily stats for one calendar date. The date is a
// label: each park's day is the local calendar day with that label,
// converted to a UTC window through the park's timezone.
func (a *Aggregator) aggregateDay(ctx context.Context, date time.Time) (int, error) {
	parks, err := a.repo.Parks.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list parks: %w", err)
	}

	entities := 0
	for _, park := range parks {
		n, err := a.aggregateParkDay(ctx, park, date)
		if err != nil {
			return entities, err
		}
		entities += n
	}
	return entities, nil
}

func (a *Aggregator) aggregateParkDay(ctx context.Context, park persistence.Park, date time.Time) (int, error) {
	loc := park.Location()
	localStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	window := persistence.TimeRange{
		From: localStart.UTC(),
		To:   localStart.AddDate(0, 0, 1).UTC(),
	}
	statDate := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	rideSnaps, err := a.repo.Snapshots.ListRideSnapshots(ctx, park.ID, window)
	if err != nil {
		return 0, fmt.Errorf("failed to list ride snapshots for park %d: %w", park.ID, err)
	}
	parkSnaps, err := a.repo.Snapshots.ListParkSnapshots(ctx, park.ID, window)
	if err != nil {
		return 0, fmt.Errorf("failed to list park snapshots for park %d: %w", park.ID, err)
	}
	if len(rideSnaps) == 0 && len(parkSnaps) == 0 {
		return 0, nil
	}

	changes, err := a.repo.Snapshots.ListStatusChanges(ctx, park.ID, window)
	if err != nil {
		return 0, fmt.Errorf("failed to list status changes for park %d: %w", park.ID, err)
	}
	changesByRide := make(map[int64]int)
	for _, ch := range changes {
		changesByRide[ch.RideID]++
	}

	strict := model.StrictVendor(park.IsDisney, park.IsUniversal)

	// Timestamps at which the park appeared open; ride operating-hours
	// and peak waits are scoped to these.
	openAt := make(map[time.Time]bool)
	for _, s := range parkSnaps {
		if s.ParkAppearsOpen {
			openAt[s.RecordedAt] = true
		}
	}
	parkOpenMinutes := a.snapshotMinutes(len(openAt))

	byRide := make(map[int64][]persistence.RideStatusSnapshot)
	for _, s := range rideSnaps {
		byRide[s.RideID] = append(byRide[s.RideID], s)
	}

	rideRows := make([]persistence.RideDailyStats, 0, len(byRide))
	var totalDowntimeMinutes int
	ridesDown := 0

	for rideID, bucket := range byRide {
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].RecordedAt.Before(bucket[j].RecordedAt)
		})

		row := persistence.RideDailyStats{
			RideID:                rideID,
			ParkID:                park.ID,
			StatDate:              statDate,
			OperatingHoursMinutes: parkOpenMinutes,
			StatusChanges:         changesByRide[rideID],
			SnapshotCount:         len(bucket),
		}

		var waitSum, waitCount int
		downStreak, longestStreak := 0, 0
		for _, s := range bucket {
			down := model.CountsAsDown(strict, s.Status, s.ComputedIsOpen)
			if s.ComputedIsOpen {
				row.UptimeMinutes += a.snapshotMinutes(1)
			}
			// A ride sitting closed overnight is not an outage; downtime
			// and outage streaks accrue only while the park appears open.
			if down && openAt[s.RecordedAt] {
				row.DowntimeMinutes += a.snapshotMinutes(1)
				downStreak++
				if downStreak > longestStreak {
					longestStreak = downStreak
				}
			} else {
				downStreak = 0
			}

			if s.WaitTime != nil {
				w := *s.WaitTime
				waitSum += w
				waitCount++
				if row.MinWaitTime == nil || w < *row.MinWaitTime {
					row.MinWaitTime = &w
				}
				if row.MaxWaitTime == nil || w > *row.MaxWaitTime {
					row.MaxWaitTime = &w
				}
				if openAt[s.RecordedAt] && (row.PeakWaitTime == nil || w > *row.PeakWaitTime) {
					row.PeakWaitTime = &w
				}
			}
		}

		row.LongestDowntimeMinutes = a.snapshotMinutes(longestStreak)
		if waitCount > 0 {
			avg := float64(waitSum) / float64(waitCount)
			row.AvgWaitTime = &avg
		}

		totalDowntimeMinutes += row.DowntimeMinutes
		if row.DowntimeMinutes > 0 {
			ridesDown++
		}

		rideRows = append(rideRows, row)
	}

	parkRow := persistence.ParkDailyStats{
		ParkID:             park.ID,
		StatDate:           statDate,
		TotalDowntimeHours: float64(totalDowntimeMinutes) / 60,
		RidesDown:          ridesDown,
		SnapshotCount:      len(parkSnaps),
	}

	var shameSum, waitSum float64
	var shameCount, waitCount int
	for _, s := range parkSnaps {
		if s.ParkAppearsOpen {
			parkRow.ParkWasOpen = true
		}
		if s.ShameScore != nil {
			shameSum += *s.ShameScore
			shameCount++
		}
		if s.AvgWaitTime != nil {
			waitSum += *s.AvgWaitTime
			waitCount++
		}
		if s.MaxWaitTime != nil && (parkRow.PeakWaitTime == nil || *s.MaxWaitTime > *parkRow.PeakWaitTime) {
			w := *s.MaxWaitTime
			parkRow.PeakWaitTime = &w
		}
	}
	if shameCount > 0 {
		avg := shameSum / float64(shameCount)
		parkRow.AvgShameScore = &avg
	}
	if waitCount > 0 {
		avg := waitSum / float64(waitCount)
		parkRow.AvgWaitTime = &avg
	}

	if err := a.repo.Stats.UpsertRideDaily(ctx, rideRows); err != nil {
		return 0, fmt.Errorf("failed to upsert ride daily stats: %w", err)
	}
	if err := a.repo.Stats.UpsertParkDaily(ctx, []persistence.ParkDailyStats{parkRow}); err != nil {
		return 0, fmt.Errorf("failed to upsert park daily stats: %w", err)
	}

	return len(rideRows) + 1, nil
}

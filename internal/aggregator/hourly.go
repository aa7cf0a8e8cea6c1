package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// aggregateHours computes hourly stats for all 24 UTC hours of a date.
// Hours without snapshots produce no rows; absence of data is never
// recorded as zero downtime.
func (a *Aggregator) aggregateHours(ctx context.Context, date time.Time) (int, error) {
	parks, err := a.repo.Parks.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list parks: %w", err)
	}

	entities := 0
	for _, park := range parks {
		n, err := a.aggregateParkHours(ctx, park, date)
		if err != nil {
			return entities, err
		}
		entities += n
	}
	return entities, nil
}

func (a *Aggregator) aggregateParkHours(ctx context.Context, park persistence.Park, date time.Time) (int, error) {
	day := persistence.TimeRange{From: date, To: date.AddDate(0, 0, 1)}

	rideSnaps, err := a.repo.Snapshots.ListRideSnapshots(ctx, park.ID, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list ride snapshots for park %d: %w", park.ID, err)
	}
	parkSnaps, err := a.repo.Snapshots.ListParkSnapshots(ctx, park.ID, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list park snapshots for park %d: %w", park.ID, err)
	}
	if len(rideSnaps) == 0 && len(parkSnaps) == 0 {
		return 0, nil
	}

	tiers, err := a.rideTiers(ctx, park.ID)
	if err != nil {
		return 0, err
	}
	strict := model.StrictVendor(park.IsDisney, park.IsUniversal)

	// Instants at which the park appeared open; uptime percentages are
	// computed over these snapshots only, so an overnight hour of CLOSED
	// readings never drags a ride to 0%.
	openAt := make(map[time.Time]bool)
	for _, s := range parkSnaps {
		if s.ParkAppearsOpen {
			openAt[s.RecordedAt] = true
		}
	}

	// First operating instant per ride across the whole day. A ride
	// counts as operated for an hour when it ran during that hour or any
	// earlier hour of the day.
	firstOperating := make(map[int64]time.Time)
	for _, s := range rideSnaps {
		if !s.ComputedIsOpen {
			continue
		}
		if t, ok := firstOperating[s.RideID]; !ok || s.RecordedAt.Before(t) {
			firstOperating[s.RideID] = s.RecordedAt
		}
	}

	// Bucket ride snapshots by (hour, ride).
	type rideHourKey struct {
		hour   time.Time
		rideID int64
	}
	rideBuckets := make(map[rideHourKey][]persistence.RideStatusSnapshot)
	for _, s := range rideSnaps {
		key := rideHourKey{hour: s.RecordedAt.Truncate(time.Hour), rideID: s.RideID}
		rideBuckets[key] = append(rideBuckets[key], s)
	}

	rideRows := make([]persistence.RideHourlyStats, 0, len(rideBuckets))
	for key, bucket := range rideBuckets {
		row := persistence.RideHourlyStats{
			RideID:          key.rideID,
			ParkID:          park.ID,
			HourStartUTC:    key.hour,
			SnapshotCount:   len(bucket),
			EffectiveWeight: model.TierWeight(tiers[key.rideID]),
		}

		var waitSum, waitCount int
		var openParkSnaps, openParkOperating int
		for _, s := range bucket {
			if s.ComputedIsOpen {
				row.OperatingSnapshots++
			}
			if openAt[s.RecordedAt] {
				openParkSnaps++
				if s.ComputedIsOpen {
					openParkOperating++
				}
			}
			if model.CountsAsDown(strict, s.Status, s.ComputedIsOpen) {
				row.DownSnapshots++
			}
			if s.WaitTime != nil {
				waitSum += *s.WaitTime
				waitCount++
			}
		}

		if t, ok := firstOperating[key.rideID]; ok && t.Before(key.hour.Add(time.Hour)) {
			row.RideOperated = true
		}

		row.DowntimeHours = a.snapshotHours(row.DownSnapshots)
		row.WeightedDowntimeHours = row.DowntimeHours * float64(row.EffectiveWeight)
		if openParkSnaps > 0 {
			pct := 100 * float64(openParkOperating) / float64(openParkSnaps)
			row.UptimePct = &pct
		}
		if waitCount > 0 {
			avg := float64(waitSum) / float64(waitCount)
			row.AvgWaitTime = &avg
		}

		rideRows = append(rideRows, row)
	}

	// Bucket park snapshots by hour.
	parkBuckets := make(map[time.Time][]persistence.ParkActivitySnapshot)
	for _, s := range parkSnaps {
		hour := s.RecordedAt.Truncate(time.Hour)
		parkBuckets[hour] = append(parkBuckets[hour], s)
	}

	// Distinct rides down per hour come from the ride buckets.
	downRides := make(map[time.Time]map[int64]bool)
	downtimeByHour := make(map[time.Time]float64)
	for key, bucket := range rideBuckets {
		for _, s := range bucket {
			if model.CountsAsDown(strict, s.Status, s.ComputedIsOpen) {
				if downRides[key.hour] == nil {
					downRides[key.hour] = make(map[int64]bool)
				}
				downRides[key.hour][key.rideID] = true
				downtimeByHour[key.hour] += a.snapshotHours(1)
			}
		}
	}

	parkRows := make([]persistence.ParkHourlyStats, 0, len(parkBuckets))
	for hour, bucket := range parkBuckets {
		row := persistence.ParkHourlyStats{
			ParkID:             park.ID,
			HourStartUTC:       hour,
			SnapshotCount:      len(bucket),
			RidesDown:          len(downRides[hour]),
			TotalDowntimeHours: downtimeByHour[hour],
		}

		var shameSum float64
		var shameCount int
		var waitSum float64
		var waitCount int
		for _, s := range bucket {
			if s.ParkAppearsOpen {
				row.ParkWasOpen = true
			}
			if s.ShameScore != nil {
				shameSum += *s.ShameScore
				shameCount++
			}
			if s.AvgWaitTime != nil {
				waitSum += *s.AvgWaitTime
				waitCount++
			}
			if s.MaxWaitTime != nil && (row.MaxWaitTime == nil || *s.MaxWaitTime > *row.MaxWaitTime) {
				w := *s.MaxWaitTime
				row.MaxWaitTime = &w
			}
		}
		if shameCount > 0 {
			avg := shameSum / float64(shameCount)
			row.AvgShameScore = &avg
		}
		if waitCount > 0 {
			avg := waitSum / float64(waitCount)
			row.AvgWaitTime = &avg
		}

		parkRows = append(parkRows, row)
	}

	if err := a.repo.Stats.UpsertRideHourly(ctx, rideRows); err != nil {
		return 0, fmt.Errorf("failed to upsert ride hourly stats: %w", err)
	}
	if err := a.repo.Stats.UpsertParkHourly(ctx, parkRows); err != nil {
		return 0, fmt.Errorf("failed to upsert park hourly stats: %w", err)
	}

	return len(rideRows) + len(parkRows), nil
}

// rideTiers loads the tier of every ride in a park.
func (a *Aggregator) rideTiers(ctx context.Context, parkID int64) (map[int64]int, error) {
	rides, err := a.repo.Rides.ListByPark(ctx, parkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides for park %d: %w", parkID, err)
	}
	tiers := make(map[int64]int, len(rides))
	for _, r := range rides {
		tiers[r.ID] = r.Tier
	}
	return tiers, nil
}

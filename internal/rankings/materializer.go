// Package rankings rebuilds the denormalized live ranking tables after
// each collection cycle. The rebuild writes into staging tables and
// swaps them into the served position atomically, so readers never see a
// partially built generation.
package rankings

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// Materializer rebuilds the live ranking tables.
type Materializer struct {
	repo *persistence.Repository

	// liveWindow bounds the snapshot lookback when finding each park's
	// latest cycle.
	liveWindow time.Duration

	// dormantAfter excludes rides not operated for this long.
	dormantAfter time.Duration

	// generation increments after every successful swap; websocket
	// subscribers poll it to learn when to refetch.
	generation atomic.Int64
}

// New creates a materializer.
func New(repo *persistence.Repository, liveWindow, dormantAfter time.Duration) *Materializer {
	return &Materializer{repo: repo, liveWindow: liveWindow, dormantAfter: dormantAfter}
}

// Generation returns the current rankings generation number.
func (m *Materializer) Generation() int64 {
	return m.generation.Load()
}

// Rebuild recomputes both ranking tables from the latest snapshots and
// swaps them live.
func (m *Materializer) Rebuild(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()
	window := persistence.TimeRange{From: now.Add(-m.liveWindow), To: now}

	parks, err := m.repo.Parks.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list parks: %w", err)
	}

	var parkRows []persistence.ParkLiveRanking
	var rideRows []persistence.RideLiveRanking

	for _, park := range parks {
		pr, rr, err := m.buildPark(ctx, park, window, now)
		if err != nil {
			log.Warn().Err(err).Int64("park_id", park.ID).Msg("skipping park in rankings rebuild")
			continue
		}
		if pr != nil {
			parkRows = append(parkRows, *pr)
			rideRows = append(rideRows, rr...)
		}
	}

	if err := m.repo.Rankings.TruncateStaging(ctx); err != nil {
		return fmt.Errorf("failed to truncate staging: %w", err)
	}
	if err := m.repo.Rankings.InsertParkStaging(ctx, parkRows); err != nil {
		return fmt.Errorf("failed to stage park rankings: %w", err)
	}
	if err := m.repo.Rankings.InsertRideStaging(ctx, rideRows); err != nil {
		return fmt.Errorf("failed to stage ride rankings: %w", err)
	}
	if err := m.repo.Rankings.SwapStaging(ctx); err != nil {
		return fmt.Errorf("failed to swap rankings: %w", err)
	}

	gen := m.generation.Add(1)
	log.Info().
		Int("parks", len(parkRows)).
		Int("rides", len(rideRows)).
		Int64("generation", gen).
		Dur("elapsed", time.Since(start)).
		Msg("live rankings rebuilt")
	return nil
}

// buildPark assembles one park's ranking rows from its latest cycle.
// Returns nils when the park has no snapshot inside the window.
func (m *Materializer) buildPark(ctx context.Context, park persistence.Park, window persistence.TimeRange, now time.Time) (*persistence.ParkLiveRanking, []persistence.RideLiveRanking, error) {
	parkSnaps, err := m.repo.Snapshots.ListParkSnapshots(ctx, park.ID, window)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list park snapshots: %w", err)
	}
	if len(parkSnaps) == 0 {
		return nil, nil, nil
	}

	latest := parkSnaps[0]
	for _, s := range parkSnaps[1:] {
		if s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}

	rideSnaps, err := m.repo.Snapshots.ListRideSnapshots(ctx, park.ID, persistence.TimeRange{
		From: latest.RecordedAt,
		To:   latest.RecordedAt.Add(time.Minute),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list ride snapshots: %w", err)
	}

	rides, err := m.repo.Rides.ListByPark(ctx, park.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list rides: %w", err)
	}
	rideByID := make(map[int64]persistence.Ride, len(rides))
	for _, r := range rides {
		rideByID[r.ID] = r
	}

	todayByRide, todayPark, err := m.todayDowntime(ctx, park, now)
	if err != nil {
		return nil, nil, err
	}

	strict := model.StrictVendor(park.IsDisney, park.IsUniversal)

	parkRow := &persistence.ParkLiveRanking{
		ParkID:             park.ID,
		ParkName:           park.Name,
		IsDisney:           park.IsDisney,
		IsUniversal:        park.IsUniversal,
		ShameScore:         latest.ShameScore,
		RidesTracked:       latest.RidesTracked,
		RidesOpen:          latest.RidesOpen,
		RidesDown:          0,
		AvgWaitTime:        latest.AvgWaitTime,
		MaxWaitTime:        latest.MaxWaitTime,
		ParkAppearsOpen:    latest.ParkAppearsOpen,
		TodayDowntimeHours: todayPark,
		RecordedAt:         latest.RecordedAt,
	}

	var rideRows []persistence.RideLiveRanking
	for _, snap := range rideSnaps {
		ride, ok := rideByID[snap.RideID]
		if !ok {
			continue
		}
		// Dormant rides are not ranked; a coaster in months-long
		// refurbishment is not "down".
		if ride.LastOperatedAt != nil && now.Sub(*ride.LastOperatedAt) > m.dormantAfter {
			continue
		}

		down := model.CountsAsDown(strict, snap.Status, snap.ComputedIsOpen)
		if down {
			parkRow.RidesDown++
		}

		today := todayByRide[snap.RideID]
		rideRows = append(rideRows, persistence.RideLiveRanking{
			RideID:             ride.ID,
			RideName:           ride.Name,
			ParkID:             park.ID,
			ParkName:           park.Name,
			Tier:               ride.Tier,
			TierWeight:         model.TierWeight(ride.Tier),
			CurrentStatus:      snap.Status,
			CurrentIsOpen:      snap.ComputedIsOpen,
			CurrentlyDown:      down,
			WaitTime:           snap.WaitTime,
			ParkIsOpen:         latest.ParkAppearsOpen,
			TodayDowntimeHours: today.downtimeHours,
			TodayAvgWait:       today.avgWait,
			TodayPeakWait:      today.peakWait,
			RecordedAt:         latest.RecordedAt,
		})
	}

	return parkRow, rideRows, nil
}

type todayRide struct {
	downtimeHours float64
	avgWait       *float64
	peakWait      *int
}

// todayDowntime sums today's hourly stats (park-local day) per ride and
// for the park.
func (m *Materializer) todayDowntime(ctx context.Context, park persistence.Park, now time.Time) (map[int64]todayRide, float64, error) {
	loc := park.Location()
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	window := persistence.TimeRange{From: dayStart.UTC(), To: now}

	hourly, err := m.repo.Stats.ListRideHourly(ctx, window)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list hourly stats: %w", err)
	}

	byRide := make(map[int64]todayRide)
	var parkTotal float64
	waitSum := make(map[int64]float64)
	waitWeight := make(map[int64]int)

	for _, h := range hourly {
		if h.ParkID != park.ID {
			continue
		}
		t := byRide[h.RideID]
		t.downtimeHours += h.DowntimeHours
		if h.AvgWaitTime != nil && h.SnapshotCount > 0 {
			waitSum[h.RideID] += *h.AvgWaitTime * float64(h.SnapshotCount)
			waitWeight[h.RideID] += h.SnapshotCount
			peak := int(*h.AvgWaitTime + 0.5)
			if t.peakWait == nil || peak > *t.peakWait {
				t.peakWait = &peak
			}
		}
		byRide[h.RideID] = t
		parkTotal += h.DowntimeHours
	}

	for id, t := range byRide {
		if waitWeight[id] > 0 {
			avg := waitSum[id] / float64(waitWeight[id])
			t.avgWait = &avg
			byRide[id] = t
		}
	}

	return byRide, parkTotal, nil
}

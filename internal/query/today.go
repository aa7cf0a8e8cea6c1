package query

import (
	"context"
	"fmt"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// todayParkRankings serves TODAY with the hybrid strategy: closed hours
// come from the hourly stats tables, the still-open current hour comes
// from raw snapshots, and the two are merged weighted by snapshot
// counts. With hourly tables disabled, raw snapshots service the whole
// day.
func (s *Service) todayParkRankings(ctx context.Context, filter model.ParkFilter, limit int, now time.Time) ([]ParkStanding, error) {
	pacific := model.Pacific()
	local := now.In(pacific)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, pacific).UTC()
	hourStart := now.Truncate(time.Hour)

	rawFrom := dayStart
	var hourly []persistence.ParkHourlyStats
	if s.cfg.UseHourlyTables && hourStart.After(dayStart) {
		var err error
		hourly, err = s.repo.Stats.ListParkHourly(ctx, persistence.TimeRange{From: dayStart, To: hourStart})
		if err != nil {
			return nil, fmt.Errorf("failed to list park hourly stats: %w", err)
		}
		rawFrom = hourStart
	}

	rawWindow := persistence.TimeRange{From: rawFrom, To: now}
	raw, err := s.repo.Snapshots.ListAllParkSnapshots(ctx, rawWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to list park snapshots: %w", err)
	}
	rawRides, err := s.repo.Snapshots.ListAllRideSnapshots(ctx, rawWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride snapshots: %w", err)
	}

	parks, err := s.parkIndex(ctx)
	if err != nil {
		return nil, err
	}

	hourlyByPark := make(map[int64][]persistence.ParkHourlyStats)
	for _, h := range hourly {
		hourlyByPark[h.ParkID] = append(hourlyByPark[h.ParkID], h)
	}
	rawByPark := make(map[int64][]persistence.ParkActivitySnapshot)
	for _, r := range raw {
		rawByPark[r.ParkID] = append(rawByPark[r.ParkID], r)
	}
	rideRawByPark := make(map[int64][]persistence.RideStatusSnapshot)
	for _, r := range rawRides {
		rideRawByPark[r.ParkID] = append(rideRawByPark[r.ParkID], r)
	}

	var out []ParkStanding
	for parkID, park := range parks {
		if !matchesFilter(filter, park.IsDisney, park.IsUniversal) {
			continue
		}
		strict := model.StrictVendor(park.IsDisney, park.IsUniversal)
		tail := BuildRawTail(rideRawByPark[parkID], strict, s.interval)
		row, ok := CombineToday(hourlyByPark[parkID], rawByPark[parkID], tail)
		if !ok {
			continue
		}
		row.ParkID = parkID
		row.ParkName = park.Name
		row.Period = model.PeriodToday
		out = append(out, row)
	}

	return rankParks(out, limit), nil
}

// RawTail reduces the raw ride snapshots of the current-hour window with
// the same rules the hourly job applies, so TODAY's downtime keeps
// counting between aggregation runs instead of freezing at the last
// closed hour.
type RawTail struct {
	DowntimeHours float64
	RidesDown     int
}

// BuildRawTail applies the hourly downtime rule to raw ride snapshots:
// every down snapshot contributes one collection interval of downtime,
// and rides_down counts distinct rides seen down at least once.
func BuildRawTail(snaps []persistence.RideStatusSnapshot, strict bool, intervalMinutes int) RawTail {
	downSnaps := 0
	downRides := make(map[int64]bool)
	for _, s := range snaps {
		if model.CountsAsDown(strict, s.Status, s.ComputedIsOpen) {
			downSnaps++
			downRides[s.RideID] = true
		}
	}
	return RawTail{
		DowntimeHours: float64(downSnaps*intervalMinutes) / 60,
		RidesDown:     len(downRides),
	}
}

// CombineToday merges closed-hour stats with the raw current-hour tail
// into one TODAY standing. Averages are weighted by snapshot counts so
// a 50-snapshot morning is not outvoted by a 3-snapshot current hour;
// downtime is the hourly total plus the tail's contribution, and
// rides_down takes the maximum seen across both parts. Returns false
// when neither part has data.
func CombineToday(hourly []persistence.ParkHourlyStats, raw []persistence.ParkActivitySnapshot, tail RawTail) (ParkStanding, bool) {
	if len(hourly) == 0 && len(raw) == 0 {
		return ParkStanding{}, false
	}

	var shameSum, waitSum float64
	var shameWeight, waitWeight int
	var downtime float64
	var peak *int
	ridesDown := 0
	wasOpen := false

	for _, h := range hourly {
		if h.AvgShameScore != nil && h.SnapshotCount > 0 {
			shameSum += *h.AvgShameScore * float64(h.SnapshotCount)
			shameWeight += h.SnapshotCount
		}
		if h.AvgWaitTime != nil && h.SnapshotCount > 0 {
			waitSum += *h.AvgWaitTime * float64(h.SnapshotCount)
			waitWeight += h.SnapshotCount
		}
		downtime += h.TotalDowntimeHours
		if h.RidesDown > ridesDown {
			ridesDown = h.RidesDown
		}
		if h.MaxWaitTime != nil && (peak == nil || *h.MaxWaitTime > *peak) {
			w := *h.MaxWaitTime
			peak = &w
		}
		wasOpen = wasOpen || h.ParkWasOpen
	}

	downtime += tail.DowntimeHours
	if tail.RidesDown > ridesDown {
		ridesDown = tail.RidesDown
	}

	var latest *persistence.ParkActivitySnapshot
	for i := range raw {
		r := raw[i]
		if r.ShameScore != nil {
			shameSum += *r.ShameScore
			shameWeight++
		}
		if r.AvgWaitTime != nil {
			waitSum += *r.AvgWaitTime
			waitWeight++
		}
		if r.MaxWaitTime != nil && (peak == nil || *r.MaxWaitTime > *peak) {
			w := *r.MaxWaitTime
			peak = &w
		}
		wasOpen = wasOpen || r.ParkAppearsOpen
		if latest == nil || r.RecordedAt.After(latest.RecordedAt) {
			latest = &raw[i]
		}
	}

	row := ParkStanding{
		RidesDown:       ridesDown,
		PeakWaitMinutes: peak,
		DowntimeHours:   downtime,
		ParkIsOpen:      wasOpen,
	}
	if latest != nil {
		row.RidesTracked = latest.RidesTracked
		row.RidesOpen = latest.RidesOpen
		reporting := latest.RidesTracked
		row.RidesReporting = &reporting
		row.ParkIsOpen = latest.ParkAppearsOpen
	}
	if shameWeight > 0 {
		avg := shameSum / float64(shameWeight)
		row.ShameScore = &avg
	}
	if waitWeight > 0 {
		avg := waitSum / float64(waitWeight)
		row.AvgWaitMinutes = &avg
	}
	return row, true
}

package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// RideWaitTime is one row of the ride wait-times response. The field
// names are a published contract; renaming any of them breaks clients.
type RideWaitTime struct {
	RideID         int64             `json:"ride_id"`
	RideName       string            `json:"ride_name"`
	ParkID         int64             `json:"park_id"`
	ParkName       string            `json:"park_name"`
	Location       string            `json:"location"`
	AvgWaitMinutes *float64          `json:"avg_wait_minutes"`
	PeakWaitMin    *int              `json:"peak_wait_minutes"`
	CurrentStatus  *model.RideStatus `json:"current_status"`
	CurrentIsOpen  bool              `json:"current_is_open"`
	ParkIsOpen     bool              `json:"park_is_open"`
	Tier           int               `json:"tier"`
	Trend          *float64          `json:"trend_percentage"`
	QueueTimesURL  string            `json:"queue_times_url"`
}

// RideWaitTimes returns the wait-time board for a period. LIVE and TODAY
// read the materialized live rankings; the calendar periods aggregate
// daily stats over the period's window. Every variant is enriched with
// last week's downtime trend.
func (s *Service) RideWaitTimes(ctx context.Context, period model.Period, filter model.ParkFilter, limit int) ([]RideWaitTime, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	key := fmt.Sprintf("waittimes:%s:%s:%d", period, filter, limit)
	return cached(s, key, func() ([]RideWaitTime, error) {
		var rows []RideWaitTime
		var err error
		switch period {
		case model.PeriodLive, model.PeriodToday:
			rows, err = s.liveRideWaitTimes(ctx, filter, limit)
		case model.PeriodYesterday, model.PeriodLastWeek, model.PeriodLastMonth:
			rows, err = s.historicalRideWaitTimes(ctx, period, filter, limit)
		default:
			return nil, fmt.Errorf("unhandled period %q", period)
		}
		if err != nil {
			return nil, err
		}

		trendByRide, err := s.rideTrends(ctx)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Trend = trendByRide[rows[i].RideID]
		}
		return rows, nil
	})
}

func (s *Service) liveRideWaitTimes(ctx context.Context, filter model.ParkFilter, limit int) ([]RideWaitTime, error) {
	rows, err := s.repo.Rankings.ListRideRankings(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride rankings: %w", err)
	}

	parks, err := s.parkIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RideWaitTime, 0, len(rows))
	for _, r := range rows {
		row := RideWaitTime{
			RideID:         r.RideID,
			RideName:       r.RideName,
			ParkID:         r.ParkID,
			ParkName:       r.ParkName,
			AvgWaitMinutes: r.TodayAvgWait,
			PeakWaitMin:    r.TodayPeakWait,
			CurrentStatus:  r.CurrentStatus,
			CurrentIsOpen:  r.CurrentIsOpen,
			ParkIsOpen:     r.ParkIsOpen,
			Tier:           r.Tier,
		}
		if park, ok := parks[r.ParkID]; ok {
			row.Location = park.Country
			row.QueueTimesURL = fmt.Sprintf("https://queue-times.com/parks/%s", park.ExternalID)
		}
		out = append(out, row)
	}
	return out, nil
}

// historicalRideWaitTimes aggregates ride daily stats over a calendar
// window, weighting each day's average by how long the park was open.
// Current-status fields stay null; the period is history.
func (s *Service) historicalRideWaitTimes(ctx context.Context, period model.Period, filter model.ParkFilter, limit int) ([]RideWaitTime, error) {
	window, err := periodWindow(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	daily, err := s.repo.Stats.ListRideDaily(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride daily stats: %w", err)
	}

	parks, err := s.parkIndex(ctx)
	if err != nil {
		return nil, err
	}

	type acc struct {
		parkID     int64
		waitSum    float64
		waitWeight int
		peak       *int
	}
	byRide := make(map[int64]*acc)
	for _, d := range daily {
		a := byRide[d.RideID]
		if a == nil {
			a = &acc{parkID: d.ParkID}
			byRide[d.RideID] = a
		}
		if d.AvgWaitTime != nil && d.OperatingHoursMinutes > 0 {
			a.waitSum += *d.AvgWaitTime * float64(d.OperatingHoursMinutes)
			a.waitWeight += d.OperatingHoursMinutes
		}
		if d.PeakWaitTime != nil && (a.peak == nil || *d.PeakWaitTime > *a.peak) {
			w := *d.PeakWaitTime
			a.peak = &w
		}
	}

	// Ride names come from the catalog, one lookup per park.
	ridesByPark := make(map[int64]map[int64]persistence.Ride)
	rideFor := func(parkID, rideID int64) (persistence.Ride, bool) {
		m, ok := ridesByPark[parkID]
		if !ok {
			listed, err := s.repo.Rides.ListByPark(ctx, parkID)
			if err != nil {
				return persistence.Ride{}, false
			}
			m = make(map[int64]persistence.Ride, len(listed))
			for _, r := range listed {
				m[r.ID] = r
			}
			ridesByPark[parkID] = m
		}
		r, ok := m[rideID]
		return r, ok
	}

	var out []RideWaitTime
	for rideID, a := range byRide {
		park, ok := parks[a.parkID]
		if !ok || !matchesFilter(filter, park.IsDisney, park.IsUniversal) {
			continue
		}
		ride, ok := rideFor(a.parkID, rideID)
		if !ok {
			continue
		}
		row := RideWaitTime{
			RideID:        rideID,
			RideName:      ride.Name,
			ParkID:        a.parkID,
			ParkName:      park.Name,
			Location:      park.Country,
			PeakWaitMin:   a.peak,
			Tier:          ride.Tier,
			QueueTimesURL: fmt.Sprintf("https://queue-times.com/parks/%s", park.ExternalID),
		}
		if a.waitWeight > 0 {
			avg := a.waitSum / float64(a.waitWeight)
			row.AvgWaitMinutes = &avg
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].AvgWaitMinutes, out[j].AvgWaitMinutes
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// rideTrends loads the week-over-week downtime trend from the last
// completed ISO week's materialized rows.
func (s *Service) rideTrends(ctx context.Context) (map[int64]*float64, error) {
	pacific := model.Pacific()
	lastWeek := model.ISOWeekStart(time.Now().In(pacific)).AddDate(0, 0, -7)
	isoYear, isoWeek := lastWeek.ISOWeek()

	weekly, err := s.repo.Stats.ListRideWeekly(ctx, isoYear, isoWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride weekly stats: %w", err)
	}
	trendByRide := make(map[int64]*float64, len(weekly))
	for _, w := range weekly {
		trendByRide[w.RideID] = w.TrendVsPreviousWeek
	}
	return trendByRide, nil
}

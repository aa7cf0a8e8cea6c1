package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// ParkStanding is one row of a park ranking response. The JSON field
// names are a published contract; missing values serialize as null.
type ParkStanding struct {
	Rank            int          `json:"rank"`
	ParkID          int64        `json:"park_id"`
	ParkName        string       `json:"park_name"`
	ShameScore      *float64     `json:"shame_score"`
	RidesTracked    int          `json:"rides_tracked"`
	RidesOpen       int          `json:"rides_open"`
	RidesDown       int          `json:"rides_down"`
	RidesReporting  *int         `json:"rides_reporting"`
	AvgWaitMinutes  *float64     `json:"avg_wait_minutes"`
	PeakWaitMinutes *int         `json:"peak_wait_minutes"`
	DowntimeHours   float64      `json:"downtime_hours"`
	ParkIsOpen      bool         `json:"park_is_open"`
	Trend           *float64     `json:"trend_percentage"`
	Period          model.Period `json:"period"`
}

// ParkRankings returns parks ranked worst-first for a period.
func (s *Service) ParkRankings(ctx context.Context, period model.Period, filter model.ParkFilter, limit int) ([]ParkStanding, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	key := fmt.Sprintf("rankings:parks:%s:%s:%d", period, filter, limit)
	return cached(s, key, func() ([]ParkStanding, error) {
		switch period {
		case model.PeriodLive:
			return s.liveParkRankings(ctx, filter, limit)
		case model.PeriodToday:
			return s.todayParkRankings(ctx, filter, limit, time.Now().UTC())
		case model.PeriodYesterday:
			return s.yesterdayParkRankings(ctx, filter, limit)
		case model.PeriodLastWeek:
			return s.weeklyParkRankings(ctx, filter, limit)
		case model.PeriodLastMonth:
			return s.dailyParkRankings(ctx, model.PeriodLastMonth, filter, limit)
		default:
			return nil, fmt.Errorf("unhandled period %q", period)
		}
	})
}

func (s *Service) liveParkRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]ParkStanding, error) {
	rows, err := s.repo.Rankings.ListParkRankings(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list live park rankings: %w", err)
	}

	out := make([]ParkStanding, 0, len(rows))
	for i, r := range rows {
		reporting := r.RidesTracked
		out = append(out, ParkStanding{
			Rank:            i + 1,
			ParkID:          r.ParkID,
			ParkName:        r.ParkName,
			ShameScore:      r.ShameScore,
			RidesTracked:    r.RidesTracked,
			RidesOpen:       r.RidesOpen,
			RidesDown:       r.RidesDown,
			RidesReporting:  &reporting,
			AvgWaitMinutes:  r.AvgWaitTime,
			PeakWaitMinutes: r.MaxWaitTime,
			DowntimeHours:   r.TodayDowntimeHours,
			ParkIsOpen:      r.ParkAppearsOpen,
			Period:          model.PeriodLive,
		})
	}
	return out, nil
}

// yesterdayParkRankings recomputes YESTERDAY from the stored park
// snapshots: the shame score is the day's average of stored open-park
// scores, never a rederivation from ride rows, so the ranking matches
// what the boards showed while the day was live. Downtime and rides_down
// overlay from the daily rollup once it has run.
func (s *Service) yesterdayParkRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]ParkStanding, error) {
	window, err := periodWindow(model.PeriodYesterday, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	snaps, err := s.repo.Snapshots.ListAllParkSnapshots(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list park snapshots: %w", err)
	}

	daily, err := s.repo.Stats.ListParkDaily(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list park daily stats: %w", err)
	}
	dailyByPark := make(map[int64]persistence.ParkDailyStats, len(daily))
	for _, d := range daily {
		dailyByPark[d.ParkID] = d
	}

	parks, err := s.parkIndex(ctx)
	if err != nil {
		return nil, err
	}

	type acc struct {
		shameSum   float64
		shameCount int
		waitSum    float64
		waitCount  int
		peak       *int
		latest     *persistence.ParkActivitySnapshot
		wasOpen    bool
	}
	byPark := make(map[int64]*acc)
	for i := range snaps {
		sn := snaps[i]
		a := byPark[sn.ParkID]
		if a == nil {
			a = &acc{}
			byPark[sn.ParkID] = a
		}
		if a.latest == nil || sn.RecordedAt.After(a.latest.RecordedAt) {
			a.latest = &snaps[i]
		}
		if !sn.ParkAppearsOpen {
			continue
		}
		a.wasOpen = true
		if sn.ShameScore != nil {
			a.shameSum += *sn.ShameScore
			a.shameCount++
		}
		if sn.AvgWaitTime != nil {
			a.waitSum += *sn.AvgWaitTime
			a.waitCount++
		}
		if sn.MaxWaitTime != nil && (a.peak == nil || *sn.MaxWaitTime > *a.peak) {
			w := *sn.MaxWaitTime
			a.peak = &w
		}
	}

	var out []ParkStanding
	for parkID, a := range byPark {
		park, ok := parks[parkID]
		if !ok || !matchesFilter(filter, park.IsDisney, park.IsUniversal) {
			continue
		}
		row := ParkStanding{
			ParkID:          parkID,
			ParkName:        park.Name,
			PeakWaitMinutes: a.peak,
			ParkIsOpen:      a.wasOpen,
			Period:          model.PeriodYesterday,
		}
		if a.latest != nil {
			row.RidesTracked = a.latest.RidesTracked
			row.RidesOpen = a.latest.RidesOpen
			reporting := a.latest.RidesTracked
			row.RidesReporting = &reporting
		}
		if a.shameCount > 0 {
			avg := a.shameSum / float64(a.shameCount)
			row.ShameScore = &avg
		}
		if a.waitCount > 0 {
			avg := a.waitSum / float64(a.waitCount)
			row.AvgWaitMinutes = &avg
		}
		if d, ok := dailyByPark[parkID]; ok {
			row.DowntimeHours = d.TotalDowntimeHours
			row.RidesDown = d.RidesDown
			if row.PeakWaitMinutes == nil {
				row.PeakWaitMinutes = d.PeakWaitTime
			}
		}
		out = append(out, row)
	}

	return rankParks(out, limit), nil
}

// dailyParkRankings aggregates daily stats over a calendar window; it
// serves LAST_MONTH and backs the LAST_WEEK path.
func (s *Service) dailyParkRankings(ctx context.Context, period model.Period, filter model.ParkFilter, limit int) ([]ParkStanding, error) {
	window, err := periodWindow(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	daily, err := s.repo.Stats.ListParkDaily(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list park daily stats: %w", err)
	}

	parks, err := s.parkIndex(ctx)
	if err != nil {
		return nil, err
	}

	type acc struct {
		shameSum    float64
		shameWeight int
		waitSum     float64
		waitWeight  int
		downtime    float64
		ridesDown   int
		peak        *int
		wasOpen     bool
	}
	byPark := make(map[int64]*acc)
	for _, d := range daily {
		a := byPark[d.ParkID]
		if a == nil {
			a = &acc{}
			byPark[d.ParkID] = a
		}
		if d.AvgShameScore != nil && d.SnapshotCount > 0 {
			a.shameSum += *d.AvgShameScore * float64(d.SnapshotCount)
			a.shameWeight += d.SnapshotCount
		}
		if d.AvgWaitTime != nil && d.SnapshotCount > 0 {
			a.waitSum += *d.AvgWaitTime * float64(d.SnapshotCount)
			a.waitWeight += d.SnapshotCount
		}
		a.downtime += d.TotalDowntimeHours
		if d.RidesDown > a.ridesDown {
			a.ridesDown = d.RidesDown
		}
		if d.PeakWaitTime != nil && (a.peak == nil || *d.PeakWaitTime > *a.peak) {
			w := *d.PeakWaitTime
			a.peak = &w
		}
		a.wasOpen = a.wasOpen || d.ParkWasOpen
	}

	var out []ParkStanding
	for parkID, a := range byPark {
		park, ok := parks[parkID]
		if !ok || !matchesFilter(filter, park.IsDisney, park.IsUniversal) {
			continue
		}
		row := ParkStanding{
			ParkID:          parkID,
			ParkName:        park.Name,
			RidesDown:       a.ridesDown,
			PeakWaitMinutes: a.peak,
			DowntimeHours:   a.downtime,
			ParkIsOpen:      a.wasOpen,
			Period:          period,
		}
		if a.shameWeight > 0 {
			avg := a.shameSum / float64(a.shameWeight)
			row.ShameScore = &avg
		}
		if a.waitWeight > 0 {
			avg := a.waitSum / float64(a.waitWeight)
			row.AvgWaitMinutes = &avg
		}
		out = append(out, row)
	}

	return rankParks(out, limit), nil
}

// weeklyParkRankings serves LAST_WEEK: the Sunday-through-Saturday
// window aggregates from daily stats, with the week-over-week trend
// overlaid from the materialized weekly row.
func (s *Service) weeklyParkRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]ParkStanding, error) {
	rows, err := s.dailyParkRankings(ctx, model.PeriodLastWeek, filter, limit)
	if err != nil {
		return nil, err
	}

	window, err := periodWindow(model.PeriodLastWeek, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	// The window starts on a Sunday, which ISO-dates into the prior
	// week; the Monday inside the window names the right ISO week.
	isoYear, isoWeek := window.From.In(model.Pacific()).AddDate(0, 0, 1).ISOWeek()

	weekly, err := s.repo.Stats.ListParkWeekly(ctx, isoYear, isoWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to list park weekly stats: %w", err)
	}
	trendByPark := make(map[int64]*float64, len(weekly))
	for _, w := range weekly {
		trendByPark[w.ParkID] = w.TrendVsPreviousWeek
	}
	for i := range rows {
		rows[i].Trend = trendByPark[rows[i].ParkID]
	}

	return rows, nil
}

// rankParks sorts worst-first by shame score (nil last, downtime as the
// tiebreak) and assigns ranks.
func rankParks(rows []ParkStanding, limit int) []ParkStanding {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].ShameScore, rows[j].ShameScore
		switch {
		case a == nil && b == nil:
			return rows[i].DowntimeHours > rows[j].DowntimeHours
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return rows[i].DowntimeHours > rows[j].DowntimeHours
		}
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

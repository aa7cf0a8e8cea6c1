package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpulse/parkpulse/internal/config"
	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestCombineTodayWeightsBySnapshotCount(t *testing.T) {
	// A morning of hourly stats (many snapshots) plus a thin raw tail.
	// 12 hourly snapshots at shame 13.0 and 4 raw snapshots at 12.0:
	// (13*12 + 12*4) / 16 = 12.75.
	hourly := []persistence.ParkHourlyStats{
		{AvgShameScore: fp(13.0), SnapshotCount: 6, RidesDown: 5, TotalDowntimeHours: 2.5, ParkWasOpen: true},
		{AvgShameScore: fp(13.0), SnapshotCount: 6, RidesDown: 4, TotalDowntimeHours: 1.5, ParkWasOpen: true},
	}
	now := time.Now().UTC()
	raw := []persistence.ParkActivitySnapshot{
		{ShameScore: fp(12.0), RecordedAt: now.Add(-30 * time.Minute), RidesTracked: 40, RidesOpen: 36, ParkAppearsOpen: true},
		{ShameScore: fp(12.0), RecordedAt: now.Add(-20 * time.Minute), RidesTracked: 40, RidesOpen: 36, ParkAppearsOpen: true},
		{ShameScore: fp(12.0), RecordedAt: now.Add(-10 * time.Minute), RidesTracked: 40, RidesOpen: 37, ParkAppearsOpen: true},
		{ShameScore: fp(12.0), RecordedAt: now, RidesTracked: 40, RidesOpen: 37, ParkAppearsOpen: true},
	}

	row, ok := CombineToday(hourly, raw, RawTail{RidesDown: 4})
	require.True(t, ok)

	require.NotNil(t, row.ShameScore)
	assert.InDelta(t, 12.75, *row.ShameScore, 1e-9)

	// rides_down is the max seen across both parts: 5 from the hourly
	// stats beats the 4 in the raw tail.
	assert.Equal(t, 5, row.RidesDown)

	// Downtime hours accumulate across closed hours.
	assert.InDelta(t, 4.0, row.DowntimeHours, 1e-9)

	// Tracked and open counts come from the latest raw snapshot.
	assert.Equal(t, 40, row.RidesTracked)
	assert.Equal(t, 37, row.RidesOpen)
	assert.True(t, row.ParkIsOpen)
}

func TestCombineTodayRawOnly(t *testing.T) {
	raw := []persistence.ParkActivitySnapshot{
		{ShameScore: fp(3.0), RidesTracked: 10, RidesOpen: 8, ParkAppearsOpen: true},
	}
	row, ok := CombineToday(nil, raw, RawTail{DowntimeHours: 0.5, RidesDown: 2})
	require.True(t, ok)
	require.NotNil(t, row.ShameScore)
	assert.InDelta(t, 3.0, *row.ShameScore, 1e-9)
	assert.Equal(t, 2, row.RidesDown)
	assert.InDelta(t, 0.5, row.DowntimeHours, 1e-9)
}

func TestCombineTodayNoData(t *testing.T) {
	_, ok := CombineToday(nil, nil, RawTail{})
	assert.False(t, ok)
}

func TestCombineTodayNilScoresStayNil(t *testing.T) {
	// A park observed only while closed has no shame samples at all.
	hourly := []persistence.ParkHourlyStats{{SnapshotCount: 6}}
	row, ok := CombineToday(hourly, nil, RawTail{})
	require.True(t, ok)
	assert.Nil(t, row.ShameScore)
	assert.Nil(t, row.AvgWaitMinutes)
}

func TestCombineTodayAddsRawTailDowntime(t *testing.T) {
	// A broken ride keeps accruing downtime inside the still-open hour.
	// Closed hours contribute 12.5h; the raw tail has 9 ride snapshots at
	// a 5-minute cadence, 3 of them down, adding 15 minutes.
	hourly := []persistence.ParkHourlyStats{
		{AvgShameScore: fp(10), SnapshotCount: 6, TotalDowntimeHours: 7.0, ParkWasOpen: true},
		{AvgShameScore: fp(10), SnapshotCount: 6, TotalDowntimeHours: 5.5, ParkWasOpen: true},
	}

	down := model.StatusDown
	operating := model.StatusOperating
	var snaps []persistence.RideStatusSnapshot
	for i := 0; i < 9; i++ {
		st := &operating
		if i < 3 {
			st = &down
		}
		snaps = append(snaps, persistence.RideStatusSnapshot{
			RideID: int64(1 + i%3), Status: st, ComputedIsOpen: st == &operating,
		})
	}

	tail := BuildRawTail(snaps, true, 5)
	assert.InDelta(t, 0.25, tail.DowntimeHours, 1e-9)

	row, ok := CombineToday(hourly, nil, tail)
	require.True(t, ok)
	assert.InDelta(t, 12.75, row.DowntimeHours, 1e-9)
}

func TestBuildRawTailCountsDistinctRides(t *testing.T) {
	down := model.StatusDown
	snaps := []persistence.RideStatusSnapshot{
		{RideID: 1, Status: &down},
		{RideID: 1, Status: &down},
		{RideID: 2, Status: &down},
	}
	tail := BuildRawTail(snaps, true, 10)
	assert.Equal(t, 2, tail.RidesDown)
	assert.InDelta(t, 0.5, tail.DowntimeHours, 1e-9)
}

func TestBuildRawTailAppliesVendorRule(t *testing.T) {
	closed := model.StatusClosed
	snaps := []persistence.RideStatusSnapshot{{RideID: 1, Status: &closed}}

	// CLOSED is a scheduled closure under the strict vendor rule but
	// counts as down for looser feeds.
	assert.Equal(t, 0, BuildRawTail(snaps, true, 10).RidesDown)
	assert.Equal(t, 1, BuildRawTail(snaps, false, 10).RidesDown)
}

func TestRankParksOrdersWorstFirst(t *testing.T) {
	rows := []ParkStanding{
		{ParkName: "quiet", ShameScore: fp(1.2)},
		{ParkName: "meltdown", ShameScore: fp(8.4)},
		{ParkName: "no data", ShameScore: nil, DowntimeHours: 9},
		{ParkName: "rough", ShameScore: fp(5.0), DowntimeHours: 2},
		{ParkName: "rough twin", ShameScore: fp(5.0), DowntimeHours: 4},
	}

	ranked := rankParks(rows, 10)
	require.Len(t, ranked, 5)

	assert.Equal(t, "meltdown", ranked[0].ParkName)
	// Equal shame scores fall back to downtime hours.
	assert.Equal(t, "rough twin", ranked[1].ParkName)
	assert.Equal(t, "rough", ranked[2].ParkName)
	assert.Equal(t, "quiet", ranked[3].ParkName)
	// Parks with no score sort last regardless of downtime.
	assert.Equal(t, "no data", ranked[4].ParkName)

	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestRankParksAppliesLimit(t *testing.T) {
	rows := []ParkStanding{
		{ParkName: "a", ShameScore: fp(1)},
		{ParkName: "b", ShameScore: fp(2)},
		{ParkName: "c", ShameScore: fp(3)},
	}
	ranked := rankParks(rows, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c", ranked[0].ParkName)
}

func TestPeriodWindow(t *testing.T) {
	pacific := model.Pacific()
	// A UTC instant that is still the previous evening in Pacific time:
	// 2026-03-05 03:00 UTC == 2026-03-04 19:00 PST.
	now := time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)

	t.Run("yesterday follows the Pacific calendar", func(t *testing.T) {
		tr, err := periodWindow(model.PeriodYesterday, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, pacific).UTC(), tr.From)
		assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, pacific).UTC(), tr.To)
	})

	t.Run("last week is the previous Sunday-through-Saturday week", func(t *testing.T) {
		tr, err := periodWindow(model.PeriodLastWeek, now)
		require.NoError(t, err)
		// 2026-03-04 is a Wednesday; the latest completed week runs
		// Sunday 02-22 through Saturday 02-28.
		assert.Equal(t, time.Date(2026, 2, 22, 0, 0, 0, 0, pacific).UTC(), tr.From)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, pacific).UTC(), tr.To)
	})

	t.Run("last month is the previous calendar month", func(t *testing.T) {
		tr, err := periodWindow(model.PeriodLastMonth, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, pacific).UTC(), tr.From)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, pacific).UTC(), tr.To)
	})

	t.Run("live has no calendar window", func(t *testing.T) {
		_, err := periodWindow(model.PeriodLive, now)
		assert.Error(t, err)
	})
}

func TestMatchesFilter(t *testing.T) {
	assert.True(t, matchesFilter(model.FilterAllParks, false, false))
	assert.True(t, matchesFilter(model.FilterAllParks, true, false))
	assert.True(t, matchesFilter(model.FilterDisneyUniversal, true, false))
	assert.True(t, matchesFilter(model.FilterDisneyUniversal, false, true))
	assert.False(t, matchesFilter(model.FilterDisneyUniversal, false, false))
}

// The wait-time payload is a published contract; renaming a JSON field
// breaks downstream consumers.
func TestRideWaitTimeFieldNames(t *testing.T) {
	status := model.StatusOperating
	wt := RideWaitTime{
		RideID:        7,
		RideName:      "Space Mountain",
		ParkID:        2,
		ParkName:      "Magic Kingdom",
		Location:      "United States",
		CurrentStatus: &status,
		Tier:          1,
		QueueTimesURL: "https://queue-times.com/parks/6",
	}

	b, err := json.Marshal(wt)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	for _, key := range []string{
		"ride_id", "ride_name", "park_id", "park_name", "location",
		"avg_wait_minutes", "peak_wait_minutes", "current_status",
		"current_is_open", "park_is_open", "tier", "queue_times_url",
	} {
		assert.Contains(t, m, key)
	}
}

func TestChartDataPreservesGaps(t *testing.T) {
	// Chart datasets must serialize missing buckets as JSON null, not
	// zero, so the frontend can break the line.
	chart := Chart{
		Labels: []string{"08:00", "09:00", "10:00"},
		Datasets: []Dataset{
			{Label: "Avg Wait", Data: []*float64{fp(12), nil, fp(18)}},
		},
	}

	b, err := json.Marshal(chart)
	require.NoError(t, err)
	assert.Contains(t, string(b), `[12,null,18]`)
}

func TestParkHeatmapRejectsLive(t *testing.T) {
	s := &Service{}
	_, err := s.ParkHeatmap(context.Background(), 1, model.PeriodLive)
	assert.ErrorIs(t, err, ErrLiveUnsupported)
}

func TestFillHeatmapRanksWorstFirst(t *testing.T) {
	park := &persistence.Park{ID: 1, Name: "Adventure Park", Timezone: "America/Los_Angeles"}
	hm := newHeatmap(park, model.PeriodYesterday, "hourly")
	hm.TimeLabels = []string{"a", "b", "c"}

	rides := []persistence.Ride{
		{ID: 1, Name: "Carousel", Tier: 3},
		{ID: 2, Name: "Big Coaster", Tier: 1},
	}
	// Ride 2 has more total downtime and must rank first; ride 1 has a
	// data gap in the middle column that must stay null.
	values := map[int64][]*float64{
		1: {fp(0.5), nil, fp(0.2)},
		2: {fp(1.0), fp(1.0), fp(0.5)},
	}

	fillHeatmap(hm, rides, 3, func(rideID int64, col int) (float64, bool) {
		v := values[rideID][col]
		if v == nil {
			return 0, false
		}
		return *v, true
	})

	require.Len(t, hm.Entities, 2)
	assert.Equal(t, int64(2), hm.Entities[0].EntityID)
	assert.Equal(t, 1, hm.Entities[0].Rank)
	assert.InDelta(t, 2.5, hm.Entities[0].TotalValue, 1e-9)
	assert.Equal(t, int64(1), hm.Entities[1].EntityID)
	assert.Equal(t, 2, hm.Entities[1].Rank)

	require.Len(t, hm.Matrix, 2)
	assert.Nil(t, hm.Matrix[1][1])

	b, err := json.Marshal(hm)
	require.NoError(t, err)
	for _, key := range []string{"entities", "time_labels", "matrix", "metric_unit", "timezone"} {
		assert.Contains(t, string(b), `"`+key+`"`)
	}
}

// The ranking payload is a published contract: wait fields are named in
// minutes, and rides_reporting is always present.
func TestParkStandingFieldNames(t *testing.T) {
	row := ParkStanding{
		Rank:            1,
		ParkID:          2,
		ParkName:        "Magic Kingdom",
		ShameScore:      fp(7.5),
		RidesReporting:  ip(40),
		AvgWaitMinutes:  fp(22),
		PeakWaitMinutes: ip(90),
		Period:          model.PeriodLive,
	}

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	for _, key := range []string{
		"rank", "park_id", "park_name", "shame_score", "rides_tracked",
		"rides_open", "rides_down", "rides_reporting", "avg_wait_minutes",
		"peak_wait_minutes", "downtime_hours", "park_is_open",
		"trend_percentage", "period",
	} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "avg_wait_time")
}

func TestChartHoursAxis(t *testing.T) {
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, model.Pacific())
	labels, hours := chartHours(day)

	require.Len(t, labels, 18)
	require.Len(t, hours, 18)
	assert.Equal(t, "6:00", labels[0])
	assert.Equal(t, "23:00", labels[17])

	// Hour keys are the UTC instants of the Pacific wall-clock hours.
	assert.Equal(t, time.Date(2026, 3, 4, 6, 0, 0, 0, model.Pacific()).UTC(), hours[0])
	assert.Equal(t, time.Date(2026, 3, 4, 23, 0, 0, 0, model.Pacific()).UTC(), hours[17])
}

func TestChartDay(t *testing.T) {
	// 2026-03-05 03:00 UTC is still the evening of 03-04 Pacific.
	now := time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)

	day, err := chartDay(model.PeriodToday, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, model.Pacific()), day)

	day, err = chartDay(model.PeriodYesterday, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, model.Pacific()), day)

	_, err = chartDay(model.PeriodLastWeek, now)
	assert.Error(t, err)
}

func TestChartDaysLabels(t *testing.T) {
	pacific := model.Pacific()
	window := persistence.TimeRange{
		From: time.Date(2026, 2, 27, 0, 0, 0, 0, pacific).UTC(),
		To:   time.Date(2026, 3, 2, 0, 0, 0, 0, pacific).UTC(),
	}
	labels, keys := chartDays(window)
	assert.Equal(t, []string{"Feb 27", "Feb 28", "Mar 01"}, labels)
	assert.Equal(t, []string{"2026-02-27", "2026-02-28", "2026-03-01"}, keys)
}

// --- fakes over the persistence interfaces; unimplemented methods panic.

type fakeParksQ struct {
	persistence.ParksRepo
	parks []persistence.Park
}

func (f *fakeParksQ) ListActive(ctx context.Context) ([]persistence.Park, error) {
	return f.parks, nil
}

func (f *fakeParksQ) GetByID(ctx context.Context, id int64) (*persistence.Park, error) {
	for i := range f.parks {
		if f.parks[i].ID == id {
			return &f.parks[i], nil
		}
	}
	return nil, nil
}

type fakeRidesQ struct {
	persistence.RidesRepo
	rides []persistence.Ride
}

func (f *fakeRidesQ) ListByPark(ctx context.Context, parkID int64) ([]persistence.Ride, error) {
	var out []persistence.Ride
	for _, r := range f.rides {
		if r.ParkID == parkID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSnapshotsQ struct {
	persistence.SnapshotsRepo
	parkSnaps []persistence.ParkActivitySnapshot
	rideSnaps []persistence.RideStatusSnapshot
}

func (f *fakeSnapshotsQ) ListAllParkSnapshots(ctx context.Context, tr persistence.TimeRange) ([]persistence.ParkActivitySnapshot, error) {
	return f.parkSnaps, nil
}

func (f *fakeSnapshotsQ) ListAllRideSnapshots(ctx context.Context, tr persistence.TimeRange) ([]persistence.RideStatusSnapshot, error) {
	return f.rideSnaps, nil
}

type fakeStatsQ struct {
	persistence.StatsRepo
	parkDaily  []persistence.ParkDailyStats
	rideDaily  []persistence.RideDailyStats
	parkHourly []persistence.ParkHourlyStats
	rideWeekly []persistence.RideWeeklyStats
	parkWeekly []persistence.ParkWeeklyStats
}

func (f *fakeStatsQ) ListParkDaily(ctx context.Context, tr persistence.TimeRange) ([]persistence.ParkDailyStats, error) {
	return f.parkDaily, nil
}

func (f *fakeStatsQ) ListRideDaily(ctx context.Context, tr persistence.TimeRange) ([]persistence.RideDailyStats, error) {
	return f.rideDaily, nil
}

func (f *fakeStatsQ) ListParkHourly(ctx context.Context, tr persistence.TimeRange) ([]persistence.ParkHourlyStats, error) {
	return f.parkHourly, nil
}

func (f *fakeStatsQ) ListRideWeekly(ctx context.Context, isoYear, isoWeek int) ([]persistence.RideWeeklyStats, error) {
	return f.rideWeekly, nil
}

func (f *fakeStatsQ) ListParkWeekly(ctx context.Context, isoYear, isoWeek int) ([]persistence.ParkWeeklyStats, error) {
	return f.parkWeekly, nil
}

type fakeRankingsQ struct {
	persistence.RankingsRepo
	rideRows  []persistence.RideLiveRanking
	rideCalls int
}

func (f *fakeRankingsQ) ListRideRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]persistence.RideLiveRanking, error) {
	f.rideCalls++
	return f.rideRows, nil
}

func newTestService(repo *persistence.Repository) *Service {
	return New(repo, nil, config.QueryConfig{DefaultLimit: 50, UseHourlyTables: true, LiveWindowHours: 1}, 10, 0)
}

func TestYesterdayParkRankingsAveragesStoredOpenScores(t *testing.T) {
	at := time.Now().UTC().Add(-24 * time.Hour)
	repo := &persistence.Repository{
		Parks: &fakeParksQ{parks: []persistence.Park{
			{ID: 1, Name: "Adventure Park", Active: true},
		}},
		Snapshots: &fakeSnapshotsQ{parkSnaps: []persistence.ParkActivitySnapshot{
			// Scores recorded while the park appeared closed never count.
			{ParkID: 1, RecordedAt: at, ShameScore: fp(99), ParkAppearsOpen: false, RidesTracked: 30},
			{ParkID: 1, RecordedAt: at.Add(time.Hour), ShameScore: fp(10), AvgWaitTime: fp(20), MaxWaitTime: ip(60), ParkAppearsOpen: true, RidesTracked: 30, RidesOpen: 25},
			{ParkID: 1, RecordedAt: at.Add(2 * time.Hour), ShameScore: fp(20), AvgWaitTime: fp(40), MaxWaitTime: ip(80), ParkAppearsOpen: true, RidesTracked: 32, RidesOpen: 28},
		}},
		Stats: &fakeStatsQ{parkDaily: []persistence.ParkDailyStats{
			{ParkID: 1, TotalDowntimeHours: 3.5, RidesDown: 4},
		}},
	}

	rows, err := newTestService(repo).yesterdayParkRankings(context.Background(), model.FilterAllParks, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.NotNil(t, row.ShameScore)
	assert.InDelta(t, 15.0, *row.ShameScore, 1e-9)
	require.NotNil(t, row.AvgWaitMinutes)
	assert.InDelta(t, 30.0, *row.AvgWaitMinutes, 1e-9)
	require.NotNil(t, row.PeakWaitMinutes)
	assert.Equal(t, 80, *row.PeakWaitMinutes)

	// Downtime and rides_down overlay from the daily rollup.
	assert.InDelta(t, 3.5, row.DowntimeHours, 1e-9)
	assert.Equal(t, 4, row.RidesDown)

	// Tracked counts come from the latest snapshot of the day.
	assert.Equal(t, 32, row.RidesTracked)
	assert.Equal(t, model.PeriodYesterday, row.Period)
}

func TestRideWaitTimesYesterdayReadsDailyStats(t *testing.T) {
	rankings := &fakeRankingsQ{}
	repo := &persistence.Repository{
		Parks: &fakeParksQ{parks: []persistence.Park{
			{ID: 1, Name: "Adventure Park", ExternalID: "16", Country: "United States", Active: true},
		}},
		Rides: &fakeRidesQ{rides: []persistence.Ride{
			{ID: 7, ParkID: 1, Name: "Big Coaster", Tier: 1},
		}},
		Stats: &fakeStatsQ{
			rideDaily: []persistence.RideDailyStats{
				{RideID: 7, ParkID: 1, AvgWaitTime: fp(20), OperatingHoursMinutes: 300, PeakWaitTime: ip(55)},
				{RideID: 7, ParkID: 1, AvgWaitTime: fp(40), OperatingHoursMinutes: 900, PeakWaitTime: ip(95)},
			},
			rideWeekly: []persistence.RideWeeklyStats{
				{RideID: 7, TrendVsPreviousWeek: fp(-12.5)},
			},
		},
		Rankings: rankings,
	}

	rows, err := newTestService(repo).RideWaitTimes(context.Background(), model.PeriodYesterday, model.FilterAllParks, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, int64(7), row.RideID)
	assert.Equal(t, "Big Coaster", row.RideName)

	// Each day's average weights by how long the park was open:
	// (20*300 + 40*900) / 1200 = 35.
	require.NotNil(t, row.AvgWaitMinutes)
	assert.InDelta(t, 35.0, *row.AvgWaitMinutes, 1e-9)
	require.NotNil(t, row.PeakWaitMin)
	assert.Equal(t, 95, *row.PeakWaitMin)
	require.NotNil(t, row.Trend)
	assert.InDelta(t, -12.5, *row.Trend, 1e-9)

	// History never touches the live rankings table.
	assert.Equal(t, 0, rankings.rideCalls)
}

func TestRideWaitTimesLiveReadsRankings(t *testing.T) {
	rankings := &fakeRankingsQ{rideRows: []persistence.RideLiveRanking{
		{RideID: 7, RideName: "Big Coaster", ParkID: 1, ParkName: "Adventure Park", Tier: 1, TodayAvgWait: fp(25)},
	}}
	repo := &persistence.Repository{
		Parks: &fakeParksQ{parks: []persistence.Park{
			{ID: 1, Name: "Adventure Park", ExternalID: "16", Country: "United States", Active: true},
		}},
		Stats:    &fakeStatsQ{},
		Rankings: rankings,
	}

	rows, err := newTestService(repo).RideWaitTimes(context.Background(), model.PeriodLive, model.FilterAllParks, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rankings.rideCalls)
	require.NotNil(t, rows[0].AvgWaitMinutes)
	assert.InDelta(t, 25.0, *rows[0].AvgWaitMinutes, 1e-9)
	assert.Equal(t, "United States", rows[0].Location)
}

func TestParkChartHourlyAxis(t *testing.T) {
	repo := &persistence.Repository{
		Parks: &fakeParksQ{parks: []persistence.Park{
			{ID: 1, Name: "Adventure Park", Active: true},
		}},
		Stats: &fakeStatsQ{},
	}

	chart, err := newTestService(repo).ParkChart(context.Background(), 1, model.PeriodYesterday)
	require.NoError(t, err)

	assert.Equal(t, "line", chart.ChartType)
	assert.Equal(t, "hourly", chart.Granularity)
	require.Len(t, chart.Labels, 18)
	assert.Equal(t, "6:00", chart.Labels[0])
	assert.Equal(t, "23:00", chart.Labels[17])

	require.Len(t, chart.Datasets, 2)
	for _, ds := range chart.Datasets {
		assert.Equal(t, int64(1), ds.EntityID)
		assert.Equal(t, "Adventure Park", ds.ParkName)
		require.Len(t, ds.Data, 18)
	}

	b, err := json.Marshal(chart)
	require.NoError(t, err)
	for _, key := range []string{"chart_type", "granularity", "entity_id", "park_name"} {
		assert.Contains(t, string(b), `"`+key+`"`)
	}
}

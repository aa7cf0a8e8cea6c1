package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

func TestAggregateParkDay(t *testing.T) {
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	park := persistence.Park{ID: 1, Name: "Adventure Park", Timezone: "UTC"}
	dayStart := date

	down := model.StatusDown
	operating := model.StatusOperating

	snaps := &fakeSnapshots{}
	// Ride 7: a two-snapshot outage straddling park opening, then
	// recovery with waits climbing into the park-open window. Only the
	// down snapshot inside the open window counts as downtime.
	times := []time.Time{
		dayStart.Add(9 * time.Hour),
		dayStart.Add(9*time.Hour + 10*time.Minute),
		dayStart.Add(9*time.Hour + 20*time.Minute),
		dayStart.Add(9*time.Hour + 30*time.Minute),
		dayStart.Add(9*time.Hour + 40*time.Minute),
	}
	for i, at := range times {
		s := persistence.RideStatusSnapshot{RideID: 7, ParkID: 1, RecordedAt: at}
		switch i {
		case 1, 2:
			s.Status = &down
		default:
			s.Status = &operating
			s.ComputedIsOpen = true
			w := 30 + i*10
			s.WaitTime = &w
		}
		snaps.rideSnaps = append(snaps.rideSnaps, s)
	}

	// The park appeared open for the last three snapshot instants only;
	// the peak wait must be scoped to them.
	for i, at := range times {
		snaps.parkSnaps = append(snaps.parkSnaps, persistence.ParkActivitySnapshot{
			ParkID:          1,
			RecordedAt:      at,
			ParkAppearsOpen: i >= 2,
			ShameScore:      fp(float64(i)),
		})
	}

	// Two recorded flips: OPERATING -> DOWN -> OPERATING.
	snaps.changes = []persistence.StatusChange{
		{RideID: 7, FromStatus: &operating, ToStatus: &down, ChangedAt: times[1]},
		{RideID: 7, FromStatus: &down, ToStatus: &operating, ChangedAt: times[3]},
	}

	stats := &fakeStats{}
	repo := &persistence.Repository{
		Snapshots: snaps,
		Stats:     stats,
		Rides:     &fakeRideList{rides: []persistence.Ride{{ID: 7, ParkID: 1, Tier: 2}}},
	}
	a := New(repo, 10)

	n, err := a.aggregateParkDay(context.Background(), park, date)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, stats.rideDaily, 1)
	ride := stats.rideDaily[0]
	assert.Equal(t, date, ride.StatDate)
	assert.Equal(t, 30, ride.UptimeMinutes)
	assert.Equal(t, 10, ride.DowntimeMinutes)
	assert.Equal(t, 10, ride.LongestDowntimeMinutes)
	// Three open park instants at a 10-minute cadence.
	assert.Equal(t, 30, ride.OperatingHoursMinutes)
	assert.Equal(t, 2, ride.StatusChanges)
	assert.Equal(t, 5, ride.SnapshotCount)

	// Waits were 30, 60, 70; the 30 fell before the park opened, so the
	// peak considers only the later two.
	require.NotNil(t, ride.MinWaitTime)
	assert.Equal(t, 30, *ride.MinWaitTime)
	require.NotNil(t, ride.MaxWaitTime)
	assert.Equal(t, 70, *ride.MaxWaitTime)
	require.NotNil(t, ride.PeakWaitTime)
	assert.Equal(t, 70, *ride.PeakWaitTime)

	require.Len(t, stats.parkDaily, 1)
	parkRow := stats.parkDaily[0]
	assert.InDelta(t, 10.0/60.0, parkRow.TotalDowntimeHours, 1e-9)
	assert.Equal(t, 1, parkRow.RidesDown)
	assert.True(t, parkRow.ParkWasOpen)
	require.NotNil(t, parkRow.AvgShameScore)
	assert.InDelta(t, 2.0, *parkRow.AvgShameScore, 1e-9)
}

func TestAggregateParkDayClosedParkAccruesNoDowntime(t *testing.T) {
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	park := persistence.Park{ID: 1, Timezone: "UTC"}
	closed := model.StatusClosed

	// An hour of overnight CLOSED snapshots while the park itself is
	// closed: no downtime, no outage streak.
	snaps := &fakeSnapshots{}
	for i := 0; i < 6; i++ {
		at := date.Add(2*time.Hour + time.Duration(i*10)*time.Minute)
		snaps.rideSnaps = append(snaps.rideSnaps, persistence.RideStatusSnapshot{
			RideID: 7, ParkID: 1, RecordedAt: at, Status: &closed,
		})
		snaps.parkSnaps = append(snaps.parkSnaps, persistence.ParkActivitySnapshot{
			ParkID: 1, RecordedAt: at, ParkAppearsOpen: false,
		})
	}

	stats := &fakeStats{}
	repo := &persistence.Repository{
		Snapshots: snaps,
		Stats:     stats,
		Rides:     &fakeRideList{rides: []persistence.Ride{{ID: 7, ParkID: 1, Tier: 2}}},
	}
	a := New(repo, 10)

	_, err := a.aggregateParkDay(context.Background(), park, date)
	require.NoError(t, err)

	require.Len(t, stats.rideDaily, 1)
	assert.Equal(t, 0, stats.rideDaily[0].DowntimeMinutes)
	assert.Equal(t, 0, stats.rideDaily[0].LongestDowntimeMinutes)

	require.Len(t, stats.parkDaily, 1)
	assert.Zero(t, stats.parkDaily[0].TotalDowntimeHours)
	assert.Equal(t, 0, stats.parkDaily[0].RidesDown)
	assert.False(t, stats.parkDaily[0].ParkWasOpen)
}

func TestAggregateParkDayUsesLocalWindow(t *testing.T) {
	// A Tokyo park's calendar day starts at 15:00 UTC the previous day.
	park := persistence.Park{ID: 2, Timezone: "Asia/Tokyo"}
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	var gotWindow persistence.TimeRange
	snaps := &windowRecordingSnapshots{onList: func(tr persistence.TimeRange) { gotWindow = tr }}
	repo := &persistence.Repository{
		Snapshots: snaps,
		Stats:     &fakeStats{},
		Rides:     &fakeRideList{},
	}
	a := New(repo, 10)

	_, err := a.aggregateParkDay(context.Background(), park, date)
	require.NoError(t, err)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	wantFrom := time.Date(2026, 2, 10, 0, 0, 0, 0, tokyo).UTC()
	assert.Equal(t, wantFrom, gotWindow.From)
	assert.Equal(t, wantFrom.AddDate(0, 0, 1), gotWindow.To)
}

type windowRecordingSnapshots struct {
	persistence.SnapshotsRepo
	onList func(persistence.TimeRange)
}

func (f *windowRecordingSnapshots) ListRideSnapshots(_ context.Context, _ int64, tr persistence.TimeRange) ([]persistence.RideStatusSnapshot, error) {
	f.onList(tr)
	return nil, nil
}

func (f *windowRecordingSnapshots) ListParkSnapshots(context.Context, int64, persistence.TimeRange) ([]persistence.ParkActivitySnapshot, error) {
	return nil, nil
}

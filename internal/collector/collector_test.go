package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/sources"
)

func TestShameScore(t *testing.T) {
	tests := []struct {
		name        string
		downWeight  int
		totalWeight int
		want        float64
	}{
		{"nothing down", 0, 20, 0},
		{"everything down", 20, 20, 10},
		// One tier-1 headliner (weight 3) down out of two tier-1 rides
		// and three tier-3 fillers: 3 / (3+3+1+1+1) = 0.333... -> 3.3.
		{"weighted ratio rounds to one decimal", 3, 9, 3.3},
		// Half the weighted fleet down lands exactly on 5.0.
		{"half down", 6, 12, 5.0},
		{"zero total weight", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ShameScore(tt.downWeight, tt.totalWeight), 1e-9)
		})
	}
}

func TestParkAppearsOpen(t *testing.T) {
	const threshold = 3
	const fraction = 0.2

	tests := []struct {
		name    string
		open    int
		tracked int
		want    bool
	}{
		{"no rides tracked", 0, 0, false},
		{"below absolute threshold", 2, 10, false},
		{"meets absolute threshold", 3, 10, true},
		// Large park: 20% of 40 is 8, which overrides the threshold of 3.
		{"below fractional requirement", 7, 40, false},
		{"meets fractional requirement", 8, 40, true},
		// Tiny park: ceil(0.2*4)=1 but the absolute floor of 3 still applies.
		{"tiny park needs the floor", 2, 4, false},
		{"tiny park fully open", 4, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParkAppearsOpen(tt.open, tt.tracked, threshold, fraction))
		})
	}
}

func TestComputeIsOpen(t *testing.T) {
	operating := model.StatusOperating
	down := model.StatusDown
	yes, no := true, false

	tests := []struct {
		name    string
		reading sources.RideReading
		want    bool
	}{
		{"explicit OPERATING", sources.RideReading{Status: &operating}, true},
		{"explicit DOWN", sources.RideReading{Status: &down}, false},
		// The status wins even when the open flag disagrees.
		{"status overrides open flag", sources.RideReading{Status: &down, IsOpen: &yes}, false},
		{"open flag only", sources.RideReading{IsOpen: &yes}, true},
		{"closed flag only", sources.RideReading{IsOpen: &no}, false},
		{"no signal at all", sources.RideReading{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeIsOpen(tt.reading))
		})
	}
}

func TestTrackStatusChange(t *testing.T) {
	c := &Collector{lastStatus: make(map[int64]*model.RideStatus)}
	now := time.Now().UTC()

	operating := model.StatusOperating
	down := model.StatusDown

	// First observation never emits a change.
	_, changed := c.trackStatusChange(1, &operating, now)
	assert.False(t, changed)

	// Same status again: no change.
	_, changed = c.trackStatusChange(1, &operating, now.Add(10*time.Minute))
	assert.False(t, changed)

	// Flip to DOWN emits a transition carrying both sides.
	change, changed := c.trackStatusChange(1, &down, now.Add(20*time.Minute))
	require.True(t, changed)
	assert.Equal(t, int64(1), change.RideID)
	require.NotNil(t, change.FromStatus)
	assert.Equal(t, operating, *change.FromStatus)
	require.NotNil(t, change.ToStatus)
	assert.Equal(t, down, *change.ToStatus)

	// Losing the status entirely also counts as a change.
	change, changed = c.trackStatusChange(1, nil, now.Add(30*time.Minute))
	require.True(t, changed)
	assert.Nil(t, change.ToStatus)

	// A second ride is tracked independently.
	_, changed = c.trackStatusChange(2, &down, now)
	assert.False(t, changed)
}

func TestStatusEqual(t *testing.T) {
	operating := model.StatusOperating
	alsoOperating := model.StatusOperating
	down := model.StatusDown

	assert.True(t, statusEqual(nil, nil))
	assert.True(t, statusEqual(&operating, &alsoOperating))
	assert.False(t, statusEqual(&operating, &down))
	assert.False(t, statusEqual(nil, &operating))
	assert.False(t, statusEqual(&down, nil))
}

func TestBuildParkSnapshotRespectsStrictVendors(t *testing.T) {
	down := model.StatusDown
	closed := model.StatusClosed

	snaps := []persistence.RideStatusSnapshot{
		{RideID: 1, Status: &down},
		{RideID: 2, Status: &closed},
		{RideID: 3, ComputedIsOpen: true},
		{RideID: 4, ComputedIsOpen: true},
		{RideID: 5, ComputedIsOpen: true},
	}

	loose := countDownRides(false, snaps)
	strict := countDownRides(true, snaps)

	// Disney and Universal report DOWN explicitly; only that counts.
	assert.Equal(t, 1, strict)
	// Other parks treat CLOSED the same as DOWN.
	assert.Equal(t, 2, loose)
}

// countDownRides mirrors the per-snapshot down decision used when a
// park snapshot is assembled.
func countDownRides(strict bool, snaps []persistence.RideStatusSnapshot) int {
	n := 0
	for _, s := range snaps {
		if model.CountsAsDown(strict, s.Status, s.ComputedIsOpen) {
			n++
		}
	}
	return n
}

package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJobsFile(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const jobsYAML = `
jobs:
  - name: collect-snapshots
    type: collect
    interval: 10m
    description: Collect park snapshots
    enabled: true
  - name: nightly-aggregate
    type: aggregate
    interval: 24h
    description: Aggregate yesterday
    enabled: false
`

func TestNewValidatesHandlers(t *testing.T) {
	path := writeJobsFile(t, jobsYAML)

	// Missing handler for an enabled job type is a config error.
	_, err := New(path, map[string]JobFunc{})
	assert.Error(t, err)

	// Disabled jobs do not need handlers.
	s, err := New(path, map[string]JobFunc{
		"collect": func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	assert.Len(t, s.ListJobs(), 2)
}

func TestNewRejectsZeroInterval(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - name: broken
    type: collect
    enabled: true
`)
	_, err := New(path, map[string]JobFunc{
		"collect": func(context.Context) error { return nil },
	})
	assert.Error(t, err)
}

func TestRunJob(t *testing.T) {
	path := writeJobsFile(t, jobsYAML)

	var runs atomic.Int64
	s, err := New(path, map[string]JobFunc{
		"collect": func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.RunJob(context.Background(), "collect-snapshots"))
	assert.Equal(t, int64(1), runs.Load())

	status := s.GetStatus()
	require.Contains(t, status.LastRuns, "collect-snapshots")
	assert.True(t, status.LastRuns["collect-snapshots"].Success)

	assert.Error(t, s.RunJob(context.Background(), "no-such-job"))
}

func TestRunJobReportsFailure(t *testing.T) {
	path := writeJobsFile(t, jobsYAML)

	s, err := New(path, map[string]JobFunc{
		"collect": func(context.Context) error { return errors.New("upstream down") },
	})
	require.NoError(t, err)

	err = s.RunJob(context.Background(), "collect-snapshots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	status := s.GetStatus()
	assert.False(t, status.LastRuns["collect-snapshots"].Success)
}

func TestStartRunsEnabledJobsImmediately(t *testing.T) {
	path := writeJobsFile(t, jobsYAML)

	var collects, aggregates atomic.Int64
	s, err := New(path, map[string]JobFunc{
		"collect": func(context.Context) error {
			collects.Add(1)
			return nil
		},
		"aggregate": func(context.Context) error {
			aggregates.Add(1)
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// The enabled job fires once at startup, well before its interval.
	require.Eventually(t, func() bool { return collects.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), aggregates.Load())
	assert.True(t, s.GetStatus().Running)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, s.GetStatus().Running)
}

func TestGetStatusCounts(t *testing.T) {
	path := writeJobsFile(t, jobsYAML)
	s, err := New(path, map[string]JobFunc{
		"collect": func(context.Context) error { return nil },
	})
	require.NoError(t, err)

	status := s.GetStatus()
	assert.Equal(t, 1, status.EnabledJobs)
	assert.Equal(t, 1, status.DisabledJobs)
	assert.False(t, status.Running)
}

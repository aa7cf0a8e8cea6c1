// Package query serves ranking, chart, and heatmap reads. Period
// semantics: LIVE reads the materialized ranking tables; TODAY combines
// closed-hour stats with the raw current-hour tail; YESTERDAY,
// LAST_WEEK, and LAST_MONTH read aggregates over calendar windows
// pinned to US Pacific time so "yesterday" means the same thing for
// every caller regardless of park timezone.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/cache"
	"github.com/parkpulse/parkpulse/internal/config"
	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// ErrLiveUnsupported is returned by endpoints that have no live
// representation, such as the heatmap.
var ErrLiveUnsupported = errors.New("period LIVE is not supported for this query")

// ErrNotFound is returned for unknown park or ride IDs.
var ErrNotFound = errors.New("not found")

// Service answers ranking and chart queries.
type Service struct {
	repo  *persistence.Repository
	cache cache.Cache
	cfg   config.QueryConfig
	// interval is the collection cadence in minutes; the TODAY raw tail
	// converts down snapshots to downtime with it.
	interval int
	ttl      time.Duration
}

// New creates a query service. c may be nil to disable caching;
// snapshotIntervalMinutes should match the collector's cadence.
func New(repo *persistence.Repository, c cache.Cache, cfg config.QueryConfig, snapshotIntervalMinutes int, ttl time.Duration) *Service {
	if snapshotIntervalMinutes <= 0 {
		snapshotIntervalMinutes = 10
	}
	return &Service{repo: repo, cache: c, cfg: cfg, interval: snapshotIntervalMinutes, ttl: ttl}
}

// cached wraps a query with the byte cache. The value is JSON; cache
// hits bypass the loader entirely.
func cached[T any](s *Service, key string, load func() (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		if b, ok := s.cache.Get(key); ok {
			var v T
			if err := json.Unmarshal(b, &v); err == nil {
				return v, nil
			}
			log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
		}
	}

	v, err := load()
	if err != nil {
		return zero, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(v); err == nil {
			s.cache.Set(key, b, s.ttl)
		}
	}
	return v, nil
}

// periodWindow returns the UTC window for a calendar period, pinned to
// Pacific time. LIVE and TODAY are handled by their own paths.
func periodWindow(p model.Period, now time.Time) (persistence.TimeRange, error) {
	pacific := model.Pacific()
	local := now.In(pacific)
	todayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, pacific)

	switch p {
	case model.PeriodYesterday:
		return persistence.TimeRange{
			From: todayStart.AddDate(0, 0, -1).UTC(),
			To:   todayStart.UTC(),
		}, nil
	case model.PeriodLastWeek:
		// Rankings use a fixed Sunday-through-Saturday week, so the most
		// recent completed window ends on the latest Sunday midnight.
		sunday := todayStart.AddDate(0, 0, -int(todayStart.Weekday()))
		return persistence.TimeRange{
			From: sunday.AddDate(0, 0, -7).UTC(),
			To:   sunday.UTC(),
		}, nil
	case model.PeriodLastMonth:
		monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, pacific)
		return persistence.TimeRange{
			From: monthStart.AddDate(0, -1, 0).UTC(),
			To:   monthStart.UTC(),
		}, nil
	default:
		return persistence.TimeRange{}, fmt.Errorf("period %s has no calendar window", p)
	}
}

// matchesFilter applies the park filter to a park's vendor flags.
func matchesFilter(filter model.ParkFilter, isDisney, isUniversal bool) bool {
	if filter == model.FilterDisneyUniversal {
		return isDisney || isUniversal
	}
	return true
}

// parkVendors loads the vendor flags and names of all parks for
// filter application over aggregate rows.
func (s *Service) parkIndex(ctx context.Context) (map[int64]persistence.Park, error) {
	parks, err := s.repo.Parks.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parks: %w", err)
	}
	idx := make(map[int64]persistence.Park, len(parks))
	for _, p := range parks {
		idx[p.ID] = p
	}
	return idx, nil
}

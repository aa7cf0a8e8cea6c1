// Package collector runs the periodic snapshot pipeline: fetch each
// active park from the upstream source, resolve rides, derive open
// state and the park shame score, and persist one atomic cycle per
// park.
package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/config"
	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/resolver"
	"github.com/parkpulse/parkpulse/internal/sources"
)

// Collector drives one source across all active parks.
type Collector struct {
	repo     *persistence.Repository
	source   sources.Client
	resolver *resolver.Resolver
	cfg      config.CollectorConfig

	mu         sync.Mutex
	lastStatus map[int64]*model.RideStatus
}

// New creates a collector.
func New(repo *persistence.Repository, source sources.Client, res *resolver.Resolver, cfg config.CollectorConfig) *Collector {
	return &Collector{
		repo:       repo,
		source:     source,
		resolver:   res,
		cfg:        cfg,
		lastStatus: make(map[int64]*model.RideStatus),
	}
}

// CycleReport summarizes one collection cycle.
type CycleReport struct {
	RecordedAt    time.Time
	ParksTotal    int
	ParksOK       int
	ParksFailed   int
	RidesRecorded int
	Elapsed       time.Duration
}

// RunCycle collects every active park once. All snapshots written in the
// cycle share one recorded_at so downstream joins on timestamp equality
// hold.
func (c *Collector) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	recordedAt := start.UTC().Truncate(time.Minute)

	parks, err := c.listParks(ctx)
	if err != nil {
		return nil, err
	}

	report := &CycleReport{RecordedAt: recordedAt, ParksTotal: len(parks)}

	type outcome struct {
		rides int
		err   error
	}

	jobs := make(chan persistence.Park)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for park := range jobs {
				n, err := c.collectPark(ctx, park, recordedAt)
				results <- outcome{rides: n, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, park := range parks {
			select {
			case jobs <- park:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			report.ParksFailed++
			log.Error().Err(res.err).Msg("park collection failed")
			continue
		}
		report.ParksOK++
		report.RidesRecorded += res.rides
	}

	report.Elapsed = time.Since(start)
	log.Info().
		Time("recorded_at", recordedAt).
		Int("parks_ok", report.ParksOK).
		Int("parks_failed", report.ParksFailed).
		Int("rides", report.RidesRecorded).
		Dur("elapsed", report.Elapsed).
		Msg("collection cycle complete")

	return report, nil
}

func (c *Collector) listParks(ctx context.Context) ([]persistence.Park, error) {
	if c.cfg.FilterCountry != "" {
		parks, err := c.repo.Parks.ListByCountry(ctx, c.cfg.FilterCountry)
		if err != nil {
			return nil, fmt.Errorf("failed to list parks for country %s: %w", c.cfg.FilterCountry, err)
		}
		return parks, nil
	}
	parks, err := c.repo.Parks.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active parks: %w", err)
	}
	return parks, nil
}

// collectPark fetches, resolves, and persists one park's snapshot.
func (c *Collector) collectPark(ctx context.Context, park persistence.Park, recordedAt time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ParkBudget)
	defer cancel()

	reading, err := c.source.FetchPark(ctx, park.ExternalID)
	if err != nil {
		c.logQuality(ctx, model.IssueTransportError, "park", park.ExternalID, err.Error())
		return 0, fmt.Errorf("park %s: %w", park.Name, err)
	}

	snaps := make([]persistence.RideStatusSnapshot, 0, len(reading.Rides))
	var changes []persistence.StatusChange

	for _, rr := range reading.Rides {
		res, err := c.resolver.Resolve(ctx, park.ID, rr.ExternalID, rr.Name)
		if err != nil {
			// Unresolved rides land here too; the quality log is the
			// operator's signal to add a mapping or enable auto-create.
			c.logQuality(ctx, model.IssueMappingFailed, "ride", rr.ExternalID, err.Error())
			continue
		}

		computedOpen := computeIsOpen(rr)
		snap := persistence.RideStatusSnapshot{
			RideID:         res.RideID,
			ParkID:         park.ID,
			RecordedAt:     recordedAt,
			Status:         rr.Status,
			ComputedIsOpen: computedOpen,
			WaitTime:       rr.WaitMinutes,
			DataSource:     model.SourceLive,
		}
		snaps = append(snaps, snap)

		if change, flipped := c.trackStatusChange(res.RideID, rr.Status, recordedAt); flipped {
			changes = append(changes, change)
		}

		if computedOpen {
			if err := c.repo.Rides.TouchLastOperated(ctx, res.RideID, recordedAt); err != nil {
				log.Warn().Err(err).Int64("ride_id", res.RideID).Msg("failed to touch last_operated_at")
			}
		}
	}

	parkSnap := c.buildParkSnapshot(park, snaps, recordedAt, reading.OpenHint)
	if err := c.repo.Snapshots.WriteCycle(ctx, parkSnap, snaps); err != nil {
		return 0, fmt.Errorf("failed to write cycle for park %s: %w", park.Name, err)
	}
	if len(changes) > 0 {
		if err := c.repo.Snapshots.InsertStatusChanges(ctx, changes); err != nil {
			log.Warn().Err(err).Int64("park_id", park.ID).Msg("failed to record status changes")
		}
	}

	return len(snaps), nil
}

// buildParkSnapshot derives the park-level row from the ride snapshots
// of the same cycle. openHint is the upstream's own view of the park's
// operating state, when it publishes one.
func (c *Collector) buildParkSnapshot(park persistence.Park, snaps []persistence.RideStatusSnapshot, recordedAt time.Time, openHint *bool) persistence.ParkActivitySnapshot {
	tracked := len(snaps)
	open := 0
	var waitSum, waitCount int
	var maxWait *int

	strict := model.StrictVendor(park.IsDisney, park.IsUniversal)
	downWeight, totalWeight := 0, 0

	tierByRide := c.tierLookup(snaps)

	for _, s := range snaps {
		if s.ComputedIsOpen {
			open++
		}
		if s.WaitTime != nil {
			waitSum += *s.WaitTime
			waitCount++
			if maxWait == nil || *s.WaitTime > *maxWait {
				w := *s.WaitTime
				maxWait = &w
			}
		}

		weight := model.TierWeight(tierByRide[s.RideID])
		totalWeight += weight
		if model.CountsAsDown(strict, s.Status, s.ComputedIsOpen) {
			downWeight += weight
		}
	}

	snap := persistence.ParkActivitySnapshot{
		ParkID:       park.ID,
		RecordedAt:   recordedAt,
		RidesTracked: tracked,
		RidesOpen:    open,
		RidesClosed:  tracked - open,
		MaxWaitTime:  maxWait,
		DataSource:   model.SourceLive,
	}
	if waitCount > 0 {
		avg := float64(waitSum) / float64(waitCount)
		snap.AvgWaitTime = &avg
	}

	snap.ParkAppearsOpen = ParkAppearsOpen(open, tracked, c.cfg.OpenRideThreshold, c.cfg.OpenRideFraction) ||
		(openHint != nil && *openHint)

	// The shame score is only meaningful while the park is operating; a
	// closed park would otherwise score a perfect 10.
	if snap.ParkAppearsOpen && totalWeight > 0 {
		score := ShameScore(downWeight, totalWeight)
		snap.ShameScore = &score
	}

	return snap
}

// tierLookup fetches tiers for the cycle's rides from the resolver-warm
// rides table, falling back to the default tier on error.
func (c *Collector) tierLookup(snaps []persistence.RideStatusSnapshot) map[int64]int {
	tiers := make(map[int64]int, len(snaps))
	if len(snaps) == 0 {
		return tiers
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rides, err := c.repo.Rides.ListByPark(ctx, snaps[0].ParkID)
	if err != nil {
		log.Warn().Err(err).Int64("park_id", snaps[0].ParkID).Msg("failed to load tiers, using default weight")
		for _, s := range snaps {
			tiers[s.RideID] = model.DefaultTier
		}
		return tiers
	}

	byID := make(map[int64]int, len(rides))
	for _, r := range rides {
		byID[r.ID] = r.Tier
	}
	for _, s := range snaps {
		if t, ok := byID[s.RideID]; ok {
			tiers[s.RideID] = t
		} else {
			tiers[s.RideID] = model.DefaultTier
		}
	}
	return tiers
}

// trackStatusChange records a flip against the previous in-memory status.
func (c *Collector) trackStatusChange(rideID int64, status *model.RideStatus, at time.Time) (persistence.StatusChange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.lastStatus[rideID]
	c.lastStatus[rideID] = status

	if !seen || statusEqual(prev, status) {
		return persistence.StatusChange{}, false
	}
	return persistence.StatusChange{
		RideID:     rideID,
		FromStatus: prev,
		ToStatus:   status,
		ChangedAt:  at,
	}, true
}

func statusEqual(a, b *model.RideStatus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c *Collector) logQuality(ctx context.Context, issue model.QualityIssueType, entity, externalID, desc string) {
	err := c.repo.Quality.Insert(ctx, persistence.DataQualityLog{
		IssueType:   issue,
		EntityType:  entity,
		ExternalID:  externalID,
		Description: desc,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to write quality log")
	}
}

// computeIsOpen derives open state from an upstream reading. An explicit
// status wins; otherwise the source's open flag decides; a ride with
// neither is treated as not open.
func computeIsOpen(rr sources.RideReading) bool {
	if rr.Status != nil {
		return *rr.Status == model.StatusOperating
	}
	if rr.IsOpen != nil {
		return *rr.IsOpen
	}
	return false
}

// ParkAppearsOpen applies the open-park heuristic: at least
// max(threshold, fraction*tracked) rides must be computed open.
func ParkAppearsOpen(open, tracked, threshold int, fraction float64) bool {
	if tracked == 0 {
		return false
	}
	need := threshold
	if f := int(math.Ceil(fraction * float64(tracked))); f > need {
		need = f
	}
	return open >= need
}

// ShameScore maps the weighted down ratio onto a 0-10 score with one
// decimal place.
func ShameScore(downWeight, totalWeight int) float64 {
	if totalWeight <= 0 {
		return 0
	}
	score := 10 * float64(downWeight) / float64(totalWeight)
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return math.Round(score*10) / 10
}

// Package resolver maps upstream ride records onto canonical ride
// entities. Resolution tries, in order: exact external ID, normalized
// name match within the park, then fuzzy name match. Unresolvable rides
// are created with a deterministic synthetic external ID when
// auto-creation is enabled.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

const (
	// maxEditDistance bounds fuzzy matches; anything farther is treated
	// as a different ride.
	maxEditDistance = 3

	// minConfidence is the floor for accepting a fuzzy match.
	minConfidence = 0.80
)

// ErrUnresolved is returned when no candidate matched and auto-creation
// is disabled; callers record the ride as a mapping failure.
var ErrUnresolved = errors.New("ride could not be resolved")

// Resolution is the outcome of resolving one upstream ride record.
type Resolution struct {
	RideID     int64
	Created    bool
	Method     string
	Confidence float64
}

// Resolver resolves upstream ride records against the rides table,
// caching hits in memory per park.
type Resolver struct {
	rides      persistence.RidesRepo
	autoCreate bool

	mu sync.Mutex
	// byExternal caches external ID -> ride ID.
	byExternal map[string]int64
	// byName caches (park ID, normalized name) -> ride ID.
	byName map[nameKey]int64
}

type nameKey struct {
	parkID int64
	name   string
}

// New creates a resolver backed by the rides repository.
func New(rides persistence.RidesRepo, autoCreate bool) *Resolver {
	return &Resolver{
		rides:      rides,
		autoCreate: autoCreate,
		byExternal: make(map[string]int64),
		byName:     make(map[nameKey]int64),
	}
}

// Resolve maps one upstream ride record to a canonical ride ID. When
// nothing matches and auto-creation is disabled the error is
// ErrUnresolved.
func (r *Resolver) Resolve(ctx context.Context, parkID int64, externalID, name string) (*Resolution, error) {
	norm := NormalizeName(name)

	// Step 1: exact external ID.
	if id, ok := r.cachedExternal(externalID); ok {
		return &Resolution{RideID: id, Method: "external_id", Confidence: 1.0}, nil
	}
	ride, err := r.rides.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ride by external id: %w", err)
	}
	if ride != nil {
		r.remember(externalID, parkID, norm, ride.ID)
		return &Resolution{RideID: ride.ID, Method: "external_id", Confidence: 1.0}, nil
	}

	// Step 2: normalized name within the park.
	if id, ok := r.cachedName(parkID, norm); ok {
		return &Resolution{RideID: id, Method: "name", Confidence: 1.0}, nil
	}
	candidates, err := r.rides.ListByPark(ctx, parkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list park rides: %w", err)
	}
	for _, c := range candidates {
		if NormalizeName(c.Name) == norm {
			r.remember(externalID, parkID, norm, c.ID)
			return &Resolution{RideID: c.ID, Method: "name", Confidence: 1.0}, nil
		}
	}

	// Step 3: fuzzy name within the park.
	if best, conf := closestRide(candidates, norm); best != nil && conf >= minConfidence {
		log.Debug().
			Int64("park_id", parkID).
			Str("name", name).
			Str("matched", best.Name).
			Float64("confidence", conf).
			Msg("fuzzy-matched ride")
		r.remember(externalID, parkID, norm, best.ID)
		return &Resolution{RideID: best.ID, Method: "fuzzy", Confidence: conf}, nil
	}

	if !r.autoCreate {
		return nil, fmt.Errorf("%w: %q in park %d", ErrUnresolved, name, parkID)
	}

	id, err := r.createRide(ctx, parkID, externalID, name)
	if err != nil {
		return nil, err
	}
	r.remember(externalID, parkID, norm, id)
	return &Resolution{RideID: id, Created: true, Method: "created", Confidence: 1.0}, nil
}

func (r *Resolver) createRide(ctx context.Context, parkID int64, externalID, name string) (int64, error) {
	extID := externalID
	if extID == "" {
		extID = SyntheticExternalID(parkID, name)
	}

	id, err := r.rides.Create(ctx, persistence.Ride{
		ExternalID: extID,
		ParkID:     parkID,
		Name:       name,
		Category:   model.CategoryAttraction,
		Tier:       model.DefaultTier,
		Active:     true,
	})
	if err != nil {
		// Another worker may have created it between our lookup and the
		// insert; fall back to a fresh external ID read.
		existing, getErr := r.rides.GetByExternalID(ctx, extID)
		if getErr == nil && existing != nil {
			return existing.ID, nil
		}
		return 0, fmt.Errorf("failed to auto-create ride %q: %w", name, err)
	}

	log.Info().
		Int64("park_id", parkID).
		Int64("ride_id", id).
		Str("name", name).
		Msg("auto-created ride")
	return id, nil
}

func (r *Resolver) cachedExternal(externalID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byExternal[externalID]
	return id, ok
}

func (r *Resolver) cachedName(parkID int64, norm string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[nameKey{parkID, norm}]
	return id, ok
}

func (r *Resolver) remember(externalID string, parkID int64, norm string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if externalID != "" {
		r.byExternal[externalID] = id
	}
	r.byName[nameKey{parkID, norm}] = id
}

// closestRide returns the candidate with the smallest edit distance from
// the normalized name, with a confidence in [0,1].
func closestRide(candidates []persistence.Ride, norm string) (*persistence.Ride, float64) {
	var best *persistence.Ride
	bestDist := maxEditDistance + 1

	for i := range candidates {
		dist := levenshtein.ComputeDistance(NormalizeName(candidates[i].Name), norm)
		if dist < bestDist {
			bestDist = dist
			best = &candidates[i]
		}
	}

	if best == nil || bestDist > maxEditDistance {
		return nil, 0
	}

	longest := len(norm)
	if l := len(NormalizeName(best.Name)); l > longest {
		longest = l
	}
	if longest == 0 {
		return nil, 0
	}
	return best, 1.0 - float64(bestDist)/float64(longest)
}

var (
	trademarkRe  = regexp.MustCompile(`[™®©'’]`)
	punctRe      = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeName canonicalizes a ride name for matching: lowercase,
// trademark symbols and punctuation stripped, whitespace collapsed, and
// a leading article dropped.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = trademarkRe.ReplaceAllString(s, "")
	s = punctRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "the ")
	s = strings.TrimPrefix(s, "disneys ")
	return s
}

// SyntheticExternalID derives a stable external ID for rides the
// upstream does not key, so re-collection resolves to the same row.
func SyntheticExternalID(parkID int64, name string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", parkID, NormalizeName(name))))
	return "gen-" + hex.EncodeToString(sum[:8])
}

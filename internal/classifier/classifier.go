// Package classifier assigns importance tiers to rides. Sources are
// consulted in precedence order: manual override file, cached prior
// result, name-pattern rules, then an external model. Every path ends in
// a validated classification persisted together with the denormalized
// ride tier.
package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/resolver"
)

// Result is one classification decision before persistence.
type Result struct {
	Tier       int
	Category   model.RideCategory
	Method     model.ClassificationMethod
	Confidence float64
	Reasoning  string
	Sources    string
}

// AIClient produces a raw classification response for one ride. The
// response is expected to contain a JSON object, possibly wrapped in a
// markdown code fence.
type AIClient interface {
	Classify(ctx context.Context, parkName, rideName string) (string, error)
}

// Classifier runs the tiering pipeline.
type Classifier struct {
	rides     persistence.RidesRepo
	overrides *OverrideSet
	cache     *ResultCache
	ai        AIClient
}

// New creates a classifier. overrides and cache may be empty sets; ai may
// be nil, in which case unmatched rides fall through to the default tier.
func New(rides persistence.RidesRepo, overrides *OverrideSet, cache *ResultCache, ai AIClient) *Classifier {
	if overrides == nil {
		overrides = &OverrideSet{}
	}
	if cache == nil {
		cache = NewResultCache("")
	}
	return &Classifier{rides: rides, overrides: overrides, cache: cache, ai: ai}
}

// Classify decides a ride's tier and persists it. The classification row
// and the ride's denormalized tier column are written in one transaction
// by the repository.
func (c *Classifier) Classify(ctx context.Context, park persistence.Park, ride persistence.Ride) (*Result, error) {
	res := c.decide(ctx, park, ride)

	if err := validate(res); err != nil {
		log.Warn().
			Int64("ride_id", ride.ID).
			Str("method", string(res.Method)).
			Err(err).
			Msg("classification failed validation, using default tier")
		res = defaultResult(fmt.Sprintf("validation failed: %v", err))
	}

	err := c.rides.UpsertClassification(ctx, persistence.RideClassification{
		RideID:     ride.ID,
		Tier:       res.Tier,
		TierWeight: model.TierWeight(res.Tier),
		Method:     res.Method,
		Confidence: res.Confidence,
		Reasoning:  res.Reasoning,
		Sources:    res.Sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist classification: %w", err)
	}

	if res.Method != model.MethodManualOverride && res.Method != model.MethodCachedMatch {
		c.cache.Put(park.ID, ride.ID, res)
	}

	return res, nil
}

func (c *Classifier) decide(ctx context.Context, park persistence.Park, ride persistence.Ride) *Result {
	norm := resolver.NormalizeName(ride.Name)

	if r, ok := c.overrides.Lookup(park.ID, ride.ID); ok {
		return r
	}

	if r, ok := c.cache.Lookup(park.ID, ride.ID); ok {
		r.Method = model.MethodCachedMatch
		return r
	}

	if r, ok := matchPattern(norm); ok {
		return r
	}

	if c.ai != nil {
		r, err := c.classifyAI(ctx, park.Name, ride.Name)
		if err == nil {
			return r
		}
		log.Warn().
			Int64("ride_id", ride.ID).
			Str("ride", ride.Name).
			Err(err).
			Msg("model classification failed, using default tier")
	}

	return defaultResult("no classification source matched")
}

func (c *Classifier) classifyAI(ctx context.Context, parkName, rideName string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	raw, err := c.ai.Classify(ctx, parkName, rideName)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}

	r, err := parseAIResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	r.Method = model.MethodAI
	return r, nil
}

// validate rejects classifications outside the documented ranges.
func validate(r *Result) error {
	if !model.ValidTier(r.Tier) {
		return fmt.Errorf("tier %d out of range", r.Tier)
	}
	if !model.ValidCategory(r.Category) {
		return fmt.Errorf("unknown category %q", r.Category)
	}
	if r.Confidence < 0.50 || r.Confidence > 1.00 {
		return fmt.Errorf("confidence %.2f out of range [0.50, 1.00]", r.Confidence)
	}
	return nil
}

func defaultResult(reason string) *Result {
	return &Result{
		Tier:       model.DefaultTier,
		Category:   model.CategoryAttraction,
		Method:     model.MethodPattern,
		Confidence: 0.50,
		Reasoning:  reason,
	}
}

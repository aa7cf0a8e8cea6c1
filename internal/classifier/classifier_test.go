package classifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// recordingRides captures the classification rows the pipeline persists.
type recordingRides struct {
	saved []persistence.RideClassification
}

func (r *recordingRides) Create(context.Context, persistence.Ride) (int64, error) { return 0, nil }
func (r *recordingRides) GetByID(context.Context, int64) (*persistence.Ride, error) {
	return nil, nil
}
func (r *recordingRides) GetByExternalID(context.Context, string) (*persistence.Ride, error) {
	return nil, nil
}
func (r *recordingRides) ListByPark(context.Context, int64) ([]persistence.Ride, error) {
	return nil, nil
}
func (r *recordingRides) TouchLastOperated(context.Context, int64, time.Time) error { return nil }
func (r *recordingRides) UpsertClassification(_ context.Context, c persistence.RideClassification) error {
	r.saved = append(r.saved, c)
	return nil
}
func (r *recordingRides) GetClassification(context.Context, int64) (*persistence.RideClassification, error) {
	return nil, nil
}

type stubAI struct {
	response string
	err      error
}

func (s *stubAI) Classify(context.Context, string, string) (string, error) {
	return s.response, s.err
}

var (
	testPark = persistence.Park{ID: 1, Name: "Magic Kingdom"}
	testRide = persistence.Ride{ID: 7, ParkID: 1, Name: "Some Obscure Ride"}
)

func TestClassifyOverrideWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.csv")
	csv := "park_id,ride_id,tier,category\n1,7,1,ATTRACTION\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, 1, overrides.Len())

	rides := &recordingRides{}
	// An AI client that would disagree; the override must shadow it.
	ai := &stubAI{response: `{"tier": 3, "category": "SHOW", "confidence": 0.9}`}
	c := New(rides, overrides, nil, ai)

	res, err := c.Classify(context.Background(), testPark, testRide)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, model.MethodManualOverride, res.Method)
	assert.Equal(t, 1.0, res.Confidence)

	require.Len(t, rides.saved, 1)
	assert.Equal(t, 1, rides.saved[0].Tier)
	// The denormalized weight always matches the tier.
	assert.Equal(t, model.TierWeight(1), rides.saved[0].TierWeight)
}

func TestClassifyPatternMatch(t *testing.T) {
	rides := &recordingRides{}
	c := New(rides, nil, nil, nil)

	res, err := c.Classify(context.Background(), testPark, persistence.Ride{ID: 8, Name: "Big Thunder Mountain Railroad"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, model.MethodPattern, res.Method)
	assert.Equal(t, model.CategoryAttraction, res.Category)
}

func TestClassifyShowPattern(t *testing.T) {
	c := New(&recordingRides{}, nil, nil, nil)

	res, err := c.Classify(context.Background(), testPark, persistence.Ride{ID: 9, Name: "Festival of the Lion King Show"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Tier)
	assert.Equal(t, model.CategoryShow, res.Category)
}

func TestClassifyAIResult(t *testing.T) {
	rides := &recordingRides{}
	ai := &stubAI{response: "```json\n{\"tier\": 1, \"category\": \"attraction\", \"confidence\": 0.92, \"reasoning\": \"flagship\"}\n```"}
	c := New(rides, nil, nil, ai)

	res, err := c.Classify(context.Background(), testPark, testRide)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, model.MethodAI, res.Method)
	assert.Equal(t, model.CategoryAttraction, res.Category)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
}

func TestClassifyAIFailureFallsBack(t *testing.T) {
	rides := &recordingRides{}
	ai := &stubAI{err: errors.New("model unavailable")}
	c := New(rides, nil, nil, ai)

	res, err := c.Classify(context.Background(), testPark, testRide)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTier, res.Tier)
	assert.Equal(t, 0.50, res.Confidence)
}

func TestClassifyRejectsInvalidAIResult(t *testing.T) {
	rides := &recordingRides{}
	// Tier 9 is out of range; validation forces the default.
	ai := &stubAI{response: `{"tier": 9, "category": "ATTRACTION", "confidence": 0.9}`}
	c := New(rides, nil, nil, ai)

	res, err := c.Classify(context.Background(), testPark, testRide)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTier, res.Tier)
}

func TestClassifyUsesCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := LoadResultCache(filepath.Join(dir, "cache.json"))
	require.NoError(t, err)

	rides := &recordingRides{}
	c := New(rides, nil, cache, nil)

	// First pass lands on the default and is cached.
	first, err := c.Classify(context.Background(), testPark, testRide)
	require.NoError(t, err)
	assert.Equal(t, model.MethodPattern, first.Method)

	// Second pass is served from the cache.
	second, err := c.Classify(context.Background(), testPark, testRide)
	require.NoError(t, err)
	assert.Equal(t, model.MethodCachedMatch, second.Method)
	assert.Equal(t, first.Tier, second.Tier)
}

func TestResultCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	cache, err := LoadResultCache(path)
	require.NoError(t, err)
	cache.Put(1, 7, &Result{
		Tier: 1, Category: model.CategoryAttraction, Method: model.MethodAI, Confidence: 0.9,
	})
	require.NoError(t, cache.Flush())

	reloaded, err := LoadResultCache(path)
	require.NoError(t, err)
	got, ok := reloaded.Lookup(1, 7)
	require.True(t, ok)
	assert.Equal(t, 1, got.Tier)

	// Entries are keyed per (park, ride) pair.
	_, ok = reloaded.Lookup(1, 8)
	assert.False(t, ok)
	_, ok = reloaded.Lookup(2, 7)
	assert.False(t, ok)

	// The file format keys rows by "<park_id>:<ride_id>".
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"1:7"`)
}

func TestLoadOverridesRejectsBadRows(t *testing.T) {
	dir := t.TempDir()

	badTier := filepath.Join(dir, "tier.csv")
	require.NoError(t, os.WriteFile(badTier, []byte("1,7,7\n"), 0o644))
	_, err := LoadOverrides(badTier)
	assert.Error(t, err)

	badCategory := filepath.Join(dir, "cat.csv")
	require.NoError(t, os.WriteFile(badCategory, []byte("1,7,1,RESTAURANT\n"), 0o644))
	_, err = LoadOverrides(badCategory)
	assert.Error(t, err)

	tooFew := filepath.Join(dir, "few.csv")
	require.NoError(t, os.WriteFile(tooFew, []byte("1,7\n"), 0o644))
	_, err = LoadOverrides(tooFew)
	assert.Error(t, err)

	badID := filepath.Join(dir, "id.csv")
	require.NoError(t, os.WriteFile(badID, []byte("Magic Kingdom,Space Mountain,1\n"), 0o644))
	_, err = LoadOverrides(badID)
	assert.Error(t, err)
}

func TestParseAIResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "bare JSON",
			raw:  `{"tier": 2, "category": "ATTRACTION", "confidence": 0.8}`,
			want: 2,
		},
		{
			name: "fenced JSON",
			raw:  "```json\n{\"tier\": 1, \"category\": \"ATTRACTION\", \"confidence\": 0.95}\n```",
			want: 1,
		},
		{
			name: "JSON surrounded by prose",
			raw:  "Here is my assessment:\n{\"tier\": 3, \"category\": \"SHOW\", \"confidence\": 0.7}\nHope that helps!",
			want: 3,
		},
		{
			name:    "no JSON at all",
			raw:     "I cannot classify this ride.",
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			raw:     `{"tier": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseAIResponse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Tier)
		})
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		normName string
		wantTier int
		wantHit  bool
	}{
		{"space mountain", 1, true},
		{"incredicoaster", 1, true},
		{"frozen sing along celebration", 3, true},
		{"meet mickey at town square", 3, true},
		{"prince charming regal carrousel", 3, true},
		{"swiss family treehouse", 3, true},
		{"pirates of the caribbean", 0, false},
	}

	for _, tt := range tests {
		res, ok := matchPattern(tt.normName)
		assert.Equal(t, tt.wantHit, ok, tt.normName)
		if ok {
			assert.Equal(t, tt.wantTier, res.Tier, tt.normName)
		}
	}
}

package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/parkpulse/parkpulse/internal/model"
)

// ResultCache remembers classification results across runs so the same
// ride is never sent to the model twice. The cache is a JSON file keyed
// by "<park_id>:<ride_id>".
type ResultCache struct {
	path string

	mu      sync.Mutex
	entries map[string]cachedResult
	dirty   bool
}

type cachedResult struct {
	Tier       int                `json:"tier"`
	Category   model.RideCategory `json:"category"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning,omitempty"`
}

// NewResultCache creates an empty cache. An empty path keeps the cache
// memory-only.
func NewResultCache(path string) *ResultCache {
	return &ResultCache{path: path, entries: make(map[string]cachedResult)}
}

// LoadResultCache reads the cache file; a missing file yields an empty
// cache rather than an error.
func LoadResultCache(path string) (*ResultCache, error) {
	c := NewResultCache(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read classification cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("failed to parse classification cache: %w", err)
	}
	return c, nil
}

func cacheKey(parkID, rideID int64) string {
	return fmt.Sprintf("%d:%d", parkID, rideID)
}

// Lookup returns a cached result for a (park ID, ride ID) pair.
func (c *ResultCache) Lookup(parkID, rideID int64) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(parkID, rideID)]
	if !ok {
		return nil, false
	}
	return &Result{
		Tier:       e.Tier,
		Category:   e.Category,
		Method:     model.MethodCachedMatch,
		Confidence: e.Confidence,
		Reasoning:  e.Reasoning,
	}, true
}

// Put records a result for future runs.
func (c *ResultCache) Put(parkID, rideID int64, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(parkID, rideID)] = cachedResult{
		Tier:       r.Tier,
		Category:   r.Category,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
	}
	c.dirty = true
}

// Flush writes the cache back to disk if anything changed.
func (c *ResultCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" || !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal classification cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write classification cache: %w", err)
	}
	c.dirty = false
	return nil
}

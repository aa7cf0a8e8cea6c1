package classifier

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/parkpulse/parkpulse/internal/model"
)

// OverrideSet holds curated tier assignments loaded from CSV. Overrides
// always win over every other classification source.
type OverrideSet struct {
	entries map[overrideKey]Result
}

type overrideKey struct {
	parkID int64
	rideID int64
}

// LoadOverrides reads a CSV of park_id,ride_id,tier,category rows.
// Entries are keyed by database IDs, not names, so a ride rename never
// detaches its override. A header row is detected and skipped; category
// defaults to ATTRACTION when the column is absent or empty.
func LoadOverrides(path string) (*OverrideSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open overrides file: %w", err)
	}
	defer f.Close()

	set := &OverrideSet{entries: make(map[overrideKey]Result)}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read overrides csv: %w", err)
		}
		line++

		if len(rec) < 3 {
			return nil, fmt.Errorf("overrides line %d: expected at least 3 columns, got %d", line, len(rec))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[2]), "tier") {
			continue
		}

		parkID, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("overrides line %d: invalid park id %q", line, rec[0])
		}
		rideID, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("overrides line %d: invalid ride id %q", line, rec[1])
		}

		tier, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil || !model.ValidTier(tier) {
			return nil, fmt.Errorf("overrides line %d: invalid tier %q", line, rec[2])
		}

		category := model.CategoryAttraction
		if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
			category = model.RideCategory(strings.ToUpper(strings.TrimSpace(rec[3])))
			if !model.ValidCategory(category) {
				return nil, fmt.Errorf("overrides line %d: invalid category %q", line, rec[3])
			}
		}

		set.entries[overrideKey{parkID: parkID, rideID: rideID}] = Result{
			Tier:       tier,
			Category:   category,
			Method:     model.MethodManualOverride,
			Confidence: 1.0,
			Reasoning:  "manual override",
			Sources:    path,
		}
	}

	return set, nil
}

// Lookup returns the override for a (park ID, ride ID) pair.
func (s *OverrideSet) Lookup(parkID, rideID int64) (*Result, bool) {
	if s.entries == nil {
		return nil, false
	}
	r, ok := s.entries[overrideKey{parkID: parkID, rideID: rideID}]
	if !ok {
		return nil, false
	}
	return &r, true
}

// Len reports the number of loaded overrides.
func (s *OverrideSet) Len() int { return len(s.entries) }

package model

import (
	"fmt"
	"strings"
	"time"
)

// RideStatus is the upstream-reported operational status of a ride.
// A nil *RideStatus means the upstream reported no status at all.
type RideStatus string

const (
	StatusOperating     RideStatus = "OPERATING"
	StatusDown          RideStatus = "DOWN"
	StatusClosed        RideStatus = "CLOSED"
	StatusRefurbishment RideStatus = "REFURBISHMENT"
)

// ParseRideStatus maps an upstream status string to a RideStatus.
// Unknown values return an error so callers can log a quality issue
// instead of silently persisting garbage.
func ParseRideStatus(s string) (RideStatus, error) {
	switch RideStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOperating:
		return StatusOperating, nil
	case StatusDown:
		return StatusDown, nil
	case StatusClosed:
		return StatusClosed, nil
	case StatusRefurbishment:
		return StatusRefurbishment, nil
	}
	return "", fmt.Errorf("unknown ride status: %q", s)
}

// RideCategory classifies what kind of entity a ride row represents.
type RideCategory string

const (
	CategoryAttraction   RideCategory = "ATTRACTION"
	CategoryShow         RideCategory = "SHOW"
	CategoryMeetAndGreet RideCategory = "MEET_AND_GREET"
	CategoryExperience   RideCategory = "EXPERIENCE"
)

// ValidCategory reports whether c is one of the enumerated ride categories.
func ValidCategory(c RideCategory) bool {
	switch c {
	case CategoryAttraction, CategoryShow, CategoryMeetAndGreet, CategoryExperience:
		return true
	}
	return false
}

// Period is one of the five canonical ranking periods. Every ranking and
// chart query accepts exactly these values; anything else is a 400.
type Period string

const (
	PeriodLive      Period = "live"
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodLastWeek  Period = "last_week"
	PeriodLastMonth Period = "last_month"
)

// ParsePeriod validates a period query parameter.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodLive:
		return PeriodLive, nil
	case PeriodToday:
		return PeriodToday, nil
	case PeriodYesterday:
		return PeriodYesterday, nil
	case PeriodLastWeek:
		return PeriodLastWeek, nil
	case PeriodLastMonth:
		return PeriodLastMonth, nil
	}
	return "", fmt.Errorf("invalid period: %q", s)
}

// ParkFilter restricts ranking queries to a park subset.
type ParkFilter string

const (
	FilterAllParks        ParkFilter = "all-parks"
	FilterDisneyUniversal ParkFilter = "disney-universal"
)

// ParseParkFilter validates a filter query parameter. Empty means all parks.
func ParseParkFilter(s string) (ParkFilter, error) {
	switch ParkFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAllParks:
		return FilterAllParks, nil
	case FilterDisneyUniversal:
		return FilterDisneyUniversal, nil
	}
	return "", fmt.Errorf("invalid filter: %q", s)
}

// DataSource tags where a snapshot came from.
type DataSource string

const (
	SourceLive    DataSource = "LIVE"
	SourceArchive DataSource = "ARCHIVE"
)

// ImportStatus is the state of an archive import checkpoint.
type ImportStatus string

const (
	ImportPending    ImportStatus = "PENDING"
	ImportInProgress ImportStatus = "IN_PROGRESS"
	ImportPaused     ImportStatus = "PAUSED"
	ImportCompleted  ImportStatus = "COMPLETED"
	ImportFailed     ImportStatus = "FAILED"
	ImportCancelled  ImportStatus = "CANCELLED"
)

// importTransitions encodes the legal checkpoint state machine.
// FAILED is resumable; CANCELLED is terminal.
var importTransitions = map[ImportStatus][]ImportStatus{
	ImportPending:    {ImportInProgress, ImportCancelled},
	ImportInProgress: {ImportCompleted, ImportPaused, ImportFailed, ImportCancelled},
	ImportPaused:     {ImportInProgress, ImportCancelled},
	ImportFailed:     {ImportInProgress, ImportCancelled},
	ImportCompleted:  {},
	ImportCancelled:  {},
}

// CanTransition reports whether an import checkpoint may move from one
// status to another.
func CanTransition(from, to ImportStatus) bool {
	for _, next := range importTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ClassificationMethod records which step of the classifier hierarchy
// produced a tier.
type ClassificationMethod string

const (
	MethodManualOverride ClassificationMethod = "manual_override"
	MethodCachedMatch    ClassificationMethod = "cached_match"
	MethodPattern        ClassificationMethod = "pattern"
	MethodAI             ClassificationMethod = "ai"
)

// QualityIssueType categorizes DataQualityLog entries.
type QualityIssueType string

const (
	IssueParseError     QualityIssueType = "PARSE_ERROR"
	IssueMappingFailed  QualityIssueType = "MAPPING_FAILED"
	IssueTransportError QualityIssueType = "TRANSPORT_ERROR"
	IssueSchemaError    QualityIssueType = "SCHEMA_ERROR"
)

// AggregationStatus is the lifecycle of one aggregation run in the log.
type AggregationStatus string

const (
	AggRunning AggregationStatus = "running"
	AggSuccess AggregationStatus = "success"
	AggFailed  AggregationStatus = "failed"
)

// AggregationLevel names the three derivation levels.
type AggregationLevel string

const (
	AggHourly AggregationLevel = "hourly"
	AggDaily  AggregationLevel = "daily"
	AggWeekly AggregationLevel = "weekly"
)

// Tier weights. Tier 1 flagships weigh 3, tier 3 filler weighs 1.
// Unclassified rides default to tier 2.
const (
	DefaultTier       = 2
	DefaultTierWeight = 2
)

var tierWeights = map[int]int{1: 3, 2: 2, 3: 1}

// TierWeight returns the downtime weight for a tier; unknown tiers get
// the tier-2 default.
func TierWeight(tier int) int {
	if w, ok := tierWeights[tier]; ok {
		return w
	}
	return DefaultTierWeight
}

// ValidTier reports whether t is a known tier.
func ValidTier(t int) bool {
	_, ok := tierWeights[t]
	return ok
}

// ISOWeekStart returns the Monday of the ISO week containing day, at
// midnight in day's location.
func ISOWeekStart(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	monday := day.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, day.Location())
}

// Pacific is the fixed timezone used for the public YESTERDAY, LAST_WEEK
// and LAST_MONTH ranking windows. Per-park derived stats use each park's
// own timezone; the public windows stay comparable by pinning one zone.
func Pacific() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		// LoadLocation only fails on a broken zoneinfo install.
		panic(fmt.Sprintf("load America/Los_Angeles: %v", err))
	}
	return loc
}

package persistence

import (
	"context"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
)

// TimeRange represents a UTC time window for date-bounded queries.
// All snapshot queries must be bounded by a range so the monthly
// partitions on recorded_at can be pruned.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Park is a tracked theme park.
type Park struct {
	ID          int64     `json:"id" db:"id"`
	ExternalID  string    `json:"external_id" db:"external_id"`
	Name        string    `json:"name" db:"name"`
	Country     string    `json:"country" db:"country"`
	Latitude    *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64  `json:"longitude,omitempty" db:"longitude"`
	Timezone    string    `json:"timezone" db:"timezone"`
	IsDisney    bool      `json:"is_disney" db:"is_disney"`
	IsUniversal bool      `json:"is_universal" db:"is_universal"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Location returns the park's IANA timezone, falling back to UTC when the
// stored zone name does not resolve.
func (p Park) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Ride is a tracked attraction within a park.
type Ride struct {
	ID             int64              `json:"id" db:"id"`
	ExternalID     string             `json:"external_id" db:"external_id"`
	ParkID         int64              `json:"park_id" db:"park_id"`
	Name           string             `json:"name" db:"name"`
	Category       model.RideCategory `json:"category" db:"category"`
	Tier           int                `json:"tier" db:"tier"`
	LastOperatedAt *time.Time         `json:"last_operated_at,omitempty" db:"last_operated_at"`
	Active         bool               `json:"active" db:"active"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// RideClassification is the canonical tier assignment for a ride. The
// denormalized tier column on the ride row must always match; the repo
// writes both in one transaction.
type RideClassification struct {
	RideID     int64                      `json:"ride_id" db:"ride_id"`
	Tier       int                        `json:"tier" db:"tier"`
	TierWeight int                        `json:"tier_weight" db:"tier_weight"`
	Method     model.ClassificationMethod `json:"method" db:"method"`
	Confidence float64                    `json:"confidence" db:"confidence"`
	Reasoning  string                     `json:"reasoning" db:"reasoning"`
	Sources    string                     `json:"sources" db:"sources"`
	UpdatedAt  time.Time                  `json:"updated_at" db:"updated_at"`
}

// ParkActivitySnapshot is one per-park observation at recorded_at.
// ShameScore is written only when the park appears open.
type ParkActivitySnapshot struct {
	ID              int64            `json:"id" db:"id"`
	ParkID          int64            `json:"park_id" db:"park_id"`
	RecordedAt      time.Time        `json:"recorded_at" db:"recorded_at"`
	RidesTracked    int              `json:"rides_tracked" db:"rides_tracked"`
	RidesOpen       int              `json:"rides_open" db:"rides_open"`
	RidesClosed     int              `json:"rides_closed" db:"rides_closed"`
	AvgWaitTime     *float64         `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	MaxWaitTime     *int             `json:"max_wait_time,omitempty" db:"max_wait_time"`
	ParkAppearsOpen bool             `json:"park_appears_open" db:"park_appears_open"`
	ShameScore      *float64         `json:"shame_score,omitempty" db:"shame_score"`
	DataSource      model.DataSource `json:"data_source" db:"data_source"`
}

// RideStatusSnapshot is one per-ride observation at recorded_at. Status is
// nil when the upstream reported nothing; ComputedIsOpen is always derived.
type RideStatusSnapshot struct {
	ID             int64             `json:"id" db:"id"`
	RideID         int64             `json:"ride_id" db:"ride_id"`
	ParkID         int64             `json:"park_id" db:"park_id"`
	RecordedAt     time.Time         `json:"recorded_at" db:"recorded_at"`
	Status         *model.RideStatus `json:"status,omitempty" db:"status"`
	ComputedIsOpen bool              `json:"computed_is_open" db:"computed_is_open"`
	WaitTime       *int              `json:"wait_time,omitempty" db:"wait_time"`
	DataSource     model.DataSource  `json:"data_source" db:"data_source"`
}

// RideHourlyStats is the hourly aggregate for one ride and UTC hour.
type RideHourlyStats struct {
	RideID                int64     `json:"ride_id" db:"ride_id"`
	ParkID                int64     `json:"park_id" db:"park_id"`
	HourStartUTC          time.Time `json:"hour_start_utc" db:"hour_start_utc"`
	OperatingSnapshots    int       `json:"operating_snapshots" db:"operating_snapshots"`
	DownSnapshots         int       `json:"down_snapshots" db:"down_snapshots"`
	SnapshotCount         int       `json:"snapshot_count" db:"snapshot_count"`
	DowntimeHours         float64   `json:"downtime_hours" db:"downtime_hours"`
	WeightedDowntimeHours float64   `json:"weighted_downtime_hours" db:"weighted_downtime_hours"`
	EffectiveWeight       int       `json:"effective_weight" db:"effective_weight"`
	UptimePct             *float64  `json:"uptime_pct,omitempty" db:"uptime_pct"`
	AvgWaitTime           *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	RideOperated          bool      `json:"ride_operated" db:"ride_operated"`
}

// ParkHourlyStats is the hourly aggregate for one park and UTC hour.
type ParkHourlyStats struct {
	ParkID             int64     `json:"park_id" db:"park_id"`
	HourStartUTC       time.Time `json:"hour_start_utc" db:"hour_start_utc"`
	AvgShameScore      *float64  `json:"avg_shame_score,omitempty" db:"avg_shame_score"`
	AvgWaitTime        *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	MaxWaitTime        *int      `json:"max_wait_time,omitempty" db:"max_wait_time"`
	RidesDown          int       `json:"rides_down" db:"rides_down"`
	TotalDowntimeHours float64   `json:"total_downtime_hours" db:"total_downtime_hours"`
	ParkWasOpen        bool      `json:"park_was_open" db:"park_was_open"`
	SnapshotCount      int       `json:"snapshot_count" db:"snapshot_count"`
}

// RideDailyStats is the daily aggregate for one ride; StatDate is the
// calendar day in the park's local timezone.
type RideDailyStats struct {
	RideID                 int64     `json:"ride_id" db:"ride_id"`
	ParkID                 int64     `json:"park_id" db:"park_id"`
	StatDate               time.Time `json:"stat_date" db:"stat_date"`
	UptimeMinutes          int       `json:"uptime_minutes" db:"uptime_minutes"`
	DowntimeMinutes        int       `json:"downtime_minutes" db:"downtime_minutes"`
	OperatingHoursMinutes  int       `json:"operating_hours_minutes" db:"operating_hours_minutes"`
	AvgWaitTime            *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	MinWaitTime            *int      `json:"min_wait_time,omitempty" db:"min_wait_time"`
	MaxWaitTime            *int      `json:"max_wait_time,omitempty" db:"max_wait_time"`
	PeakWaitTime           *int      `json:"peak_wait_time,omitempty" db:"peak_wait_time"`
	StatusChanges          int       `json:"status_changes" db:"status_changes"`
	LongestDowntimeMinutes int       `json:"longest_downtime_minutes" db:"longest_downtime_minutes"`
	SnapshotCount          int       `json:"snapshot_count" db:"snapshot_count"`
}

// ParkDailyStats rolls a park's rides up for one local calendar day.
type ParkDailyStats struct {
	ParkID             int64     `json:"park_id" db:"park_id"`
	StatDate           time.Time `json:"stat_date" db:"stat_date"`
	AvgShameScore      *float64  `json:"avg_shame_score,omitempty" db:"avg_shame_score"`
	TotalDowntimeHours float64   `json:"total_downtime_hours" db:"total_downtime_hours"`
	RidesDown          int       `json:"rides_down" db:"rides_down"`
	AvgWaitTime        *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	PeakWaitTime       *int      `json:"peak_wait_time,omitempty" db:"peak_wait_time"`
	ParkWasOpen        bool      `json:"park_was_open" db:"park_was_open"`
	SnapshotCount      int       `json:"snapshot_count" db:"snapshot_count"`
}

// RideWeeklyStats is the ISO-week aggregate for one ride, derived from
// daily stats only.
type RideWeeklyStats struct {
	RideID                int64     `json:"ride_id" db:"ride_id"`
	ParkID                int64     `json:"park_id" db:"park_id"`
	ISOYear               int       `json:"iso_year" db:"iso_year"`
	ISOWeek               int       `json:"iso_week" db:"iso_week"`
	WeekStartDate         time.Time `json:"week_start_date" db:"week_start_date"`
	UptimeMinutes         int       `json:"uptime_minutes" db:"uptime_minutes"`
	DowntimeMinutes       int       `json:"downtime_minutes" db:"downtime_minutes"`
	OperatingHoursMinutes int       `json:"operating_hours_minutes" db:"operating_hours_minutes"`
	UptimePercentage      *float64  `json:"uptime_percentage,omitempty" db:"uptime_percentage"`
	AvgWaitTime           *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	PeakWaitTime          *int      `json:"peak_wait_time,omitempty" db:"peak_wait_time"`
	StatusChanges         int       `json:"status_changes" db:"status_changes"`
	TrendVsPreviousWeek   *float64  `json:"trend_vs_previous_week,omitempty" db:"trend_vs_previous_week"`
	DaysWithData          int       `json:"days_with_data" db:"days_with_data"`
}

// ParkWeeklyStats rolls a park's rides up for one ISO week.
type ParkWeeklyStats struct {
	ParkID              int64     `json:"park_id" db:"park_id"`
	ISOYear             int       `json:"iso_year" db:"iso_year"`
	ISOWeek             int       `json:"iso_week" db:"iso_week"`
	WeekStartDate       time.Time `json:"week_start_date" db:"week_start_date"`
	AvgShameScore       *float64  `json:"avg_shame_score,omitempty" db:"avg_shame_score"`
	TotalDowntimeHours  float64   `json:"total_downtime_hours" db:"total_downtime_hours"`
	AvgWaitTime         *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	PeakWaitTime        *int      `json:"peak_wait_time,omitempty" db:"peak_wait_time"`
	TrendVsPreviousWeek *float64  `json:"trend_vs_previous_week,omitempty" db:"trend_vs_previous_week"`
	DaysWithData        int       `json:"days_with_data" db:"days_with_data"`
}

// ParkLiveRanking is one denormalized row of the served park rankings
// table, rebuilt atomically each collection cycle.
type ParkLiveRanking struct {
	ParkID             int64     `json:"park_id" db:"park_id"`
	ParkName           string    `json:"park_name" db:"park_name"`
	IsDisney           bool      `json:"is_disney" db:"is_disney"`
	IsUniversal        bool      `json:"is_universal" db:"is_universal"`
	ShameScore         *float64  `json:"shame_score,omitempty" db:"shame_score"`
	RidesTracked       int       `json:"rides_tracked" db:"rides_tracked"`
	RidesOpen          int       `json:"rides_open" db:"rides_open"`
	RidesDown          int       `json:"rides_down" db:"rides_down"`
	AvgWaitTime        *float64  `json:"avg_wait_time,omitempty" db:"avg_wait_time"`
	MaxWaitTime        *int      `json:"max_wait_time,omitempty" db:"max_wait_time"`
	ParkAppearsOpen    bool      `json:"park_appears_open" db:"park_appears_open"`
	TodayDowntimeHours float64   `json:"today_downtime_hours" db:"today_downtime_hours"`
	RecordedAt         time.Time `json:"recorded_at" db:"recorded_at"`
}

// RideLiveRanking is one denormalized row of the served ride rankings table.
type RideLiveRanking struct {
	RideID             int64             `json:"ride_id" db:"ride_id"`
	RideName           string            `json:"ride_name" db:"ride_name"`
	ParkID             int64             `json:"park_id" db:"park_id"`
	ParkName           string            `json:"park_name" db:"park_name"`
	Tier               int               `json:"tier" db:"tier"`
	TierWeight         int               `json:"tier_weight" db:"tier_weight"`
	CurrentStatus      *model.RideStatus `json:"current_status,omitempty" db:"current_status"`
	CurrentIsOpen      bool              `json:"current_is_open" db:"current_is_open"`
	CurrentlyDown      bool              `json:"currently_down" db:"currently_down"`
	WaitTime           *int              `json:"wait_time,omitempty" db:"wait_time"`
	ParkIsOpen         bool              `json:"park_is_open" db:"park_is_open"`
	TodayDowntimeHours float64           `json:"today_downtime_hours" db:"today_downtime_hours"`
	TodayAvgWait       *float64          `json:"today_avg_wait,omitempty" db:"today_avg_wait"`
	TodayPeakWait      *int              `json:"today_peak_wait,omitempty" db:"today_peak_wait"`
	RecordedAt         time.Time         `json:"recorded_at" db:"recorded_at"`
}

// ImportCheckpoint is the mutable state machine for one archive import.
type ImportCheckpoint struct {
	ID                int64              `json:"id" db:"id"`
	DestinationUUID   string             `json:"destination_uuid" db:"destination_uuid"`
	Status            model.ImportStatus `json:"status" db:"status"`
	LastProcessedDate *time.Time         `json:"last_processed_date,omitempty" db:"last_processed_date"`
	LastProcessedFile *string            `json:"last_processed_file,omitempty" db:"last_processed_file"`
	RecordsImported   int64              `json:"records_imported" db:"records_imported"`
	ErrorsEncountered int64              `json:"errors_encountered" db:"errors_encountered"`
	Resumable         bool               `json:"resumable" db:"resumable"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// DataQualityLog records one dropped or suspicious upstream record.
type DataQualityLog struct {
	ID          int64                  `json:"id" db:"id"`
	ImportID    *int64                 `json:"import_id,omitempty" db:"import_id"`
	IssueType   model.QualityIssueType `json:"issue_type" db:"issue_type"`
	EntityType  string                 `json:"entity_type" db:"entity_type"`
	ExternalID  string                 `json:"external_id" db:"external_id"`
	Description string                 `json:"description" db:"description"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// AggregationLog is the authoritative barrier for data cleanup: raw
// snapshots for a date may be pruned only behind a success row.
type AggregationLog struct {
	ID              int64                   `json:"id" db:"id"`
	AggregationDate time.Time               `json:"aggregation_date" db:"aggregation_date"`
	AggregationType model.AggregationLevel  `json:"aggregation_type" db:"aggregation_type"`
	Status          model.AggregationStatus `json:"status" db:"status"`
	EntitiesUpdated int                     `json:"entities_updated" db:"entities_updated"`
	Error           *string                 `json:"error,omitempty" db:"error"`
	StartedAt       time.Time               `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time              `json:"finished_at,omitempty" db:"finished_at"`
}

// StorageMetrics is one per-table size sample.
type StorageMetrics struct {
	TableName    string    `json:"table_name" db:"table_name"`
	RowCount     int64     `json:"row_count" db:"row_count"`
	DataBytes    int64     `json:"data_bytes" db:"data_bytes"`
	IndexBytes   int64     `json:"index_bytes" db:"index_bytes"`
	GrowthPerDay float64   `json:"growth_per_day" db:"growth_per_day"`
	SampledAt    time.Time `json:"sampled_at" db:"sampled_at"`
}

// StatusChange records one observed ride status flip; daily aggregation
// counts these into status_changes.
type StatusChange struct {
	ID         int64             `json:"id" db:"id"`
	RideID     int64             `json:"ride_id" db:"ride_id"`
	FromStatus *model.RideStatus `json:"from_status,omitempty" db:"from_status"`
	ToStatus   *model.RideStatus `json:"to_status,omitempty" db:"to_status"`
	ChangedAt  time.Time         `json:"changed_at" db:"changed_at"`
}

// ParksRepo provides park entity persistence.
type ParksRepo interface {
	// Upsert inserts or updates a park keyed by external ID and returns
	// the internal ID.
	Upsert(ctx context.Context, park Park) (int64, error)

	// GetByID retrieves a park by internal ID.
	GetByID(ctx context.Context, id int64) (*Park, error)

	// GetByExternalID retrieves a park by upstream external ID.
	GetByExternalID(ctx context.Context, externalID string) (*Park, error)

	// ListActive returns all parks currently tracked by the collector.
	ListActive(ctx context.Context) ([]Park, error)

	// ListByCountry returns active parks in one country (collection scope).
	ListByCountry(ctx context.Context, country string) ([]Park, error)
}

// RidesRepo provides ride entity persistence.
type RidesRepo interface {
	// Create inserts a new ride and returns the internal ID.
	Create(ctx context.Context, ride Ride) (int64, error)

	// GetByID retrieves a ride by internal ID.
	GetByID(ctx context.Context, id int64) (*Ride, error)

	// GetByExternalID retrieves a ride by upstream external ID.
	GetByExternalID(ctx context.Context, externalID string) (*Ride, error)

	// ListByPark returns all rides of a park.
	ListByPark(ctx context.Context, parkID int64) ([]Ride, error)

	// TouchLastOperated bumps last_operated_at for dormancy tracking.
	TouchLastOperated(ctx context.Context, rideID int64, at time.Time) error

	// UpsertClassification writes the classification row and the
	// denormalized ride tier in one transaction so the two never diverge.
	UpsertClassification(ctx context.Context, c RideClassification) error

	// GetClassification retrieves the canonical classification for a ride.
	GetClassification(ctx context.Context, rideID int64) (*RideClassification, error)
}

// SnapshotsRepo persists raw observations. Snapshots are append-only;
// WriteCycle persists one park cycle atomically.
type SnapshotsRepo interface {
	// WriteCycle persists the park activity snapshot and all ride status
	// snapshots of one collection cycle in a single transaction. All rows
	// must share the same recorded_at.
	WriteCycle(ctx context.Context, park ParkActivitySnapshot, rides []RideStatusSnapshot) error

	// InsertRideBatch appends ride snapshots outside a cycle (archive import).
	InsertRideBatch(ctx context.Context, snaps []RideStatusSnapshot) error

	// InsertStatusChanges appends observed status flips.
	InsertStatusChanges(ctx context.Context, changes []StatusChange) error

	// ListParkSnapshots returns park snapshots in a UTC window.
	ListParkSnapshots(ctx context.Context, parkID int64, tr TimeRange) ([]ParkActivitySnapshot, error)

	// ListRideSnapshots returns ride snapshots for a park in a UTC window.
	ListRideSnapshots(ctx context.Context, parkID int64, tr TimeRange) ([]RideStatusSnapshot, error)

	// ListStatusChanges returns status flips for a park in a UTC window.
	ListStatusChanges(ctx context.Context, parkID int64, tr TimeRange) ([]StatusChange, error)

	// ListAllParkSnapshots returns park snapshots across all parks in a
	// UTC window (YESTERDAY rankings path).
	ListAllParkSnapshots(ctx context.Context, tr TimeRange) ([]ParkActivitySnapshot, error)

	// ListAllRideSnapshots returns ride snapshots across all parks in a
	// UTC window (hybrid TODAY raw tail).
	ListAllRideSnapshots(ctx context.Context, tr TimeRange) ([]RideStatusSnapshot, error)

	// PruneBefore deletes raw snapshots older than cutoff. Callers must
	// hold the aggregation barrier for every affected date.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatsRepo persists derived aggregates; all writes are UPSERTs keyed by
// (entity, period key).
type StatsRepo interface {
	UpsertRideHourly(ctx context.Context, rows []RideHourlyStats) error
	UpsertParkHourly(ctx context.Context, rows []ParkHourlyStats) error
	UpsertRideDaily(ctx context.Context, rows []RideDailyStats) error
	UpsertParkDaily(ctx context.Context, rows []ParkDailyStats) error
	UpsertRideWeekly(ctx context.Context, rows []RideWeeklyStats) error
	UpsertParkWeekly(ctx context.Context, rows []ParkWeeklyStats) error

	ListRideHourly(ctx context.Context, tr TimeRange) ([]RideHourlyStats, error)
	ListParkHourly(ctx context.Context, tr TimeRange) ([]ParkHourlyStats, error)
	ListRideDaily(ctx context.Context, tr TimeRange) ([]RideDailyStats, error)
	ListParkDaily(ctx context.Context, tr TimeRange) ([]ParkDailyStats, error)
	GetRideWeekly(ctx context.Context, rideID int64, isoYear, isoWeek int) (*RideWeeklyStats, error)
	ListRideWeekly(ctx context.Context, isoYear, isoWeek int) ([]RideWeeklyStats, error)
	ListParkWeekly(ctx context.Context, isoYear, isoWeek int) ([]ParkWeeklyStats, error)
}

// RankingsRepo manages the live rankings staging/served table pair.
type RankingsRepo interface {
	// TruncateStaging clears both staging tables before a rebuild.
	TruncateStaging(ctx context.Context) error

	// InsertParkStaging bulk-inserts park rows into staging.
	InsertParkStaging(ctx context.Context, rows []ParkLiveRanking) error

	// InsertRideStaging bulk-inserts ride rows into staging.
	InsertRideStaging(ctx context.Context, rows []RideLiveRanking) error

	// SwapStaging atomically rotates staging into the served position for
	// both rankings tables in a single DDL transaction. Readers see either
	// the previous or the next generation, never a mix.
	SwapStaging(ctx context.Context) error

	ListParkRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]ParkLiveRanking, error)
	ListRideRankings(ctx context.Context, filter model.ParkFilter, limit int) ([]RideLiveRanking, error)
}

// ImportsRepo persists archive import checkpoints.
type ImportsRepo interface {
	Create(ctx context.Context, cp ImportCheckpoint) (int64, error)
	GetByID(ctx context.Context, id int64) (*ImportCheckpoint, error)
	GetByDestination(ctx context.Context, destUUID string) (*ImportCheckpoint, error)
	List(ctx context.Context, limit int) ([]ImportCheckpoint, error)

	// UpdateStatus enforces the checkpoint state machine and fails on an
	// illegal transition.
	UpdateStatus(ctx context.Context, id int64, to model.ImportStatus) error

	// SaveProgress atomically persists resume state and counters.
	SaveProgress(ctx context.Context, id int64, lastDate time.Time, lastFile string, imported, errors int64) error
}

// QualityRepo persists data quality log entries.
type QualityRepo interface {
	Insert(ctx context.Context, entry DataQualityLog) error
	ListByImport(ctx context.Context, importID int64, limit int) ([]DataQualityLog, error)
	CountByType(ctx context.Context, tr TimeRange) (map[model.QualityIssueType]int64, error)
}

// AggLogRepo persists the aggregation barrier log.
type AggLogRepo interface {
	// Get returns the most recent log row for (date, level), nil if none.
	Get(ctx context.Context, date time.Time, level model.AggregationLevel) (*AggregationLog, error)

	// Start writes a running row and returns its ID.
	Start(ctx context.Context, date time.Time, level model.AggregationLevel) (int64, error)

	// Finish marks a run successful with its entity count.
	Finish(ctx context.Context, id int64, entities int) error

	// Fail marks a run failed with the error message.
	Fail(ctx context.Context, id int64, cause string) error

	// HasSuccess reports whether the cleanup barrier holds for a date.
	HasSuccess(ctx context.Context, date time.Time, level model.AggregationLevel) (bool, error)
}

// MetricsRepo samples per-table storage statistics.
type MetricsRepo interface {
	Sample(ctx context.Context) ([]StorageMetrics, error)
	Insert(ctx context.Context, rows []StorageMetrics) error
	Latest(ctx context.Context) ([]StorageMetrics, error)
}

// Repository aggregates all persistence interfaces.
type Repository struct {
	Parks     ParksRepo
	Rides     RidesRepo
	Snapshots SnapshotsRepo
	Stats     StatsRepo
	Rankings  RankingsRepo
	Imports   ImportsRepo
	Quality   QualityRepo
	AggLog    AggLogRepo
	Metrics   MetricsRepo
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Schema is the warehouse DDL. Raw snapshot tables are partitioned by
// month on recorded_at so every date-bounded query prunes partitions;
// the query layer must never wrap recorded_at in DATE() or YEAR().
const Schema = `
CREATE TABLE IF NOT EXISTS parks (
    id           BIGSERIAL PRIMARY KEY,
    external_id  TEXT NOT NULL UNIQUE,
    name         TEXT NOT NULL,
    country      TEXT NOT NULL DEFAULT '',
    latitude     DOUBLE PRECISION,
    longitude    DOUBLE PRECISION,
    timezone     TEXT NOT NULL DEFAULT 'UTC',
    is_disney    BOOLEAN NOT NULL DEFAULT FALSE,
    is_universal BOOLEAN NOT NULL DEFAULT FALSE,
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rides (
    id               BIGSERIAL PRIMARY KEY,
    external_id      TEXT NOT NULL UNIQUE,
    park_id          BIGINT NOT NULL REFERENCES parks(id),
    name             TEXT NOT NULL,
    category         TEXT NOT NULL DEFAULT 'ATTRACTION',
    tier             INT NOT NULL DEFAULT 2,
    last_operated_at TIMESTAMPTZ,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rides_park ON rides(park_id);

CREATE TABLE IF NOT EXISTS ride_classifications (
    ride_id     BIGINT PRIMARY KEY REFERENCES rides(id),
    tier        INT NOT NULL,
    tier_weight INT NOT NULL,
    method      TEXT NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL,
    reasoning   TEXT NOT NULL DEFAULT '',
    sources     TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS park_activity_snapshots (
    id                BIGSERIAL,
    park_id           BIGINT NOT NULL,
    recorded_at       TIMESTAMPTZ NOT NULL,
    rides_tracked     INT NOT NULL,
    rides_open        INT NOT NULL,
    rides_closed      INT NOT NULL,
    avg_wait_time     DOUBLE PRECISION,
    max_wait_time     INT,
    park_appears_open BOOLEAN NOT NULL,
    shame_score       NUMERIC(3,1),
    data_source       TEXT NOT NULL DEFAULT 'LIVE',
    PRIMARY KEY (park_id, recorded_at),
    CONSTRAINT shame_score_range CHECK (shame_score IS NULL OR (shame_score >= 0.0 AND shame_score <= 10.0))
) PARTITION BY RANGE (recorded_at);

CREATE TABLE IF NOT EXISTS ride_status_snapshots (
    id               BIGSERIAL,
    ride_id          BIGINT NOT NULL,
    park_id          BIGINT NOT NULL,
    recorded_at      TIMESTAMPTZ NOT NULL,
    status           TEXT,
    computed_is_open BOOLEAN NOT NULL,
    wait_time        INT,
    data_source      TEXT NOT NULL DEFAULT 'LIVE',
    PRIMARY KEY (ride_id, recorded_at)
) PARTITION BY RANGE (recorded_at);

CREATE TABLE IF NOT EXISTS ride_status_changes (
    id          BIGSERIAL PRIMARY KEY,
    ride_id     BIGINT NOT NULL,
    from_status TEXT,
    to_status   TEXT,
    changed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_status_changes_ride_time ON ride_status_changes(ride_id, changed_at);

CREATE TABLE IF NOT EXISTS ride_hourly_stats (
    ride_id                 BIGINT NOT NULL,
    park_id                 BIGINT NOT NULL,
    hour_start_utc          TIMESTAMPTZ NOT NULL,
    operating_snapshots     INT NOT NULL,
    down_snapshots          INT NOT NULL,
    snapshot_count          INT NOT NULL,
    downtime_hours          DOUBLE PRECISION NOT NULL,
    weighted_downtime_hours DOUBLE PRECISION NOT NULL,
    effective_weight        INT NOT NULL,
    uptime_pct              DOUBLE PRECISION,
    avg_wait_time           DOUBLE PRECISION,
    ride_operated           BOOLEAN NOT NULL,
    PRIMARY KEY (ride_id, hour_start_utc)
);
CREATE INDEX IF NOT EXISTS idx_ride_hourly_park_hour ON ride_hourly_stats(park_id, hour_start_utc);

CREATE TABLE IF NOT EXISTS park_hourly_stats (
    park_id              BIGINT NOT NULL,
    hour_start_utc       TIMESTAMPTZ NOT NULL,
    avg_shame_score      DOUBLE PRECISION,
    avg_wait_time        DOUBLE PRECISION,
    max_wait_time        INT,
    rides_down           INT NOT NULL,
    total_downtime_hours DOUBLE PRECISION NOT NULL,
    park_was_open        BOOLEAN NOT NULL,
    snapshot_count       INT NOT NULL,
    PRIMARY KEY (park_id, hour_start_utc)
);

CREATE TABLE IF NOT EXISTS ride_daily_stats (
    ride_id                  BIGINT NOT NULL,
    park_id                  BIGINT NOT NULL,
    stat_date                DATE NOT NULL,
    uptime_minutes           INT NOT NULL,
    downtime_minutes         INT NOT NULL,
    operating_hours_minutes  INT NOT NULL,
    avg_wait_time            DOUBLE PRECISION,
    min_wait_time            INT,
    max_wait_time            INT,
    peak_wait_time           INT,
    status_changes           INT NOT NULL,
    longest_downtime_minutes INT NOT NULL,
    snapshot_count           INT NOT NULL,
    PRIMARY KEY (ride_id, stat_date)
);
CREATE INDEX IF NOT EXISTS idx_ride_daily_park_date ON ride_daily_stats(park_id, stat_date);

CREATE TABLE IF NOT EXISTS park_daily_stats (
    park_id              BIGINT NOT NULL,
    stat_date            DATE NOT NULL,
    avg_shame_score      DOUBLE PRECISION,
    total_downtime_hours DOUBLE PRECISION NOT NULL,
    rides_down           INT NOT NULL,
    avg_wait_time        DOUBLE PRECISION,
    peak_wait_time       INT,
    park_was_open        BOOLEAN NOT NULL,
    snapshot_count       INT NOT NULL,
    PRIMARY KEY (park_id, stat_date)
);

CREATE TABLE IF NOT EXISTS ride_weekly_stats (
    ride_id                 BIGINT NOT NULL,
    park_id                 BIGINT NOT NULL,
    iso_year                INT NOT NULL,
    iso_week                INT NOT NULL,
    week_start_date         DATE NOT NULL,
    uptime_minutes          INT NOT NULL,
    downtime_minutes        INT NOT NULL,
    operating_hours_minutes INT NOT NULL,
    uptime_percentage       DOUBLE PRECISION,
    avg_wait_time           DOUBLE PRECISION,
    peak_wait_time          INT,
    status_changes          INT NOT NULL,
    trend_vs_previous_week  DOUBLE PRECISION,
    days_with_data          INT NOT NULL,
    PRIMARY KEY (ride_id, iso_year, iso_week)
);

CREATE TABLE IF NOT EXISTS park_weekly_stats (
    park_id                BIGINT NOT NULL,
    iso_year               INT NOT NULL,
    iso_week               INT NOT NULL,
    week_start_date        DATE NOT NULL,
    avg_shame_score        DOUBLE PRECISION,
    total_downtime_hours   DOUBLE PRECISION NOT NULL,
    avg_wait_time          DOUBLE PRECISION,
    peak_wait_time         INT,
    trend_vs_previous_week DOUBLE PRECISION,
    days_with_data         INT NOT NULL,
    PRIMARY KEY (park_id, iso_year, iso_week)
);

CREATE TABLE IF NOT EXISTS park_live_rankings (
    park_id              BIGINT PRIMARY KEY,
    park_name            TEXT NOT NULL,
    is_disney            BOOLEAN NOT NULL,
    is_universal         BOOLEAN NOT NULL,
    shame_score          DOUBLE PRECISION,
    rides_tracked        INT NOT NULL,
    rides_open           INT NOT NULL,
    rides_down           INT NOT NULL,
    avg_wait_time        DOUBLE PRECISION,
    max_wait_time        INT,
    park_appears_open    BOOLEAN NOT NULL,
    today_downtime_hours DOUBLE PRECISION NOT NULL,
    recorded_at          TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS park_live_rankings_staging (LIKE park_live_rankings INCLUDING ALL);

CREATE TABLE IF NOT EXISTS ride_live_rankings (
    ride_id              BIGINT PRIMARY KEY,
    ride_name            TEXT NOT NULL,
    park_id              BIGINT NOT NULL,
    park_name            TEXT NOT NULL,
    tier                 INT NOT NULL,
    tier_weight          INT NOT NULL,
    current_status       TEXT,
    current_is_open      BOOLEAN NOT NULL,
    currently_down       BOOLEAN NOT NULL,
    wait_time            INT,
    park_is_open         BOOLEAN NOT NULL,
    today_downtime_hours DOUBLE PRECISION NOT NULL,
    today_avg_wait       DOUBLE PRECISION,
    today_peak_wait      INT,
    recorded_at          TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS ride_live_rankings_staging (LIKE ride_live_rankings INCLUDING ALL);

CREATE TABLE IF NOT EXISTS import_checkpoints (
    id                  BIGSERIAL PRIMARY KEY,
    destination_uuid    TEXT NOT NULL UNIQUE,
    status              TEXT NOT NULL DEFAULT 'PENDING',
    last_processed_date DATE,
    last_processed_file TEXT,
    records_imported    BIGINT NOT NULL DEFAULT 0,
    errors_encountered  BIGINT NOT NULL DEFAULT 0,
    resumable           BOOLEAN NOT NULL DEFAULT TRUE,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS data_quality_logs (
    id          BIGSERIAL PRIMARY KEY,
    import_id   BIGINT,
    issue_type  TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    external_id TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_quality_import ON data_quality_logs(import_id);

CREATE TABLE IF NOT EXISTS aggregation_logs (
    id               BIGSERIAL PRIMARY KEY,
    aggregation_date DATE NOT NULL,
    aggregation_type TEXT NOT NULL,
    status           TEXT NOT NULL,
    entities_updated INT NOT NULL DEFAULT 0,
    error            TEXT,
    started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_agglog_date_type ON aggregation_logs(aggregation_date, aggregation_type);

CREATE TABLE IF NOT EXISTS storage_metrics (
    table_name     TEXT NOT NULL,
    row_count      BIGINT NOT NULL,
    data_bytes     BIGINT NOT NULL,
    index_bytes    BIGINT NOT NULL,
    growth_per_day DOUBLE PRECISION NOT NULL DEFAULT 0,
    sampled_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (table_name, sampled_at)
);
`

// Migrate applies the schema and ensures snapshot partitions exist for the
// months surrounding now.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return EnsurePartitions(ctx, db, time.Now().UTC().AddDate(0, -1, 0), time.Now().UTC().AddDate(0, 2, 0))
}

// EnsurePartitions creates monthly range partitions for both snapshot
// tables covering [from, to]. Partition names follow <table>_yYYYYmMM.
func EnsurePartitions(ctx context.Context, db *sqlx.DB, from, to time.Time) error {
	month := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)

	for !month.After(end) {
		next := month.AddDate(0, 1, 0)
		for _, table := range []string{"park_activity_snapshots", "ride_status_snapshots"} {
			name := fmt.Sprintf("%s_y%dm%02d", table, month.Year(), int(month.Month()))
			ddl := fmt.Sprintf(
				`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
				name, table,
				month.Format("2006-01-02"), next.Format("2006-01-02"),
			)
			if _, err := db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("failed to create partition %s: %w", name, err)
			}
		}
		month = next
	}
	return nil
}

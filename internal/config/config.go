package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parkpulse/parkpulse/internal/persistence/postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Database  postgres.Config `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	Collector CollectorConfig `yaml:"collector"`
	Query     QueryConfig     `yaml:"query"`
	Import    ImportConfig    `yaml:"import"`
	LogLevel  string          `yaml:"log_level"`
}

// HTTPConfig holds serving-layer settings.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds the optional query-cache backend. Empty Addr selects
// the in-memory cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CollectorConfig holds collection-pipeline settings.
type CollectorConfig struct {
	// SnapshotIntervalMinutes is the collection cadence; it also fixes
	// the minutes-per-snapshot constant used by downtime math.
	SnapshotIntervalMinutes int `yaml:"snapshot_interval_minutes"`

	// FilterCountry restricts collection to parks in one country;
	// empty collects everything.
	FilterCountry string `yaml:"filter_country"`

	// OpenRideThreshold is the minimum open rides for the
	// park-appears-open heuristic.
	OpenRideThreshold int `yaml:"open_ride_threshold"`

	// OpenRideFraction is the alternative fractional heuristic; the park
	// appears open when max(threshold, fraction*tracked) rides are open.
	OpenRideFraction float64 `yaml:"open_ride_fraction"`

	// Workers bounds the per-park collection pool.
	Workers int `yaml:"workers"`

	// RequestTimeout is the per-upstream-request timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ParkBudget is the per-park overall collection budget.
	ParkBudget time.Duration `yaml:"park_budget"`

	// AutoCreateRides controls whether unresolvable rides are created.
	AutoCreateRides bool `yaml:"auto_create_rides"`

	// DormantAfter excludes rides not operated for this long from live
	// rankings.
	DormantAfter time.Duration `yaml:"dormant_after"`
}

// QueryConfig holds query-layer settings.
type QueryConfig struct {
	// LiveWindowHours is the lookback for "latest" ride snapshots in the
	// live materializer.
	LiveWindowHours int `yaml:"live_window_hours"`

	// UseHourlyTables toggles the hybrid TODAY strategy; when false the
	// raw-snapshot path services the whole day.
	UseHourlyTables bool `yaml:"use_hourly_tables"`

	// DefaultLimit caps ranking responses when the request omits one.
	DefaultLimit int `yaml:"default_limit"`
}

// ImportConfig holds archive-import settings.
type ImportConfig struct {
	BatchSize          int    `yaml:"import_batch_size"`
	CheckpointInterval int    `yaml:"import_checkpoint_interval"`
	ArchiveBaseURL     string `yaml:"archive_base_url"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Database: postgres.DefaultConfig(),
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: 60 * time.Second,
		},
		Collector: CollectorConfig{
			SnapshotIntervalMinutes: 10,
			OpenRideThreshold:       3,
			OpenRideFraction:        0.2,
			Workers:                 8,
			RequestTimeout:          30 * time.Second,
			ParkBudget:              120 * time.Second,
			AutoCreateRides:         true,
			DormantAfter:            7 * 24 * time.Hour,
		},
		Query: QueryConfig{
			LiveWindowHours: 2,
			UseHourlyTables: true,
			DefaultLimit:    50,
		},
		Import: ImportConfig{
			BatchSize:          500,
			CheckpointInterval: 10,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file, applies defaults for missing keys, then
// applies PARKPULSE_* environment overrides. An empty path returns the
// defaults plus env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Collector.SnapshotIntervalMinutes <= 0 {
		return fmt.Errorf("snapshot_interval_minutes must be positive, got %d", c.Collector.SnapshotIntervalMinutes)
	}
	if c.Query.LiveWindowHours <= 0 {
		return fmt.Errorf("live_window_hours must be positive, got %d", c.Query.LiveWindowHours)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import_batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if c.Collector.Workers <= 0 {
		return fmt.Errorf("collector workers must be positive, got %d", c.Collector.Workers)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PARKPULSE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PARKPULSE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PARKPULSE_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("PARKPULSE_SNAPSHOT_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collector.SnapshotIntervalMinutes = n
		}
	}
	if v := os.Getenv("PARKPULSE_LIVE_WINDOW_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.LiveWindowHours = n
		}
	}
	if v := os.Getenv("PARKPULSE_USE_HOURLY_TABLES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Query.UseHourlyTables = b
		}
	}
	if v := os.Getenv("PARKPULSE_FILTER_COUNTRY"); v != "" {
		cfg.Collector.FilterCountry = v
	}
	if v := os.Getenv("PARKPULSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

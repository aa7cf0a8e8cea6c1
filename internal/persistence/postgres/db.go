package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/parkpulse/parkpulse/internal/persistence"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns production-safe pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    15 * time.Second,
	}
}

// Connect opens and verifies a PostgreSQL connection pool.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// NewRepository wires all PostgreSQL repositories against one pool.
func NewRepository(db *sqlx.DB, timeout time.Duration) *persistence.Repository {
	if timeout <= 0 {
		timeout = DefaultConfig().QueryTimeout
	}
	return &persistence.Repository{
		Parks:     NewParksRepo(db, timeout),
		Rides:     NewRidesRepo(db, timeout),
		Snapshots: NewSnapshotsRepo(db, timeout),
		Stats:     NewStatsRepo(db, timeout),
		Rankings:  NewRankingsRepo(db, timeout),
		Imports:   NewImportsRepo(db, timeout),
		Quality:   NewQualityRepo(db, timeout),
		AggLog:    NewAggLogRepo(db, timeout),
		Metrics:   NewMetricsRepo(db, timeout),
	}
}

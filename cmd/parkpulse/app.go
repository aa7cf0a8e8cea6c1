package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/parkpulse/parkpulse/internal/aggregator"
	"github.com/parkpulse/parkpulse/internal/cache"
	"github.com/parkpulse/parkpulse/internal/classifier"
	"github.com/parkpulse/parkpulse/internal/collector"
	"github.com/parkpulse/parkpulse/internal/config"
	"github.com/parkpulse/parkpulse/internal/importer"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/persistence/postgres"
	"github.com/parkpulse/parkpulse/internal/query"
	"github.com/parkpulse/parkpulse/internal/rankings"
	"github.com/parkpulse/parkpulse/internal/resolver"
	"github.com/parkpulse/parkpulse/internal/sources"
	"github.com/parkpulse/parkpulse/internal/sources/queuepark"
	"github.com/parkpulse/parkpulse/internal/sources/themegrid"
)

// app bundles the wired subsystems a command needs.
type app struct {
	cfg       config.Config
	db        *sqlx.DB
	repo      *persistence.Repository
	queuepark *queuepark.Client
	themegrid *themegrid.Client
	resolver  *resolver.Resolver
	collector *collector.Collector
	agg       *aggregator.Aggregator
	ranks     *rankings.Materializer
	query     *query.Service
	importer  *importer.Importer
}

// buildApp loads config and wires the application graph.
func buildApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	setLogLevel(cfg.LogLevel)

	db, err := postgres.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repo := postgres.NewRepository(db, cfg.Database.QueryTimeout)

	qp := queuepark.New("", sources.NewTransport("queuepark", cfg.Collector.RequestTimeout, 5, 10))
	tg := themegrid.New("", sources.NewTransport("themegrid", cfg.Collector.RequestTimeout, 5, 10))

	res := resolver.New(repo.Rides, cfg.Collector.AutoCreateRides)
	coll := collector.New(repo, qp, res, cfg.Collector)
	agg := aggregator.New(repo, cfg.Collector.SnapshotIntervalMinutes)
	ranks := rankings.New(repo, liveWindow(cfg), cfg.Collector.DormantAfter)

	queryCache := cache.New(cfg.Redis.Addr)
	q := query.New(repo, queryCache, cfg.Query, cfg.Collector.SnapshotIntervalMinutes, cfg.Redis.CacheTTL)

	imp := importer.New(repo, tg, res, cfg.Import)

	return &app{
		cfg:       cfg,
		db:        db,
		repo:      repo,
		queuepark: qp,
		themegrid: tg,
		resolver:  res,
		collector: coll,
		agg:       agg,
		ranks:     ranks,
		query:     q,
		importer:  imp,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// loadClassifier builds the tiering pipeline from the optional override
// and cache files.
func (a *app) loadClassifier(overridesPath, cachePath string) (*classifier.Classifier, *classifier.ResultCache, error) {
	var overrides *classifier.OverrideSet
	if overridesPath != "" {
		var err error
		overrides, err = classifier.LoadOverrides(overridesPath)
		if err != nil {
			return nil, nil, err
		}
	}

	resultCache, err := classifier.LoadResultCache(cachePath)
	if err != nil {
		return nil, nil, err
	}

	return classifier.New(a.repo.Rides, overrides, resultCache, nil), resultCache, nil
}

// syncParks refreshes the park catalog from the primary source.
func (a *app) syncParks(ctx context.Context) (int, error) {
	infos, err := a.queuepark.ListParks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list upstream parks: %w", err)
	}

	n := 0
	for _, info := range infos {
		if a.cfg.Collector.FilterCountry != "" && info.Country != a.cfg.Collector.FilterCountry {
			continue
		}
		park := persistence.Park{
			ExternalID:  info.ExternalID,
			Name:        info.Name,
			Country:     info.Country,
			Timezone:    info.Timezone,
			IsDisney:    isCompany(info.Company, "disney"),
			IsUniversal: isCompany(info.Company, "universal"),
			Active:      true,
		}
		if info.Latitude != 0 || info.Longitude != 0 {
			lat, lon := info.Latitude, info.Longitude
			park.Latitude = &lat
			park.Longitude = &lon
		}
		if _, err := a.repo.Parks.Upsert(ctx, park); err != nil {
			return n, fmt.Errorf("failed to upsert park %s: %w", info.Name, err)
		}
		n++
	}
	return n, nil
}

func isCompany(company, needle string) bool {
	return strings.Contains(strings.ToLower(company), needle)
}

func liveWindow(cfg config.Config) time.Duration {
	return time.Duration(cfg.Query.LiveWindowHours) * time.Hour
}

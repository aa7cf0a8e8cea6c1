package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parkpulse/parkpulse/internal/persistence/postgres"
	"github.com/parkpulse/parkpulse/internal/scheduler"
)

func collectCmd() *cobra.Command {
	var syncParks bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if syncParks {
				n, err := a.syncParks(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("parks", n).Msg("park catalog synced")
			}

			report, err := a.collector.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("collected %d parks (%d failed), %d ride snapshots in %s\n",
				report.ParksOK, report.ParksFailed, report.RidesRecorded, report.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&syncParks, "sync-parks", false, "Refresh the park catalog before collecting")
	return cmd
}

func aggregateCmd() *cobra.Command {
	var dateStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate one date into hourly, daily, and weekly stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			date := time.Now().UTC().AddDate(0, 0, -1)
			if dateStr != "" {
				date, err = time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
				}
			}

			return a.agg.RunDaily(cmd.Context(), date, force)
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "Date to aggregate (YYYY-MM-DD, default yesterday)")
	cmd.Flags().BoolVar(&force, "force", false, "Rerun even over a prior success")
	return cmd
}

func materializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materialize",
		Short: "Rebuild the live ranking tables once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.ranks.Rebuild(cmd.Context())
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <destination-uuid>",
		Short: "Import a destination's historical archive",
		Long: `Replays a destination's archive day files into the snapshot tables.
Progress is checkpointed; rerunning the command resumes from the day
after the last completed file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.importer.Run(cmd.Context(), args[0])
		},
	}
	return cmd
}

func classifyCmd() *cobra.Command {
	var overridesPath, cachePath string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify ride tiers for all active parks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cls, resultCache, err := a.loadClassifier(overridesPath, cachePath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			parks, err := a.repo.Parks.ListActive(ctx)
			if err != nil {
				return err
			}

			classified := 0
			for _, park := range parks {
				rides, err := a.repo.Rides.ListByPark(ctx, park.ID)
				if err != nil {
					return err
				}
				for _, ride := range rides {
					if _, err := cls.Classify(ctx, park, ride); err != nil {
						log.Warn().Err(err).Int64("ride_id", ride.ID).Msg("classification failed")
						continue
					}
					classified++
				}
			}

			if err := resultCache.Flush(); err != nil {
				return err
			}
			fmt.Printf("classified %d rides\n", classified)
			return nil
		},
	}

	cmd.Flags().StringVar(&overridesPath, "overrides", "", "Path to tier overrides CSV")
	cmd.Flags().StringVar(&cachePath, "cache", "classifications.json", "Path to classification cache JSON")
	return cmd
}

func jobsCmd() *cobra.Command {
	var jobsPath string

	cmd := &cobra.Command{
		Use:   "jobs [job-name]",
		Short: "List configured jobs, or run one by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.New(jobsPath, a.jobHandlers(nil))
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return sched.RunJob(cmd.Context(), args[0])
			}

			for _, job := range sched.ListJobs() {
				state := "disabled"
				if job.Enabled {
					state = "enabled"
				}
				fmt.Printf("%-20s %-10s every %-8s %s\n", job.Name, state, job.Interval, job.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobsPath, "jobs", "jobs.yaml", "Path to jobs YAML")
	return cmd
}

func migrateCmd() *cobra.Command {
	var partitionMonths int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and ensure snapshot partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := postgres.Migrate(ctx, a.db); err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := postgres.EnsurePartitions(ctx, a.db, now.AddDate(0, -1, 0), now.AddDate(0, partitionMonths, 0)); err != nil {
				return err
			}

			fmt.Println("schema applied")
			return nil
		},
	}

	cmd.Flags().IntVar(&partitionMonths, "partition-months", 3, "Months of future snapshot partitions to create")
	return cmd
}

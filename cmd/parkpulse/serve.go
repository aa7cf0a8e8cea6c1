package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parkpulse/parkpulse/internal/httpapi"
	"github.com/parkpulse/parkpulse/internal/scheduler"
)

func serveCmd() *cobra.Command {
	var jobsPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and scheduled jobs",
		Long: `Runs the HTTP API alongside the job scheduler: snapshot collection,
rankings rebuilds, daily aggregation, snapshot pruning, and storage
sampling all run in-process on their configured intervals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			hub := httpapi.NewHub()

			var sched *scheduler.Scheduler
			if jobsPath != "" {
				sched, err = scheduler.New(jobsPath, a.jobHandlers(hub))
				if err != nil {
					return err
				}
			}

			server, err := httpapi.NewServer(a.cfg.HTTP, a.query, a.repo, a.importer, sched, hub)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 2)
			go func() { errCh <- server.Start() }()
			if sched != nil {
				go func() { errCh <- sched.Start(ctx) }()
			}

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					log.Error().Err(err).Msg("subsystem failed")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&jobsPath, "jobs", "", "Path to jobs YAML (omit to serve without the scheduler)")
	return cmd
}

// jobHandlers maps job types to their implementations.
func (a *app) jobHandlers(hub *httpapi.Hub) map[string]scheduler.JobFunc {
	return map[string]scheduler.JobFunc{
		"collect": func(ctx context.Context) error {
			if _, err := a.collector.RunCycle(ctx); err != nil {
				return err
			}
			if err := a.ranks.Rebuild(ctx); err != nil {
				return err
			}
			if hub != nil {
				hub.Broadcast(a.ranks.Generation())
			}
			return nil
		},
		"sync-parks": func(ctx context.Context) error {
			n, err := a.syncParks(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("parks", n).Msg("park catalog synced")
			return nil
		},
		"aggregate": func(ctx context.Context) error {
			yesterday := time.Now().UTC().AddDate(0, 0, -1)
			return a.agg.RunDaily(ctx, yesterday, false)
		},
		"prune": func(ctx context.Context) error {
			_, err := a.agg.PruneSnapshots(ctx, 90, 14)
			return err
		},
		"storage": func(ctx context.Context) error {
			rows, err := a.repo.Metrics.Sample(ctx)
			if err != nil {
				return err
			}
			return a.repo.Metrics.Insert(ctx, rows)
		},
	}
}

// Package scheduler runs the recurring warehouse jobs: snapshot
// collection, rankings rebuild, daily aggregation, snapshot pruning,
// and storage sampling. Jobs come from a YAML file; each enabled job
// runs on its own interval ticker.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// JobFunc executes one job run.
type JobFunc func(ctx context.Context) error

// Job is one scheduled job configuration.
type Job struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "collect", "rankings", "aggregate", "prune", "storage"
	Interval    time.Duration `yaml:"interval"`
	Description string        `yaml:"description"`
	Enabled     bool          `yaml:"enabled"`
}

// Config holds the scheduler configuration.
type Config struct {
	Jobs []Job `yaml:"jobs"`
}

// Status reports the scheduler's current state.
type Status struct {
	Running      bool                 `json:"running"`
	EnabledJobs  int                  `json:"enabled_jobs"`
	DisabledJobs int                  `json:"disabled_jobs"`
	Uptime       time.Duration        `json:"uptime"`
	LastRuns     map[string]JobResult `json:"last_runs"`
}

// JobResult is the outcome of the most recent run of one job.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Scheduler manages the recurring jobs.
type Scheduler struct {
	config   Config
	handlers map[string]JobFunc

	mu        sync.Mutex
	startTime time.Time
	running   bool
	lastRuns  map[string]JobResult
}

// New creates a scheduler from a YAML config file.
func New(configPath string, handlers map[string]JobFunc) (*Scheduler, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, job := range config.Jobs {
		if job.Enabled {
			if _, ok := handlers[job.Type]; !ok {
				return nil, fmt.Errorf("job %q has unknown type %q", job.Name, job.Type)
			}
			if job.Interval <= 0 {
				return nil, fmt.Errorf("job %q has no interval", job.Name)
			}
		}
	}

	return &Scheduler{
		config:   config,
		handlers: handlers,
		lastRuns: make(map[string]JobResult),
	}, nil
}

func loadConfig(configPath string) (Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// ListJobs returns all configured jobs.
func (s *Scheduler) ListJobs() []Job {
	return s.config.Jobs
}

// GetStatus returns the current scheduler status.
func (s *Scheduler) GetStatus() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, disabled := 0, 0
	for _, job := range s.config.Jobs {
		if job.Enabled {
			enabled++
		} else {
			disabled++
		}
	}

	var uptime time.Duration
	if s.running {
		uptime = time.Since(s.startTime)
	}

	lastRuns := make(map[string]JobResult, len(s.lastRuns))
	for k, v := range s.lastRuns {
		lastRuns[k] = v
	}

	return &Status{
		Running:      s.running,
		EnabledJobs:  enabled,
		DisabledJobs: disabled,
		Uptime:       uptime,
		LastRuns:     lastRuns,
	}
}

// Start runs all enabled jobs on their intervals until ctx is cancelled.
// Each job runs once immediately at startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var wg sync.WaitGroup
	started := 0
	for _, job := range s.config.Jobs {
		if !job.Enabled {
			continue
		}
		started++
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runLoop(ctx, job)
		}(job)
	}

	if started == 0 {
		return fmt.Errorf("no enabled jobs")
	}

	log.Info().Int("jobs", started).Msg("scheduler started")
	wg.Wait()
	return nil
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// RunJob executes one configured job by name, for manual invocation.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, job := range s.config.Jobs {
		if job.Name == name {
			s.runOnce(ctx, job)

			s.mu.Lock()
			result := s.lastRuns[job.Name]
			s.mu.Unlock()
			if !result.Success {
				return fmt.Errorf("job %q failed: %s", name, result.Error)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	handler := s.handlers[job.Type]
	if handler == nil {
		log.Error().Str("job", job.Name).Str("type", job.Type).Msg("no handler for job type")
		return
	}

	start := time.Now()
	err := handler(ctx)
	result := JobResult{
		JobName:   job.Name,
		StartTime: start,
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
		log.Error().Str("job", job.Name).Dur("duration", result.Duration).Err(err).Msg("job failed")
	} else {
		log.Info().Str("job", job.Name).Dur("duration", result.Duration).Msg("job complete")
	}

	s.mu.Lock()
	s.lastRuns[job.Name] = result
	s.mu.Unlock()
}

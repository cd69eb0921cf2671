// Package scheduler runs the service's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Job is a named task run at a fixed interval.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

// Scheduler manages maintenance jobs using gocron.
type Scheduler struct {
	cron   gocron.Scheduler
	jobs   map[string]uuid.UUID // job name → gocron job UUID
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a new Scheduler.
func New(logger *slog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	return &Scheduler{
		cron:   cron,
		jobs:   make(map[string]uuid.UUID),
		logger: logger,
	}, nil
}

// Start starts the gocron scheduler.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.logger.Info("maintenance scheduler started", "jobs", n)
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// Schedule adds a job, replacing any job with the same name.
func (s *Scheduler) Schedule(ctx context.Context, job Job) error {
	if job.Every <= 0 {
		return fmt.Errorf("job %q: interval must be positive", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if jobID, ok := s.jobs[job.Name]; ok {
		if err := s.cron.RemoveJob(jobID); err != nil {
			s.logger.Warn("failed to remove existing job", "job", job.Name, "error", err)
		}
		delete(s.jobs, job.Name)
	}

	run := job.Run
	name := job.Name
	j, err := s.cron.NewJob(
		gocron.DurationJob(job.Every),
		gocron.NewTask(func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("maintenance job panicked", "job", name, "panic", r)
				}
			}()
			run(ctx)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling job %q: %w", job.Name, err)
	}

	s.jobs[job.Name] = j.ID()
	s.logger.Info("job scheduled", "job", job.Name, "every", job.Every)
	return nil
}

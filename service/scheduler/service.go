// Package scheduler drives the cooperative polling loops: every watcher and
// the engine registers a named job with its own interval, and shutdown stops
// them all gracefully.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is one named polling loop.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Service schedules jobs with independent intervals.
type Service struct {
	scheduler gocron.Scheduler
	jobs      []Job

	mux sync.RWMutex
	ctx context.Context
}

// New creates a scheduler service.
func New() (*Service, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Service{scheduler: s}, nil
}

// Register adds a job; call before Start.
func (s *Service) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s requires a positive interval", job.Name)
	}
	run := job.Run
	name := job.Name
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(job.Interval),
		gocron.NewTask(func() {
			ctx := s.context()
			if ctx.Err() != nil {
				return
			}
			if err := run(ctx); err != nil {
				log.Printf("scheduler: job %s failed: %v", name, err)
			}
		}),
		gocron.WithName(name),
		// A run outliving its interval must not overlap the next one; the
		// engine scan in particular is not safe to run concurrently with
		// itself over the same approved files.
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches all registered jobs. The context is handed to every job
// run; cancelling it makes subsequent runs no-ops while Shutdown stops the
// loops themselves.
func (s *Service) Start(ctx context.Context) {
	s.mux.Lock()
	s.ctx = ctx
	s.mux.Unlock()
	s.scheduler.Start()
	log.Printf("scheduler: started %d jobs", len(s.jobs))
}

// Shutdown stops all jobs and waits for in-flight runs to finish.
func (s *Service) Shutdown() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}

// Jobs returns the registered jobs.
func (s *Service) Jobs() []Job { return s.jobs }

func (s *Service) context() context.Context {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

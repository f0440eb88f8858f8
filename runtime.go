package vetflow

import (
	"context"
	"log"
)

// Runtime controls the lifecycle of the polling loops.
type Runtime struct {
	service *Service
	cancel  context.CancelFunc
}

// Runtime returns the lifecycle controller.
func (s *Service) Runtime() *Runtime {
	return &Runtime{service: s}
}

// Start launches the scheduler with all watcher and engine jobs.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.service.scheduler.Start(ctx)
	log.Printf("vetflow: runtime started (workspace=%s)", r.service.config.BaseURL)
	return nil
}

// Shutdown stops the loops gracefully, waits for in-flight cycles and
// flushes the ledger.
func (r *Runtime) Shutdown() error {
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.service.scheduler.Shutdown(); err != nil {
		return err
	}
	return r.service.ledger.Close()
}

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs periodic health sweeps over the registry on a cron
// schedule, keeping model statuses current between on-demand checks.
type Sweeper struct {
	registry *Registry
	cron     *cron.Cron
	schedule string
	onSweep  func(results map[string]bool)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
}

// NewSweeper creates a sweeper with the given cron schedule
// (e.g. "@every 30s" or "*/1 * * * *"). onSweep, if non-nil, receives
// each sweep's results; the metrics collector hooks in here.
func NewSweeper(registry *Registry, schedule string, onSweep func(map[string]bool)) *Sweeper {
	return &Sweeper{
		registry: registry,
		cron:     cron.New(),
		schedule: schedule,
		onSweep:  onSweep,
		logger:   slog.Default().With("component", "registry.sweeper"),
	}
}

// Start schedules the sweep. It returns an error for an invalid cron
// expression or if the sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	id, err := s.cron.AddFunc(s.schedule, func() { s.sweep(ctx) })
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true

	s.logger.Info("health sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info("health sweeper stopped")
}

// SweepNow runs one sweep immediately, outside the schedule.
func (s *Sweeper) SweepNow(ctx context.Context) map[string]bool {
	results := s.registry.HealthCheckAll(ctx)
	if s.onSweep != nil {
		s.onSweep(results)
	}
	return results
}

func (s *Sweeper) sweep(ctx context.Context) {
	results := s.SweepNow(ctx)

	healthy := 0
	for _, ok := range results {
		if ok {
			healthy++
		}
	}
	s.logger.Debug("health sweep complete", "models", len(results), "healthy", healthy)
}

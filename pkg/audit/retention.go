package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Retention prunes the audit log on a cron schedule, deleting entries
// older than the configured number of days. A retention of zero days
// means keep nothing: every scheduled run empties the log.
type Retention struct {
	store    *Store
	schedule string
	days     int

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewRetention creates a pruner over the given store.
func NewRetention(store *Store, schedule string, days int) *Retention {
	return &Retention{
		store:    store,
		schedule: schedule,
		days:     days,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "audit.retention"),
	}
}

// Start begins scheduled pruning. An empty schedule disables it.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("retention schedule not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule retention pruning: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("retention pruning scheduled",
		"schedule", r.schedule,
		"retention_days", r.days,
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// RunNow performs one pruning cycle immediately.
func (r *Retention) RunNow(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.days)
	return r.store.Prune(ctx, cutoff)
}

func (r *Retention) run(ctx context.Context) {
	deleted, err := r.RunNow(ctx)
	if err != nil {
		r.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("scheduled pruning completed", "deleted", deleted)
	}
}

// Stop halts the schedule and waits for a running job to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		<-r.cron.Stop().Done()
		r.running = false
		r.logger.Info("retention pruning stopped")
	}
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes audit records older than the retention window.
type Pruner interface {
	PruneBefore(cutoff string) (int64, error)
}

type Retention struct {
	Store    Pruner
	MaxAge   time.Duration
	Schedule string
	Logger   *slog.Logger
	Now      func() time.Time
	// OnPrune observes each run.
	OnPrune func(removed int64, err error)

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// PruneOnce runs a single pruning pass.
func (r *Retention) PruneOnce() (int64, error) {
	if r.MaxAge <= 0 {
		return 0, nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := FormatTime(now().Add(-r.MaxAge))
	removed, err := r.Store.PruneBefore(cutoff)
	if r.OnPrune != nil {
		r.OnPrune(removed, err)
	}
	return removed, err
}

// Start schedules pruning until ctx is done. An empty schedule or a zero
// retention window disables it.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger()
	if r.Schedule == "" || r.MaxAge <= 0 {
		logger.Info("audit retention disabled")
		return nil
	}
	if _, err := cron.ParseStandard(r.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", r.Schedule, err)
	}

	r.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := r.cron.AddFunc(r.Schedule, func() { r.run(logger) }); err != nil {
		return fmt.Errorf("schedule pruning: %w", err)
	}
	r.cron.Start()
	r.running = true
	logger.Info("audit retention scheduled", "schedule", r.Schedule, "max_age", r.MaxAge.String())

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil || !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
}

func (r *Retention) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Retention) run(logger *slog.Logger) {
	removed, err := r.PruneOnce()
	if err != nil {
		logger.Error("audit pruning failed", "error", err)
		return
	}
	logger.Info("audit pruning completed", "removed", removed)
}

func (r *Retention) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

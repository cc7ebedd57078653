package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retention periodically deletes files older than maxAge from a Store.
type Retention struct {
	store  Store
	maxAge time.Duration
	log    *zap.Logger
	now    func() time.Time
	cron   *cron.Cron
}

func NewRetention(store Store, maxAge time.Duration, log *zap.Logger) *Retention {
	return &Retention{
		store:  store,
		maxAge: maxAge,
		log:    log,
		now:    time.Now,
	}
}

// Sweep removes every file whose modification time is before now-maxAge and
// returns how many were deleted.
func (r *Retention) Sweep(ctx context.Context) (int, error) {
	files, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list storage: %w", err)
	}

	cutoff := r.now().Add(-r.maxAge)
	deleted := 0
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := r.store.Delete(ctx, f.Name); err != nil && !errors.Is(err, ErrNotFound) {
			r.log.Warn("Failed to delete expired file", zap.String("name", f.Name), zap.Error(err))
			continue
		}
		deleted++
	}

	r.log.Info("Retention sweep finished",
		zap.Int("scanned", len(files)),
		zap.Int("deleted", deleted),
		zap.Duration("max_age", r.maxAge))
	return deleted, nil
}

// Start schedules Sweep with a cron spec such as "@every 1h" or "0 3 * * *".
func (r *Retention) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			r.log.Error("Retention sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop waits for a running sweep to finish.
func (r *Retention) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor purges expired entries from stores that do not expire keys themselves.
type Janitor struct {
	store  Store
	every  time.Duration
	batch  int
	now    func() time.Time
	logger *zap.Logger
}

func NewJanitor(store Store, every time.Duration, batch int, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{store: store, every: every, batch: batch, now: time.Now, logger: logger}
}

// Run purges once per interval until ctx ends. A non-positive interval returns at once.
func (j *Janitor) Run(ctx context.Context) error {
	if j.store == nil || j.every <= 0 {
		return nil
	}
	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	purged, err := j.store.Purge(ctx, j.now().UTC(), j.batch)
	switch {
	case err != nil:
		j.logger.Warn("idempotency purge failed", zap.Error(err))
	case purged > 0:
		j.logger.Debug("idempotency keys purged", zap.Int("count", purged))
	}
}

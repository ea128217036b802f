package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
)

const DefaultCacheSweepInterval = 10 * time.Minute

type ExpiredEntryDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CacheExpirationWorker removes translation cache rows past their TTL.
type CacheExpirationWorker struct {
	store        ExpiredEntryDeleter
	tickInterval time.Duration
}

func NewCacheExpirationWorker(store ExpiredEntryDeleter, interval time.Duration) *CacheExpirationWorker {
	if interval <= 0 {
		interval = DefaultCacheSweepInterval
	}
	return &CacheExpirationWorker{
		store:        store,
		tickInterval: interval,
	}
}

// Start sweeps once immediately, then on every tick until ctx is done.
func (w *CacheExpirationWorker) Start(ctx context.Context) {
	log := zap.L().With(zap.String("worker", "cache_expiration"))
	log.Info("worker started", zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CacheExpirationWorker) sweep(ctx context.Context) int64 {
	deleted, err := w.store.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			middleware.RecordIntegrationError("postgres")
			zap.L().Warn("translation cache sweep failed", zap.Error(err))
		}
		return 0
	}
	if deleted > 0 {
		zap.L().Info("expired translation cache entries removed", zap.Int64("deleted", deleted))
	}
	return deleted
}

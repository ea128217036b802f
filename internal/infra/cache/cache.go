package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// Store is a keyed byte store with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Memory is the in-process tier. Ristretto may refuse an admission under
// pressure, so a Put is not a guarantee that the next Get hits.
type Memory struct {
	c *ristretto.Cache[string, []byte]
}

func NewMemory(maxBytes int64) (*Memory, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Memory{c: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.SetWithTTL(key, value, int64(len(value)), ttl)
	m.c.Wait()
	return nil
}

func (m *Memory) Close() {
	m.c.Close()
}

// Tiered reads the local tier first and falls back to the shared one,
// copying shared hits into the local tier.
type Tiered struct {
	Local  Store
	Shared Store
	// LocalTTL bounds how long a shared hit stays in the local tier.
	LocalTTL time.Duration
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.Local != nil {
		if v, ok, err := t.Local.Get(ctx, key); err == nil && ok {
			return v, true, nil
		}
	}
	if t.Shared == nil {
		return nil, false, nil
	}

	v, ok, err := t.Shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if t.Local != nil {
		ttl := t.LocalTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		if err := t.Local.Put(ctx, key, v, ttl); err != nil {
			zap.L().Debug("local cache fill failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, true, nil
}

func (t *Tiered) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.Local != nil {
		localTTL := ttl
		if t.LocalTTL > 0 && t.LocalTTL < ttl {
			localTTL = t.LocalTTL
		}
		if err := t.Local.Put(ctx, key, value, localTTL); err != nil {
			zap.L().Debug("local cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	if t.Shared == nil {
		return nil
	}
	return t.Shared.Put(ctx, key, value, ttl)
}

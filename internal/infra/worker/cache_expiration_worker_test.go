package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingDeleter struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (d *countingDeleter) DeleteExpired(context.Context) (int64, error) {
	d.calls.Add(1)
	return d.deleted, d.err
}

func TestSweepReturnsDeletedCount(t *testing.T) {
	store := &countingDeleter{deleted: 3}

	n := NewCacheExpirationWorker(store, time.Minute).sweep(context.Background())

	assert.Equal(t, int64(3), n)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestSweepSwallowsStoreError(t *testing.T) {
	store := &countingDeleter{err: errors.New("connection reset")}

	n := NewCacheExpirationWorker(store, time.Minute).sweep(context.Background())

	assert.Zero(t, n)
}

func TestStartSweepsImmediatelyAndOnTick(t *testing.T) {
	store := &countingDeleter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		NewCacheExpirationWorker(store, 10*time.Millisecond).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestDefaultInterval(t *testing.T) {
	w := NewCacheExpirationWorker(&countingDeleter{}, 0)

	assert.Equal(t, DefaultCacheSweepInterval, w.tickInterval)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu     sync.Mutex
	values map[string][]byte
	puts   int
	err    error
}

func newMapStore() *mapStore {
	return &mapStore{values: map[string][]byte{}}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestMemoryPutThenGet(t *testing.T) {
	m, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(context.Background(), "k", []byte("v"), time.Minute))

	v, ok, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	if ok {
		assert.Equal(t, []byte("v"), v)
	}

	_, ok, err = m.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTieredFillsLocalFromShared(t *testing.T) {
	ctx := context.Background()
	local, shared := newMapStore(), newMapStore()
	shared.values["k"] = []byte("v")
	tc := &Tiered{Local: local, Shared: shared}

	v, ok, err := tc.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, []byte("v"), local.values["k"])
}

func TestTieredPutWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	local, shared := newMapStore(), newMapStore()
	tc := &Tiered{Local: local, Shared: shared, LocalTTL: time.Minute}

	require.NoError(t, tc.Put(ctx, "k", []byte("v"), 24*time.Hour))

	assert.Equal(t, 1, local.puts)
	assert.Equal(t, 1, shared.puts)
}

func TestTieredSurfacesSharedErrors(t *testing.T) {
	ctx := context.Background()
	shared := newMapStore()
	shared.err = errors.New("db down")
	tc := &Tiered{Local: newMapStore(), Shared: shared}

	_, ok, err := tc.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Error(t, tc.Put(ctx, "k", []byte("v"), time.Hour))
}

func TestTieredWithoutShared(t *testing.T) {
	ctx := context.Background()
	tc := &Tiered{Local: newMapStore()}

	require.NoError(t, tc.Put(ctx, "k", []byte("v"), time.Hour))
	v, ok, err := tc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type IdempotencyStore struct {
	mu   sync.Mutex
	rows map[string]entity.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{rows: map[string]entity.IdempotencyRecord{}}
}

func (s *IdempotencyStore) Find(_ context.Context, key string) (*entity.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	rec.Response = append([]byte(nil), rec.Response...)
	return &rec, nil
}

func (s *IdempotencyStore) InsertIfAbsent(_ context.Context, rec *entity.IdempotencyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[rec.Key]; ok {
		return false, nil
	}
	cp := *rec
	cp.Response = append([]byte(nil), rec.Response...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.rows[rec.Key] = cp
	return true, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[key]
	if !ok || !rec.Pending() {
		return entity.ErrNotFound
	}
	rec.Response = append([]byte(nil), response...)
	s.rows[key] = rec
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.rows[key]; ok && rec.Pending() {
		delete(s.rows, key)
	}
	return nil
}

func (s *IdempotencyStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.rows {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

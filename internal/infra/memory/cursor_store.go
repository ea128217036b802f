package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type cursorKey struct {
	org, namespace string
}

type CursorStore struct {
	mu   sync.Mutex
	rows map[cursorKey]entity.CursorState
}

func NewCursorStore() *CursorStore {
	return &CursorStore{rows: map[cursorKey]entity.CursorState{}}
}

func (s *CursorStore) Get(_ context.Context, orgID, namespace string) (*entity.CursorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[cursorKey{orgID, namespace}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *CursorStore) Save(_ context.Context, cursor *entity.CursorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cursor
	c.UpdatedAt = time.Now().UTC()
	s.rows[cursorKey{cursor.OrganizationID, cursor.Namespace}] = c
	return nil
}

func (s *CursorStore) Reset(_ context.Context, orgID, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, cursorKey{orgID, namespace})
	return nil
}

package memory

import (
	"context"
	"sync"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type EnrichmentStore struct {
	mu         sync.Mutex
	byPersonID map[string]*entity.Enrichment
	byEmail    map[string]*entity.Enrichment
}

func NewEnrichmentStore() *EnrichmentStore {
	return &EnrichmentStore{
		byPersonID: map[string]*entity.Enrichment{},
		byEmail:    map[string]*entity.Enrichment{},
	}
}

func (s *EnrichmentStore) FindByExternalPersonID(_ context.Context, externalPersonID string) (*entity.Enrichment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byPersonID[externalPersonID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *EnrichmentStore) InsertIfAbsent(_ context.Context, e *entity.Enrichment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPersonID[e.ExternalPersonID]; ok {
		return false, nil
	}
	email := e.EmailValue()
	if email != "" {
		if _, ok := s.byEmail[email]; ok {
			return false, entity.ErrEnrichmentEmailTaken
		}
	}

	cp := *e
	s.byPersonID[e.ExternalPersonID] = &cp
	if email != "" {
		s.byEmail[email] = &cp
	}
	return true, nil
}

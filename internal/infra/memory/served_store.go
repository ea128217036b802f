package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type servedKey struct {
	org, scope, email string
}

type ServedLeadStore struct {
	mu   sync.Mutex
	rows map[servedKey]*entity.ServedLead
}

func NewServedLeadStore() *ServedLeadStore {
	return &ServedLeadStore{rows: map[servedKey]*entity.ServedLead{}}
}

func (s *ServedLeadStore) IsServed(_ context.Context, orgID, scopeKey, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.rows[servedKey{orgID, scopeKey, entity.NormalizeEmail(email)}]
	return ok, nil
}

func (s *ServedLeadStore) ServedEmails(_ context.Context, orgID, scopeKey string, emails []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]bool{}
	for _, e := range emails {
		e = entity.NormalizeEmail(e)
		if _, ok := s.rows[servedKey{orgID, scopeKey, e}]; ok {
			out[e] = true
		}
	}
	return out, nil
}

func (s *ServedLeadStore) InsertIfAbsent(_ context.Context, served *entity.ServedLead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := servedKey{served.OrganizationID, served.ScopeKey, entity.NormalizeEmail(served.Email)}
	if _, ok := s.rows[key]; ok {
		return false, nil
	}
	cp := *served
	s.rows[key] = &cp
	return true, nil
}

// List orders by servedAt descending, newest first.
func (s *ServedLeadStore) List(_ context.Context, filter entity.ServedLeadFilter) ([]*entity.ServedLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*entity.ServedLead
	for k, r := range s.rows {
		if k.org == filter.OrganizationID && k.scope == filter.ScopeKey {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ServedAt.After(matched[j].ServedAt)
	})

	if filter.Offset >= len(matched) {
		return []*entity.ServedLead{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *ServedLeadStore) Count(_ context.Context, orgID, scopeKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.rows {
		if k.org == orgID && k.scope == scopeKey {
			n++
		}
	}
	return n, nil
}

// Package memory holds single-process implementations of the repositories.
// Each store guards its rows with a mutex so the conditional inserts are
// atomic, matching the unique constraints of the Postgres schema.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

type BufferedLeadStore struct {
	mu   sync.Mutex
	rows []*entity.BufferedLead
}

func NewBufferedLeadStore() *BufferedLeadStore {
	return &BufferedLeadStore{}
}

func (s *BufferedLeadStore) Insert(_ context.Context, lead *entity.BufferedLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only email-less rows are unique per person; a lead that already
	// carries an address is always accepted.
	if lead.ExternalPersonID != "" && !lead.HasEmail() {
		for _, r := range s.rows {
			if r.OrganizationID == lead.OrganizationID && r.Namespace == lead.Namespace &&
				r.ExternalPersonID == lead.ExternalPersonID && !r.HasEmail() {
				return entity.ErrLeadAlreadyBuffered
			}
		}
	}
	cp := *lead
	s.rows = append(s.rows, &cp)
	return nil
}

// NextBuffered prefers rows that already carry an email, then insertion order.
func (s *BufferedLeadStore) NextBuffered(_ context.Context, orgID, namespace string) (*entity.BufferedLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fallback *entity.BufferedLead
	for _, r := range s.rows {
		if r.OrganizationID != orgID || r.Namespace != namespace || r.Status != entity.LeadStatusBuffered {
			continue
		}
		if r.HasEmail() {
			cp := *r
			return &cp, nil
		}
		if fallback == nil {
			fallback = r
		}
	}
	if fallback == nil {
		return nil, nil
	}
	cp := *fallback
	return &cp, nil
}

func (s *BufferedLeadStore) ExistsByExternalPersonID(_ context.Context, orgID, namespace, externalPersonID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.OrganizationID == orgID && r.Namespace == namespace && r.ExternalPersonID == externalPersonID {
			return true, nil
		}
	}
	return false, nil
}

func (s *BufferedLeadStore) UpdateEnrichment(_ context.Context, id, email string, payload json.RawMessage) error {
	return s.update(id, func(r *entity.BufferedLead) {
		r.Email = entity.NormalizeEmail(email)
		r.Payload = payload
	})
}

func (s *BufferedLeadStore) MarkServed(_ context.Context, id string) error {
	return s.update(id, func(r *entity.BufferedLead) {
		r.Status = entity.LeadStatusServed
	})
}

func (s *BufferedLeadStore) MarkSkipped(_ context.Context, id string) error {
	return s.update(id, func(r *entity.BufferedLead) {
		if r.Status == entity.LeadStatusBuffered {
			r.Status = entity.LeadStatusSkipped
		}
	})
}

func (s *BufferedLeadStore) CountByStatus(_ context.Context, orgID, namespace string) (map[entity.LeadStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[entity.LeadStatus]int{}
	for _, r := range s.rows {
		if r.OrganizationID == orgID && r.Namespace == namespace {
			counts[r.Status]++
		}
	}
	return counts, nil
}

// All returns copies of every row, oldest first.
func (s *BufferedLeadStore) All() []entity.BufferedLead {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.BufferedLead, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, *r)
	}
	return out
}

func (s *BufferedLeadStore) update(id string, fn func(*entity.BufferedLead)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.ID == id {
			fn(r)
			r.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return entity.ErrNotFound
}

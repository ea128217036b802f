package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enrichment caches one enrichment-provider answer per external person.
// A nil Email is the tombstone for "provider has no email for this person".
type Enrichment struct {
	ID               string          `json:"id"`
	ExternalPersonID string          `json:"externalPersonId"`
	Email            *string         `json:"email"`
	FirstName        string          `json:"firstName,omitempty"`
	LastName         string          `json:"lastName,omitempty"`
	Title            string          `json:"title,omitempty"`
	OrganizationName string          `json:"organizationName,omitempty"`
	RawResponse      json.RawMessage `json:"rawResponse,omitempty"`
	EnrichedAt       time.Time       `json:"enrichedAt"`
}

func NewEnrichment(externalPersonID, email string) *Enrichment {
	e := &Enrichment{
		ID:               uuid.New().String(),
		ExternalPersonID: externalPersonID,
		EnrichedAt:       time.Now().UTC(),
	}
	if normalized := NormalizeEmail(email); normalized != "" {
		e.Email = &normalized
	}
	return e
}

func (e *Enrichment) IsTombstone() bool {
	return e.Email == nil || *e.Email == ""
}

func (e *Enrichment) EmailValue() string {
	if e.Email == nil {
		return ""
	}
	return *e.Email
}

type EnrichmentRepository interface {
	// FindByExternalPersonID returns nil, nil on a cache miss.
	FindByExternalPersonID(ctx context.Context, externalPersonID string) (*Enrichment, error)
	// InsertIfAbsent is a no-op when either the person id or the email is
	// already cached.
	InsertIfAbsent(ctx context.Context, e *Enrichment) (bool, error)
}

package entity

import (
	"context"
	"time"
)

// CursorState is the durable page cursor for the search provider, one per
// (organization, namespace). Page is the next page to fetch, starting at 1.
type CursorState struct {
	OrganizationID string    `json:"organizationId"`
	Namespace      string    `json:"namespace"`
	Page           int       `json:"page"`
	TotalPages     int       `json:"totalPages"`
	Exhausted      bool      `json:"exhausted"`
	FiltersHash    string    `json:"filtersHash,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewCursorState(orgID, namespace, filtersHash string) *CursorState {
	return &CursorState{
		OrganizationID: orgID,
		Namespace:      namespace,
		Page:           1,
		FiltersHash:    filtersHash,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Advance records that fetchedPage was consumed.
func (c *CursorState) Advance(fetchedPage, totalPages int, done bool) {
	c.Page = fetchedPage + 1
	c.TotalPages = totalPages
	c.Exhausted = done || fetchedPage >= totalPages
	c.UpdatedAt = time.Now().UTC()
}

func (c *CursorState) MarkExhausted() {
	c.Exhausted = true
	c.UpdatedAt = time.Now().UTC()
}

type CursorRepository interface {
	// Get returns nil, nil when no cursor was saved yet.
	Get(ctx context.Context, orgID, namespace string) (*CursorState, error)
	Save(ctx context.Context, cursor *CursorState) error
	Reset(ctx context.Context, orgID, namespace string) error
}

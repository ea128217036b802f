package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ServedLead is the dedup registry row. A row existing for
// (OrganizationID, ScopeKey, Email) is what "already served" means.
type ServedLead struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"organizationId"`
	ScopeKey         string          `json:"scopeKey"`
	Namespace        string          `json:"namespace"`
	BrandID          string          `json:"brandId,omitempty"`
	Email            string          `json:"email"`
	ExternalPersonID string          `json:"externalPersonId,omitempty"`
	BufferedLeadID   string          `json:"bufferedLeadId,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ParentRunID      string          `json:"parentRunId,omitempty"`
	RunID            string          `json:"runId,omitempty"`
	ActorID          string          `json:"actorId,omitempty"`
	ServedAt         time.Time       `json:"servedAt"`
}

func NewServedLead(lead *BufferedLead, scopeKey string) *ServedLead {
	return &ServedLead{
		ID:               uuid.New().String(),
		OrganizationID:   lead.OrganizationID,
		ScopeKey:         scopeKey,
		Namespace:        lead.Namespace,
		BrandID:          lead.BrandID,
		Email:            NormalizeEmail(lead.Email),
		ExternalPersonID: lead.ExternalPersonID,
		BufferedLeadID:   lead.ID,
		Payload:          lead.Payload,
		ActorID:          lead.ActorID,
		ServedAt:         time.Now().UTC(),
	}
}

type ServedLeadFilter struct {
	OrganizationID string
	ScopeKey       string
	Limit          int
	Offset         int
}

type ServedLeadRepository interface {
	IsServed(ctx context.Context, orgID, scopeKey, email string) (bool, error)
	// ServedEmails returns the subset of emails already served in the scope.
	ServedEmails(ctx context.Context, orgID, scopeKey string, emails []string) (map[string]bool, error)
	// InsertIfAbsent is the at-most-once gate: a single conditional insert
	// that reports false when another caller already served the email.
	InsertIfAbsent(ctx context.Context, served *ServedLead) (bool, error)
	List(ctx context.Context, filter ServedLeadFilter) ([]*ServedLead, error)
	Count(ctx context.Context, orgID, scopeKey string) (int, error)
}

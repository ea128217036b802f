package entity

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusBuffered LeadStatus = "buffered"
	LeadStatusServed   LeadStatus = "served"
	LeadStatusSkipped  LeadStatus = "skipped"
)

// BufferedLead is a candidate waiting in the staging buffer of one
// (organization, namespace). Rows are never deleted; status is the audit trail.
type BufferedLead struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"organizationId"`
	Namespace        string          `json:"namespace"`
	Email            string          `json:"email"` // empty until enriched
	ExternalPersonID string          `json:"externalPersonId,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	Status           LeadStatus      `json:"status"`
	BrandID          string          `json:"brandId,omitempty"`
	RunID            string          `json:"runId,omitempty"`
	ActorID          string          `json:"actorId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func NewBufferedLead(orgID, namespace, email, externalPersonID string, payload json.RawMessage) *BufferedLead {
	now := time.Now().UTC()
	return &BufferedLead{
		ID:               uuid.New().String(),
		OrganizationID:   orgID,
		Namespace:        namespace,
		Email:            NormalizeEmail(email),
		ExternalPersonID: strings.TrimSpace(externalPersonID),
		Payload:          payload,
		Status:           LeadStatusBuffered,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (l *BufferedLead) HasEmail() bool {
	return l.Email != ""
}

// NormalizeEmail is applied on every write and lookup so the dedup
// registry compares bare addresses case-insensitively. A display-name
// form such as "Ana <ana@x.io>" reduces to "ana@x.io".
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(email); err == nil {
		email = addr.Address
	}
	return strings.ToLower(email)
}

type BufferedLeadRepository interface {
	Insert(ctx context.Context, lead *BufferedLead) error
	// NextBuffered returns nil, nil when nothing is buffered for the pair.
	NextBuffered(ctx context.Context, orgID, namespace string) (*BufferedLead, error)
	ExistsByExternalPersonID(ctx context.Context, orgID, namespace, externalPersonID string) (bool, error)
	UpdateEnrichment(ctx context.Context, id, email string, payload json.RawMessage) error
	MarkServed(ctx context.Context, id string) error
	// MarkSkipped only moves rows that are still buffered.
	MarkSkipped(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, orgID, namespace string) (map[LeadStatus]int, error)
}

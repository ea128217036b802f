package usecase

import (
	"encoding/json"
	"strings"
	"time"
)

type PushLeadInput struct {
	Email            string          `json:"email"`
	ExternalPersonID string          `json:"externalPersonId,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

type PushLeadsInput struct {
	OrganizationID string          `json:"organizationId"`
	Namespace      string          `json:"namespace"`
	BrandID        string          `json:"brandId,omitempty"`
	RunID          string          `json:"runId,omitempty"`
	Leads          []PushLeadInput `json:"leads"`
}

// trim puts the tenant fields in the form used for buffer rows and scope
// keys alike.
func (in *PushLeadsInput) trim() {
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)
	in.Namespace = strings.TrimSpace(in.Namespace)
	in.BrandID = strings.TrimSpace(in.BrandID)
}

type PushLeadsOutput struct {
	Buffered             int `json:"buffered"`
	SkippedAlreadyServed int `json:"skippedAlreadyServed"`
	SkippedDuplicate     int `json:"skippedDuplicate"`
}

// BackfillParams asks a pull to refill an empty buffer from the search
// provider. Query is free text and goes through the filter translator.
type BackfillParams struct {
	Query   string         `json:"query,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	PerPage int            `json:"perPage,omitempty"`
}

type PullNextInput struct {
	OrganizationID string          `json:"organizationId"`
	Namespace      string          `json:"namespace"`
	BrandID        string          `json:"brandId,omitempty"`
	ParentRunID    string          `json:"parentRunId,omitempty"`
	ActorID        string          `json:"actorId,omitempty"`
	Backfill       *BackfillParams `json:"backfill,omitempty"`
}

func (in *PullNextInput) trim() {
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)
	in.Namespace = strings.TrimSpace(in.Namespace)
	in.BrandID = strings.TrimSpace(in.BrandID)
}

type PullOutcome string

const (
	OutcomeServed              PullOutcome = "served"
	OutcomeEmpty               PullOutcome = "empty"
	OutcomeExhausted           PullOutcome = "exhausted"
	OutcomeIterationCap        PullOutcome = "iteration_cap"
	OutcomePageCap             PullOutcome = "page_cap"
	OutcomeTranslationFailed   PullOutcome = "translation_failed"
	OutcomeUpstreamUnavailable PullOutcome = "upstream_unavailable"
)

type PullNextOutput struct {
	Found   bool        `json:"found"`
	Outcome PullOutcome `json:"outcome"`
	Lead    *LeadView   `json:"lead,omitempty"`
}

type LeadView struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	ExternalPersonID string          `json:"externalPersonId,omitempty"`
	Namespace        string          `json:"namespace"`
	BrandID          string          `json:"brandId,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	RunID            string          `json:"runId,omitempty"`
	ServedAt         time.Time       `json:"servedAt"`
}

type ListServedInput struct {
	OrganizationID string
	Namespace      string
	BrandID        string
	Limit          int
	Offset         int
}

type ListServedOutput struct {
	Items  []LeadView `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type LeadStatsOutput struct {
	Namespace string `json:"namespace"`
	ScopeKey  string `json:"scopeKey"`
	Buffered  int    `json:"buffered"`
	Served    int    `json:"served"`
	Skipped   int    `json:"skipped"`
	// ServedInScope counts registry rows, which may span namespaces in
	// brand scope mode.
	ServedInScope int `json:"servedInScope"`
}

type CursorInput struct {
	OrganizationID string `json:"-"`
	Namespace      string `json:"-"`
	Page           int    `json:"page"`
	Exhausted      bool   `json:"exhausted"`
}

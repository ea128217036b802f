package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/memory"
)

type engine struct {
	leads       *memory.BufferedLeadStore
	served      *memory.ServedLeadStore
	enrichments *memory.EnrichmentStore
	cursors     *memory.CursorStore
	search      *MockSearchProvider
	enricher    *MockEnrichmentProvider
	push        *PushLeadsUseCase
	walker      *BackfillWalker
	pull        *PullNextUseCase
}

func newEngine() *engine {
	e := &engine{
		leads:       memory.NewBufferedLeadStore(),
		served:      memory.NewServedLeadStore(),
		enrichments: memory.NewEnrichmentStore(),
		cursors:     memory.NewCursorStore(),
		search:      new(MockSearchProvider),
		enricher:    new(MockEnrichmentProvider),
	}
	e.push = NewPushLeadsUseCase(e.leads, e.served, entity.ScopeByNamespace)
	e.walker = &BackfillWalker{
		Search:      e.search,
		Leads:       e.leads,
		Served:      e.served,
		Enrichments: e.enrichments,
		Cursors:     e.cursors,
		PerPage:     10,
	}
	e.pull = &PullNextUseCase{
		Leads:       e.leads,
		Served:      e.served,
		Enrichments: e.enrichments,
		Enricher:    e.enricher,
		Walker:      e.walker,
		Scope:       entity.ScopeByNamespace,
	}
	return e
}

func (e *engine) pushEmails(t *testing.T, org, ns string, emails ...string) *PushLeadsOutput {
	t.Helper()
	leads := make([]PushLeadInput, 0, len(emails))
	for _, em := range emails {
		leads = append(leads, PushLeadInput{Email: em})
	}
	out, err := e.push.Execute(context.Background(), PushLeadsInput{OrganizationID: org, Namespace: ns, Leads: leads})
	require.NoError(t, err)
	return out
}

func (e *engine) pullOnce(t *testing.T, in PullNextInput) *PullNextOutput {
	t.Helper()
	out, err := e.pull.Execute(context.Background(), in)
	require.NoError(t, err)
	return out
}

func (e *engine) markServed(t *testing.T, org, scopeKey, email string) {
	t.Helper()
	lead := entity.NewBufferedLead(org, "seed", email, "", nil)
	ok, err := e.served.InsertIfAbsent(context.Background(), entity.NewServedLead(lead, scopeKey))
	require.NoError(t, err)
	require.True(t, ok)
}

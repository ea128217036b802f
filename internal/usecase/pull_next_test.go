package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/delivery"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/gemini"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
	"github.com/xavierca1/leadbuffer/internal/infra/memory"
)

func pageOf(n int) any {
	return mock.MatchedBy(func(r people.SearchRequest) bool { return r.Page == n })
}

func TestPushPullRepushPull(t *testing.T) {
	e := newEngine()
	in := PullNextInput{OrganizationID: "org", Namespace: "ns"}

	e.pushEmails(t, "org", "ns", "a@x.com")

	first := e.pullOnce(t, in)
	require.True(t, first.Found)
	assert.Equal(t, OutcomeServed, first.Outcome)
	assert.Equal(t, "a@x.com", first.Lead.Email)

	again := e.pushEmails(t, "org", "ns", "a@x.com")
	assert.Equal(t, 1, again.SkippedAlreadyServed)
	assert.Zero(t, again.Buffered)

	second := e.pullOnce(t, in)
	assert.False(t, second.Found)
	assert.Equal(t, OutcomeEmpty, second.Outcome)
	assert.Nil(t, second.Lead)
}

func TestProviderDisplayNameEmailDedupsAgainstBareAddress(t *testing.T) {
	e := newEngine()
	in := PullNextInput{OrganizationID: "org", Namespace: "ns", Backfill: &BackfillParams{}}
	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p1", Email: "Alice <A@x.com>"}},
		TotalPages: 1,
	}, nil).Once()

	first := e.pullOnce(t, in)
	require.True(t, first.Found)
	assert.Equal(t, "a@x.com", first.Lead.Email)

	again := e.pushEmails(t, "org", "ns", "a@x.com")
	assert.Equal(t, 1, again.SkippedAlreadyServed)
	assert.Zero(t, again.Buffered)

	second := e.pullOnce(t, in)
	assert.False(t, second.Found)
}

func TestConcurrentPullsServeEmailAtMostOnce(t *testing.T) {
	e := newEngine()
	for i := 0; i < 8; i++ {
		e.pushEmails(t, "org", "ns", "same@x.com")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	found := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.pull.Execute(context.Background(), PullNextInput{OrganizationID: "org", Namespace: "ns"})
			assert.NoError(t, err)
			if out != nil && out.Found {
				mu.Lock()
				found++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, found)
	n, err := e.served.Count(context.Background(), "org", "ns:ns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := e.leads.CountByStatus(context.Background(), "org", "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[entity.LeadStatusServed])
	assert.Equal(t, 7, counts[entity.LeadStatusSkipped])
	assert.Zero(t, counts[entity.LeadStatusBuffered])
}

// staleServed always answers "not served" so the conditional insert is
// the only thing standing between two pulls.
type staleServed struct {
	*memory.ServedLeadStore
}

func (staleServed) IsServed(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func TestInsertConflictSkipsRowAndContinues(t *testing.T) {
	e := newEngine()
	e.pull.Served = staleServed{e.served}
	e.pushEmails(t, "org", "ns", "a@x.com")
	e.markServed(t, "org", "ns:ns", "a@x.com")

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns"})

	assert.False(t, out.Found)
	counts, err := e.leads.CountByStatus(context.Background(), "org", "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[entity.LeadStatusSkipped])
}

func TestEnrichmentProviderCalledOncePerPerson(t *testing.T) {
	e := newEngine()
	e.enricher.On("Enrich", mock.Anything, "p1").Return(&people.EnrichResponse{
		Person: &people.Person{ID: "p1", Email: "Ana@Acme.io", FirstName: "Ana"},
	}, nil).Once()

	for _, ns := range []string{"ns1", "ns2"} {
		_, err := e.push.Execute(context.Background(), PushLeadsInput{
			OrganizationID: "org",
			Namespace:      ns,
			Leads:          []PushLeadInput{{ExternalPersonID: "p1", Payload: []byte(`{"source":"push"}`)}},
		})
		require.NoError(t, err)
	}

	first := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns1"})
	second := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns2"})

	require.True(t, first.Found)
	require.True(t, second.Found)
	assert.Equal(t, "ana@acme.io", first.Lead.Email)
	assert.Equal(t, "ana@acme.io", second.Lead.Email)
	assert.JSONEq(t, `{"source":"push","email":"ana@acme.io","first_name":"Ana"}`, string(first.Lead.Payload))
	e.enricher.AssertNumberOfCalls(t, "Enrich", 1)
}

func TestSharedAddressAcrossPersonsStillServes(t *testing.T) {
	e := newEngine()
	e.enricher.On("Enrich", mock.Anything, "p1").Return(&people.EnrichResponse{
		Person: &people.Person{ID: "p1", Email: "shared@x.com"},
	}, nil).Once()
	e.enricher.On("Enrich", mock.Anything, "p2").Return(&people.EnrichResponse{
		Person: &people.Person{ID: "p2", Email: "shared@x.com"},
	}, nil).Once()

	for _, lead := range []struct{ ns, person string }{{"ns1", "p1"}, {"ns2", "p2"}} {
		_, err := e.push.Execute(context.Background(), PushLeadsInput{
			OrganizationID: "org", Namespace: lead.ns, Leads: []PushLeadInput{{ExternalPersonID: lead.person}},
		})
		require.NoError(t, err)
	}

	first := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns1"})
	second := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns2"})

	require.True(t, first.Found)
	require.True(t, second.Found)
	assert.Equal(t, "shared@x.com", second.Lead.Email)

	cached, err := e.enrichments.FindByExternalPersonID(context.Background(), "p2")
	require.NoError(t, err)
	assert.Nil(t, cached, "the address belongs to p1 in the cache")
}

func TestNoEmailTombstoneIsNeverReEnriched(t *testing.T) {
	e := newEngine()
	e.enricher.On("Enrich", mock.Anything, "p9").Return(&people.EnrichResponse{}, nil).Once()

	for _, ns := range []string{"ns1", "ns2"} {
		_, err := e.push.Execute(context.Background(), PushLeadsInput{
			OrganizationID: "org",
			Namespace:      ns,
			Leads:          []PushLeadInput{{ExternalPersonID: "p9"}},
		})
		require.NoError(t, err)
	}

	assert.False(t, e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns1"}).Found)
	assert.False(t, e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns2"}).Found)

	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p9"}},
		Page:       1,
		TotalPages: 1,
	}, nil).Once()
	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns3", Backfill: &BackfillParams{}})

	assert.False(t, out.Found)
	assert.Equal(t, OutcomeExhausted, out.Outcome)
	e.enricher.AssertNumberOfCalls(t, "Enrich", 1)

	counts, err := e.leads.CountByStatus(context.Background(), "org", "ns3")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestEnrichmentFailureLeavesLeadBuffered(t *testing.T) {
	e := newEngine()
	e.enricher.On("Enrich", mock.Anything, "p1").Return(nil, errors.New("connection refused"))
	_, err := e.push.Execute(context.Background(), PushLeadsInput{
		OrganizationID: "org", Namespace: "ns", Leads: []PushLeadInput{{ExternalPersonID: "p1"}},
	})
	require.NoError(t, err)

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns"})

	assert.False(t, out.Found)
	assert.Equal(t, OutcomeUpstreamUnavailable, out.Outcome)
	counts, err := e.leads.CountByStatus(context.Background(), "org", "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[entity.LeadStatusBuffered])

	cached, err := e.enrichments.FindByExternalPersonID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, cached, "a failed call must not write a tombstone")
}

func TestExhaustedCursorStaysExhaustedUntilReset(t *testing.T) {
	e := newEngine()
	in := PullNextInput{OrganizationID: "org", Namespace: "ns", Backfill: &BackfillParams{Filters: map[string]any{"person_titles": []string{"cto"}}}}

	e.search.On("Search", mock.Anything, mock.Anything).Return(&people.SearchResponse{Done: true}, nil).Once()

	first := e.pullOnce(t, in)
	assert.False(t, first.Found)
	assert.Equal(t, OutcomeExhausted, first.Outcome)

	second := e.pullOnce(t, in)
	assert.Equal(t, OutcomeExhausted, second.Outcome)
	e.search.AssertNumberOfCalls(t, "Search", 1)

	admin := &CursorAdminUseCase{Cursors: e.cursors}
	require.NoError(t, admin.Reset(context.Background(), "org", "ns"))

	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p1", Email: "new@x.com"}},
		Page:       1,
		TotalPages: 4,
	}, nil).Once()

	third := e.pullOnce(t, in)
	require.True(t, third.Found)
	assert.Equal(t, "new@x.com", third.Lead.Email)

	cursor, err := e.cursors.Get(context.Background(), "org", "ns")
	require.NoError(t, err)
	assert.Equal(t, 2, cursor.Page)
	assert.False(t, cursor.Exhausted)
}

func TestPageOfDuplicatesAdvancesToNextPage(t *testing.T) {
	e := newEngine()
	e.markServed(t, "org", "ns:ns", "old@x.com")

	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p1", Email: "old@x.com"}},
		Page:       1,
		TotalPages: 3,
	}, nil).Once()
	e.search.On("Search", mock.Anything, pageOf(2)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p2", Email: "fresh@x.com"}},
		Page:       2,
		TotalPages: 3,
	}, nil).Once()

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns", Backfill: &BackfillParams{}})

	require.True(t, out.Found)
	assert.Equal(t, "fresh@x.com", out.Lead.Email)
	e.search.AssertExpectations(t)
}

func TestBackfillPageCap(t *testing.T) {
	e := newEngine()
	e.pull.MaxBackfillPages = 2
	e.markServed(t, "org", "ns:ns", "old@x.com")
	e.search.On("Search", mock.Anything, mock.Anything).Return(&people.SearchResponse{
		People:     []people.Person{{Email: "old@x.com"}},
		TotalPages: 100,
	}, nil)

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns", Backfill: &BackfillParams{}})

	assert.False(t, out.Found)
	assert.Equal(t, OutcomePageCap, out.Outcome)
	e.search.AssertNumberOfCalls(t, "Search", 2)
}

func TestIterationCap(t *testing.T) {
	e := newEngine()
	e.pull.MaxIterations = 3
	ctx := context.Background()

	leads := make([]PushLeadInput, 0, 5)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("p%d", i)
		_, err := e.enrichments.InsertIfAbsent(ctx, entity.NewEnrichment(id, ""))
		require.NoError(t, err)
		leads = append(leads, PushLeadInput{ExternalPersonID: id})
	}
	_, err := e.push.Execute(ctx, PushLeadsInput{OrganizationID: "org", Namespace: "ns", Leads: leads})
	require.NoError(t, err)

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns"})

	assert.False(t, out.Found)
	assert.Equal(t, OutcomeIterationCap, out.Outcome)
	counts, err := e.leads.CountByStatus(ctx, "org", "ns")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[entity.LeadStatusSkipped])
	assert.Equal(t, 2, counts[entity.LeadStatusBuffered])
	e.enricher.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
}

func TestDeliveryCheckSkipsContactedLeads(t *testing.T) {
	e := newEngine()
	checker := new(MockDeliveryChecker)
	e.pull.Delivery = checker

	checker.On("Status", mock.Anything, "ns", mock.MatchedBy(func(items []delivery.StatusItem) bool {
		return items[0].Email == "a@x.com"
	})).Return([]delivery.StatusResult{{
		Email:     "a@x.com",
		Broadcast: delivery.ChannelStatus{Global: delivery.ScopeFlags{Contacted: true}},
	}}, nil)
	checker.On("Status", mock.Anything, "ns", mock.MatchedBy(func(items []delivery.StatusItem) bool {
		return items[0].Email == "b@x.com"
	})).Return(nil, errors.New("gateway down"))

	e.pushEmails(t, "org", "ns", "a@x.com", "b@x.com")

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns"})

	require.True(t, out.Found)
	assert.Equal(t, "b@x.com", out.Lead.Email)
}

func TestServeRecordsLineageAndToleratesPublishFailure(t *testing.T) {
	e := newEngine()
	tracker := new(MockRunTracker)
	publisher := new(MockPublisher)
	e.pull.Runs = tracker
	e.pull.Publisher = publisher

	tracker.On("CreateRun", mock.Anything, mock.Anything).Return("run-1", nil)
	completed := make(chan struct{})
	tracker.On("CompleteRun", mock.Anything, "run-1", "completed").Return(nil).Run(func(mock.Arguments) {
		close(completed)
	})
	publisher.On("PublishServed", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	e.pushEmails(t, "org", "ns", "a@x.com")

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns", ParentRunID: "parent-7", ActorID: "agent-1"})

	require.True(t, out.Found)
	assert.Equal(t, "run-1", out.Lead.RunID)

	rows, err := e.served.List(context.Background(), entity.ServedLeadFilter{OrganizationID: "org", ScopeKey: "ns:ns", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "parent-7", rows[0].ParentRunID)
	assert.Equal(t, "agent-1", rows[0].ActorID)

	publisher.AssertNumberOfCalls(t, "PublishServed", 1)
	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("run was not completed")
	}
}

func TestRunTrackerFailureIsSwallowed(t *testing.T) {
	e := newEngine()
	tracker := new(MockRunTracker)
	e.pull.Runs = tracker
	tracker.On("CreateRun", mock.Anything, mock.Anything).Return("", errors.New("tracker down"))

	e.pushEmails(t, "org", "ns", "a@x.com")
	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns"})

	require.True(t, out.Found)
	assert.Empty(t, out.Lead.RunID)
	tracker.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestTranslationFailureGivesUp(t *testing.T) {
	e := newEngine()
	gen := new(MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(&gemini.Generation{Text: "sorry, no"}, nil)
	translator, err := NewFilterTranslator(gen, nil, newMapCache(), nil)
	require.NoError(t, err)
	e.walker.Translator = translator

	out := e.pullOnce(t, PullNextInput{OrganizationID: "org", Namespace: "ns", Backfill: &BackfillParams{Query: "ctos in berlin"}})

	assert.False(t, out.Found)
	assert.Equal(t, OutcomeTranslationFailed, out.Outcome)
	gen.AssertNumberOfCalls(t, "Generate", DefaultTranslationMaxAttempts)
	e.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestPullRejectsInvalidPerPage(t *testing.T) {
	e := newEngine()

	_, err := e.pull.Execute(context.Background(), PullNextInput{
		OrganizationID: "org",
		Namespace:      "ns",
		Backfill:       &BackfillParams{PerPage: 500},
	})

	require.Error(t, err)
	assert.True(t, IsDomainError(err))
}

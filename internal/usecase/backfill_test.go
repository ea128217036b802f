package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
)

func fillRequest(filters map[string]any) BackfillRequest {
	return BackfillRequest{
		OrganizationID: "org",
		Namespace:      "ns",
		ScopeKey:       "ns:ns",
		Params:         BackfillParams{Filters: filters},
	}
}

func TestFillSkipsPeopleAlreadyInBuffer(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	require.NoError(t, e.leads.Insert(ctx, entity.NewBufferedLead("org", "ns", "", "p1", nil)))

	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p1", Email: "a@x.com"}, {ID: "p2", Email: "b@x.com"}},
		TotalPages: 2,
	}, nil)

	res, err := e.walker.Fill(ctx, fillRequest(nil))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, res.Exhausted)
}

func TestFillConsultsEnrichmentCache(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.markServed(t, "org", "ns:ns", "served@x.com")
	_, err := e.enrichments.InsertIfAbsent(ctx, entity.NewEnrichment("p3", "served@x.com"))
	require.NoError(t, err)
	_, err = e.enrichments.InsertIfAbsent(ctx, entity.NewEnrichment("p4", "fresh@x.com"))
	require.NoError(t, err)
	_, err = e.enrichments.InsertIfAbsent(ctx, entity.NewEnrichment("p5", ""))
	require.NoError(t, err)

	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p3"}, {ID: "p4"}, {ID: "p5"}, {ID: "p6"}},
		TotalPages: 1,
	}, nil)

	res, err := e.walker.Fill(ctx, fillRequest(nil))

	require.NoError(t, err)
	assert.Equal(t, 2, res.Filled)
	assert.Equal(t, 2, res.Skipped)
	assert.True(t, res.Exhausted)

	rows := e.leads.All()
	require.Len(t, rows, 2)
	assert.Equal(t, "p4", rows[0].ExternalPersonID)
	assert.Equal(t, "fresh@x.com", rows[0].Email)
	assert.Equal(t, "p6", rows[1].ExternalPersonID)
	assert.Empty(t, rows[1].Email)
	e.enricher.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
}

func TestFillMarksCursorExhaustedOnTransportFailure(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.search.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

	res, err := e.walker.Fill(ctx, fillRequest(nil))

	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Zero(t, res.Filled)

	cursor, err := e.cursors.Get(ctx, "org", "ns")
	require.NoError(t, err)
	assert.True(t, cursor.Exhausted)
}

func TestFillRestartsCursorWhenFiltersChange(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	oldHash, err := FiltersHash("", map[string]any{"person_titles": []string{"cfo"}})
	require.NoError(t, err)
	stale := entity.NewCursorState("org", "ns", oldHash)
	stale.Advance(7, 7, false)
	require.NoError(t, e.cursors.Save(ctx, stale))

	e.search.On("Search", mock.Anything, pageOf(1)).Return(&people.SearchResponse{
		People:     []people.Person{{ID: "p1", Email: "a@x.com"}},
		TotalPages: 5,
	}, nil).Once()

	res, err := e.walker.Fill(ctx, fillRequest(map[string]any{"person_titles": []string{"cto"}}))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Filled)
	e.search.AssertExpectations(t)
}

func TestFillResumesFromOperatorCursor(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	admin := &CursorAdminUseCase{Cursors: e.cursors}
	_, err := admin.Put(ctx, CursorInput{OrganizationID: "org", Namespace: "ns", Page: 5})
	require.NoError(t, err)

	e.search.On("Search", mock.Anything, pageOf(5)).Return(&people.SearchResponse{
		People:       []people.Person{{ID: "p1", Email: "a@x.com"}},
		TotalEntries: 60,
	}, nil).Once()

	_, err = e.walker.Fill(ctx, fillRequest(nil))
	require.NoError(t, err)

	cursor, err := e.cursors.Get(ctx, "org", "ns")
	require.NoError(t, err)
	assert.Equal(t, 6, cursor.Page)
	assert.Equal(t, 6, cursor.TotalPages, "derived from 60 entries at 10 per page")
	assert.False(t, cursor.Exhausted)
	assert.NotEmpty(t, cursor.FiltersHash)
}

func TestFiltersHashIgnoresKeyOrder(t *testing.T) {
	a, err := FiltersHash("", map[string]any{"a": 1, "b": []string{"x"}})
	require.NoError(t, err)
	b, err := FiltersHash("", map[string]any{"b": []string{"x"}, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	empty, err := FiltersHash("", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, empty)

	q1, err := FiltersHash("CTOs  in Berlin", nil)
	require.NoError(t, err)
	q2, err := FiltersHash("ctos in berlin", nil)
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
	assert.NotEqual(t, empty, q1)
}

func TestExhaustedCursorSkipsTranslation(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	gen := new(MockTextGenerator)
	translator, err := NewFilterTranslator(gen, nil, newMapCache(), nil)
	require.NoError(t, err)
	e.walker.Translator = translator

	req := fillRequest(nil)
	req.Params.Query = "ctos in berlin"
	hash, err := FiltersHash(req.Params.Query, nil)
	require.NoError(t, err)
	done := entity.NewCursorState("org", "ns", hash)
	done.MarkExhausted()
	require.NoError(t, e.cursors.Save(ctx, done))

	res, err := e.walker.Fill(ctx, req)

	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	e.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

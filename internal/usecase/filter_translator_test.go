package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadbuffer/internal/infra/integration/brand"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/gemini"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
)

func newTranslator(t *testing.T, gen TextGenerator, validator FilterValidator, cache Cache, loader *ContextLoader) *FilterTranslator {
	t.Helper()
	tr, err := NewFilterTranslator(gen, validator, cache, loader)
	require.NoError(t, err)
	return tr
}

func TestTranslateRetriesWithValidatorFeedback(t *testing.T) {
	gen := new(MockTextGenerator)
	validator := new(MockFilterValidator)
	cache := newMapCache()

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "previous answer was rejected")
	})).Return(&gemini.Generation{Text: `{"person_titles":["chief tech"]}`}, nil).Once()
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "- unknown title: chief tech")
	})).Return(&gemini.Generation{Text: `{"person_titles":["cto"]}`}, nil).Once()

	validator.On("ValidateFilters", mock.Anything, map[string]any{"person_titles": []any{"chief tech"}}).
		Return(&people.ValidationResult{Valid: false, Errors: []string{"unknown title: chief tech"}}, nil)
	validator.On("ValidateFilters", mock.Anything, map[string]any{"person_titles": []any{"cto"}}).
		Return(&people.ValidationResult{Valid: true}, nil)

	tr := newTranslator(t, gen, validator, cache, nil)

	filters, err := tr.Translate(context.Background(), TranslateInput{Query: "CTOs"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"person_titles": []any{"cto"}}, filters)
	gen.AssertExpectations(t)
	assert.Len(t, cache.values, 1)
}

func TestTranslateServesFromCache(t *testing.T) {
	gen := new(MockTextGenerator)
	cache := newMapCache()
	key, err := TranslationCacheKey("  CTOs in   Berlin ", nil)
	require.NoError(t, err)
	cache.values[key] = []byte(`{"person_titles":["cto"],"person_locations":["berlin"]}`)

	tr := newTranslator(t, gen, nil, cache, nil)
	filters, err := tr.Translate(context.Background(), TranslateInput{Query: "ctos in berlin"})

	require.NoError(t, err)
	assert.Equal(t, []any{"berlin"}, filters["person_locations"])
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTranslateRejectsSchemaViolations(t *testing.T) {
	gen := new(MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(&gemini.Generation{Text: `{"favourite_colour":"blue"}`}, nil)

	tr := newTranslator(t, gen, nil, nil, nil)
	tr.MaxAttempts = 2
	_, err := tr.Translate(context.Background(), TranslateInput{Query: "anyone"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranslationExhausted)
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestTranslateAcceptsSchemaValidFiltersWhenValidatorIsDown(t *testing.T) {
	gen := new(MockTextGenerator)
	validator := new(MockFilterValidator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(&gemini.Generation{Text: `{"q_keywords":"fintech"}`}, nil)
	validator.On("ValidateFilters", mock.Anything, mock.Anything).Return(nil, errors.New("503"))

	tr := newTranslator(t, gen, validator, nil, nil)
	filters, err := tr.Translate(context.Background(), TranslateInput{Query: "fintech"})

	require.NoError(t, err)
	assert.Equal(t, "fintech", filters["q_keywords"])
}

func TestTranslatePromptCarriesCampaignContext(t *testing.T) {
	gen := new(MockTextGenerator)
	campaigns := new(MockCampaignLookup)
	brands := new(MockBrandLookup)
	campaigns.On("GetCampaign", mock.Anything, "ns").Return(&brand.Campaign{Name: "Spring Launch", TargetAudience: "heads of data"}, nil)
	brands.On("GetBrand", mock.Anything, "b1").Return(nil, errors.New("not found"))
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Spring Launch") && strings.Contains(p, "heads of data") && !strings.Contains(p, "Brand:")
	})).Return(&gemini.Generation{Text: `{"person_titles":["head of data"]}`}, nil)

	tr := newTranslator(t, gen, nil, nil, &ContextLoader{Campaigns: campaigns, Brands: brands})
	_, err := tr.Translate(context.Background(), TranslateInput{Query: "data leaders", CampaignID: "ns", BrandID: "b1"})

	require.NoError(t, err)
	gen.AssertExpectations(t)
}

func TestTranslationCacheKeyNormalisesQuery(t *testing.T) {
	a, err := TranslationCacheKey("CTOs  in Berlin", map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	b, err := TranslationCacheKey(" ctos in berlin ", map[string]any{"y": 2, "x": 1})
	require.NoError(t, err)
	c, err := TranslationCacheKey("ctos in munich", nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, translationCachePrefix))
}

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/brand"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/delivery"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/gemini"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/runs"
)

type MockSearchProvider struct {
	mock.Mock
}

func (m *MockSearchProvider) Search(ctx context.Context, req people.SearchRequest) (*people.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*people.SearchResponse), args.Error(1)
}

type MockEnrichmentProvider struct {
	mock.Mock
}

func (m *MockEnrichmentProvider) Enrich(ctx context.Context, externalPersonID string) (*people.EnrichResponse, error) {
	args := m.Called(ctx, externalPersonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*people.EnrichResponse), args.Error(1)
}

type MockFilterValidator struct {
	mock.Mock
}

func (m *MockFilterValidator) ValidateFilters(ctx context.Context, filters map[string]any) (*people.ValidationResult, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*people.ValidationResult), args.Error(1)
}

type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (*gemini.Generation, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Generation), args.Error(1)
}

type MockCampaignLookup struct {
	mock.Mock
}

func (m *MockCampaignLookup) GetCampaign(ctx context.Context, id string) (*brand.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*brand.Campaign), args.Error(1)
}

type MockBrandLookup struct {
	mock.Mock
}

func (m *MockBrandLookup) GetBrand(ctx context.Context, id string) (*brand.Brand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*brand.Brand), args.Error(1)
}

type MockDeliveryChecker struct {
	mock.Mock
}

func (m *MockDeliveryChecker) Status(ctx context.Context, scopeID string, items []delivery.StatusItem) ([]delivery.StatusResult, error) {
	args := m.Called(ctx, scopeID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]delivery.StatusResult), args.Error(1)
}

type MockRunTracker struct {
	mock.Mock
}

func (m *MockRunTracker) CreateRun(ctx context.Context, in runs.CreateRunInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockRunTracker) CompleteRun(ctx context.Context, runID, status string) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *MockRunTracker) AddCost(ctx context.Context, runID string, item runs.CostItem) error {
	args := m.Called(ctx, runID, item)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishServed(ctx context.Context, lead *entity.ServedLead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

type MockPuller struct {
	mock.Mock
}

func (m *MockPuller) Execute(ctx context.Context, input PullNextInput) (*PullNextOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PullNextOutput), args.Error(1)
}

// mapCache is a deterministic Cache; ristretto may drop admissions.
type mapCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

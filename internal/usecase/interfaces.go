package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/brand"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/delivery"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/gemini"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/runs"
)

type SearchProvider interface {
	Search(ctx context.Context, req people.SearchRequest) (*people.SearchResponse, error)
}

type EnrichmentProvider interface {
	Enrich(ctx context.Context, externalPersonID string) (*people.EnrichResponse, error)
}

type FilterValidator interface {
	ValidateFilters(ctx context.Context, filters map[string]any) (*people.ValidationResult, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*gemini.Generation, error)
}

type CampaignLookup interface {
	GetCampaign(ctx context.Context, id string) (*brand.Campaign, error)
}

type BrandLookup interface {
	GetBrand(ctx context.Context, id string) (*brand.Brand, error)
}

type DeliveryStatusChecker interface {
	Status(ctx context.Context, scopeID string, items []delivery.StatusItem) ([]delivery.StatusResult, error)
}

type RunTracker interface {
	CreateRun(ctx context.Context, in runs.CreateRunInput) (string, error)
	CompleteRun(ctx context.Context, runID, status string) error
	AddCost(ctx context.Context, runID string, item runs.CostItem) error
}

type ServedLeadPublisher interface {
	PublishServed(ctx context.Context, lead *entity.ServedLead) error
}

// Cache is a shared keyed store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Puller interface {
	Execute(ctx context.Context, input PullNextInput) (*PullNextOutput, error)
}

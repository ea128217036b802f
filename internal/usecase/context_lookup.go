package usecase

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/brand"
)

// ContextLoader fetches campaign and brand metadata for prompt context.
// Failures only drop the piece of context that failed.
type ContextLoader struct {
	Campaigns CampaignLookup
	Brands    BrandLookup
}

type LookupContext struct {
	Campaign *brand.Campaign
	Brand    *brand.Brand
}

func (l *ContextLoader) Load(ctx context.Context, campaignID, brandID string) LookupContext {
	var out LookupContext
	if l == nil {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)

	if l.Campaigns != nil && campaignID != "" {
		g.Go(func() error {
			c, err := l.Campaigns.GetCampaign(gctx, campaignID)
			if err != nil {
				middleware.RecordIntegrationError("brand")
				zap.L().Warn("campaign lookup failed", zap.String("campaign_id", campaignID), zap.Error(err))
				return nil
			}
			out.Campaign = c
			return nil
		})
	}

	if l.Brands != nil && brandID != "" {
		g.Go(func() error {
			b, err := l.Brands.GetBrand(gctx, brandID)
			if err != nil {
				middleware.RecordIntegrationError("brand")
				zap.L().Warn("brand lookup failed", zap.String("brand_id", brandID), zap.Error(err))
				return nil
			}
			out.Brand = b
			return nil
		})
	}

	_ = g.Wait()
	return out
}

package usecase

import (
	"context"
	"strings"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ServedLeadsUseCase struct {
	Leads  entity.BufferedLeadRepository
	Served entity.ServedLeadRepository
	Scope  entity.ScopeMode
}

func (uc *ServedLeadsUseCase) List(ctx context.Context, input ListServedInput) (*ListServedOutput, error) {
	input.OrganizationID = strings.TrimSpace(input.OrganizationID)
	input.Namespace = strings.TrimSpace(input.Namespace)
	if errs := validateTenant(input.OrganizationID, input.Namespace); len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(input.Offset, 0)

	scopeKey := uc.Scope.Key(input.Namespace, input.BrandID)
	rows, err := uc.Served.List(ctx, entity.ServedLeadFilter{
		OrganizationID: input.OrganizationID,
		ScopeKey:       scopeKey,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, newDatabaseError("failed to list served leads", err)
	}
	total, err := uc.Served.Count(ctx, input.OrganizationID, scopeKey)
	if err != nil {
		return nil, newDatabaseError("failed to count served leads", err)
	}

	out := &ListServedOutput{Items: make([]LeadView, 0, len(rows)), Total: total, Limit: limit, Offset: offset}
	for _, row := range rows {
		out.Items = append(out.Items, *toLeadView(row))
	}
	return out, nil
}

func (uc *ServedLeadsUseCase) Stats(ctx context.Context, orgID, namespace, brandID string) (*LeadStatsOutput, error) {
	orgID, namespace = strings.TrimSpace(orgID), strings.TrimSpace(namespace)
	if errs := validateTenant(orgID, namespace); len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	counts, err := uc.Leads.CountByStatus(ctx, orgID, namespace)
	if err != nil {
		return nil, newDatabaseError("failed to count buffered leads", err)
	}
	scopeKey := uc.Scope.Key(namespace, brandID)
	servedInScope, err := uc.Served.Count(ctx, orgID, scopeKey)
	if err != nil {
		return nil, newDatabaseError("failed to count served leads", err)
	}

	return &LeadStatsOutput{
		Namespace:     namespace,
		ScopeKey:      scopeKey,
		Buffered:      counts[entity.LeadStatusBuffered],
		Served:        counts[entity.LeadStatusServed],
		Skipped:       counts[entity.LeadStatusSkipped],
		ServedInScope: servedInScope,
	}, nil
}

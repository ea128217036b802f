package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
)

type PushLeadsUseCase struct {
	Leads  entity.BufferedLeadRepository
	Served entity.ServedLeadRepository
	Scope  entity.ScopeMode
}

func NewPushLeadsUseCase(leads entity.BufferedLeadRepository, served entity.ServedLeadRepository, scope entity.ScopeMode) *PushLeadsUseCase {
	return &PushLeadsUseCase{Leads: leads, Served: served, Scope: scope}
}

// Execute buffers every lead whose email was never served in the scope.
// The batch is not atomic: on a store failure the counts so far are
// returned together with the error.
func (uc *PushLeadsUseCase) Execute(ctx context.Context, input PushLeadsInput) (*PushLeadsOutput, error) {
	input.trim()
	if errs := ValidatePushLeadsInput(input); len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	scopeKey := uc.Scope.Key(input.Namespace, input.BrandID)
	logger := zap.L().With(
		zap.String("organization_id", input.OrganizationID),
		zap.String("namespace", input.Namespace),
		zap.String("scope_key", scopeKey),
	)

	emails := make([]string, 0, len(input.Leads))
	for _, l := range input.Leads {
		if e := entity.NormalizeEmail(l.Email); e != "" {
			emails = append(emails, e)
		}
	}

	served := map[string]bool{}
	if len(emails) > 0 {
		var err error
		served, err = uc.Served.ServedEmails(ctx, input.OrganizationID, scopeKey, emails)
		if err != nil {
			return nil, newDatabaseError("failed to check served emails", err)
		}
	}

	out := &PushLeadsOutput{}
	defer func() {
		middleware.RecordPushedLeads("buffered", out.Buffered)
		middleware.RecordPushedLeads("already_served", out.SkippedAlreadyServed)
		middleware.RecordPushedLeads("duplicate", out.SkippedDuplicate)
	}()

	seen := make(map[string]bool, len(input.Leads))
	for _, l := range input.Leads {
		lead := entity.NewBufferedLead(input.OrganizationID, input.Namespace, l.Email, l.ExternalPersonID, l.Payload)
		lead.BrandID = input.BrandID
		lead.RunID = input.RunID

		if lead.HasEmail() {
			if served[lead.Email] {
				out.SkippedAlreadyServed++
				continue
			}
			if seen[lead.Email] {
				out.SkippedDuplicate++
				continue
			}
			seen[lead.Email] = true
		}

		if err := uc.Leads.Insert(ctx, lead); err != nil {
			if errors.Is(err, entity.ErrLeadAlreadyBuffered) {
				out.SkippedDuplicate++
				continue
			}
			logger.Error("push interrupted", zap.Int("buffered", out.Buffered), zap.Error(err))
			return out, newDatabaseError(fmt.Sprintf("failed to buffer lead %d of %d", out.Buffered+out.SkippedAlreadyServed+out.SkippedDuplicate+1, len(input.Leads)), err)
		}
		out.Buffered++
	}

	logger.Info("leads pushed",
		zap.Int("buffered", out.Buffered),
		zap.Int("skipped_already_served", out.SkippedAlreadyServed),
		zap.Int("skipped_duplicate", out.SkippedDuplicate),
	)
	return out, nil
}

package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/delivery"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/runs"
)

const (
	DefaultMaxIterations    = 100
	DefaultMaxBackfillPages = 50
)

type serveResult int

const (
	rowServed serveResult = iota
	rowSkipped
	rowUnavailable
)

// PullNextUseCase hands out the next never-served lead of a namespace.
// The served-lead insert is the only synchronisation point between
// concurrent pulls.
type PullNextUseCase struct {
	Leads       entity.BufferedLeadRepository
	Served      entity.ServedLeadRepository
	Enrichments entity.EnrichmentRepository
	Enricher    EnrichmentProvider
	Walker      *BackfillWalker
	Delivery    DeliveryStatusChecker
	Runs        RunTracker
	Publisher   ServedLeadPublisher
	Scope       entity.ScopeMode

	MaxIterations    int
	MaxBackfillPages int
}

func (uc *PullNextUseCase) Execute(ctx context.Context, input PullNextInput) (*PullNextOutput, error) {
	input.trim()
	if errs := ValidatePullNextInput(input); len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	runID := uc.startRun(ctx, input)
	out, err := uc.pull(ctx, input, runID)

	if err != nil {
		uc.finishRun(ctx, runID, "failed")
		return nil, err
	}
	middleware.RecordPullOutcome(string(out.Outcome))
	uc.finishRun(ctx, runID, "completed")
	return out, nil
}

func (uc *PullNextUseCase) pull(ctx context.Context, input PullNextInput, runID string) (*PullNextOutput, error) {
	scopeKey := uc.Scope.Key(input.Namespace, input.BrandID)
	logger := zap.L().With(
		zap.String("organization_id", input.OrganizationID),
		zap.String("namespace", input.Namespace),
		zap.String("scope_key", scopeKey),
	)

	maxIterations := uc.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxPages := uc.MaxBackfillPages
	if maxPages <= 0 {
		maxPages = DefaultMaxBackfillPages
	}

	pages := 0
	for i := 0; i < maxIterations; i++ {
		lead, err := uc.Leads.NextBuffered(ctx, input.OrganizationID, input.Namespace)
		if err != nil {
			return nil, newDatabaseError("failed to read buffer", err)
		}

		if lead == nil {
			if input.Backfill == nil || uc.Walker == nil {
				return notFound(OutcomeEmpty), nil
			}
			if pages >= maxPages {
				logger.Info("backfill page cap reached", zap.Int("pages", pages))
				return notFound(OutcomePageCap), nil
			}

			res, err := uc.Walker.Fill(ctx, BackfillRequest{
				OrganizationID: input.OrganizationID,
				Namespace:      input.Namespace,
				BrandID:        input.BrandID,
				ScopeKey:       scopeKey,
				RunID:          runID,
				Params:         *input.Backfill,
			})
			if err != nil {
				if errors.Is(err, ErrTranslationExhausted) {
					logger.Info("giving up, filters could not be translated", zap.Error(err))
					return notFound(OutcomeTranslationFailed), nil
				}
				return nil, err
			}
			pages += res.PagesFetched
			if res.Filled == 0 && res.Exhausted {
				return notFound(OutcomeExhausted), nil
			}
			continue
		}

		served, result, err := uc.tryServe(ctx, lead, scopeKey, input, runID)
		if err != nil {
			return nil, err
		}
		switch result {
		case rowServed:
			return &PullNextOutput{Found: true, Outcome: OutcomeServed, Lead: toLeadView(served)}, nil
		case rowUnavailable:
			return notFound(OutcomeUpstreamUnavailable), nil
		}
	}

	logger.Info("pull iteration cap reached", zap.Int("iterations", maxIterations))
	return notFound(OutcomeIterationCap), nil
}

// tryServe walks one buffered row to a terminal state, or leaves it
// buffered when the enrichment provider is unreachable.
func (uc *PullNextUseCase) tryServe(ctx context.Context, lead *entity.BufferedLead, scopeKey string, input PullNextInput, runID string) (*entity.ServedLead, serveResult, error) {
	if !lead.HasEmail() {
		result, err := uc.enrich(ctx, lead, runID)
		if err != nil || result != rowServed {
			return nil, result, err
		}
	}

	already, err := uc.Served.IsServed(ctx, lead.OrganizationID, scopeKey, lead.Email)
	if err != nil {
		return nil, 0, newDatabaseError("failed to check served lead", err)
	}
	if already {
		return nil, rowSkipped, uc.skip(ctx, lead)
	}

	if uc.alreadyContacted(ctx, lead, input) {
		return nil, rowSkipped, uc.skip(ctx, lead)
	}

	served := entity.NewServedLead(lead, scopeKey)
	if served.BrandID == "" {
		served.BrandID = input.BrandID
	}
	served.ParentRunID = input.ParentRunID
	served.RunID = runID
	if input.ActorID != "" {
		served.ActorID = input.ActorID
	}

	inserted, err := uc.Served.InsertIfAbsent(ctx, served)
	if err != nil {
		return nil, 0, newDatabaseError("failed to record served lead", err)
	}
	if !inserted {
		zap.L().Info("lead served concurrently, skipping",
			zap.String("lead_id", lead.ID),
			zap.String("scope_key", scopeKey),
		)
		return nil, rowSkipped, uc.skip(ctx, lead)
	}

	// The registry row is authoritative; a buffer row left behind is
	// skipped by the next pull.
	if err := uc.Leads.MarkServed(ctx, lead.ID); err != nil {
		zap.L().Warn("buffer row not marked served", zap.String("lead_id", lead.ID), zap.Error(err))
	}

	if uc.Publisher != nil {
		if err := uc.Publisher.PublishServed(ctx, served); err != nil {
			middleware.RecordIntegrationError("rabbitmq")
			zap.L().Warn("served event not published", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}
	return served, rowServed, nil
}

// enrich fills lead.Email from the cache or the enrichment provider.
// It returns rowServed when the row may proceed.
func (uc *PullNextUseCase) enrich(ctx context.Context, lead *entity.BufferedLead, runID string) (serveResult, error) {
	if lead.ExternalPersonID == "" {
		return rowSkipped, uc.skip(ctx, lead)
	}

	cached, err := uc.Enrichments.FindByExternalPersonID(ctx, lead.ExternalPersonID)
	if err != nil {
		return 0, newDatabaseError("failed to read enrichment cache", err)
	}

	if cached == nil {
		if uc.Enricher == nil {
			return rowUnavailable, nil
		}
		resp, err := uc.Enricher.Enrich(ctx, lead.ExternalPersonID)
		if err != nil {
			middleware.RecordIntegrationError("people")
			middleware.RecordEnrichment("error")
			zap.L().Warn("enrichment failed, leaving lead buffered",
				zap.String("lead_id", lead.ID),
				zap.String("external_person_id", lead.ExternalPersonID),
				zap.Error(err),
			)
			return rowUnavailable, nil
		}
		uc.recordEnrichmentCost(ctx, runID)

		cached = enrichmentFromResponse(lead.ExternalPersonID, resp)
		if _, err := uc.Enrichments.InsertIfAbsent(ctx, cached); err != nil {
			if errors.Is(err, entity.ErrEnrichmentEmailTaken) {
				middleware.RecordEnrichment("email_conflict")
			}
			zap.L().Warn("enrichment not cached",
				zap.String("external_person_id", lead.ExternalPersonID),
				zap.String("email", cached.EmailValue()),
				zap.Error(err),
			)
		}
		if cached.IsTombstone() {
			middleware.RecordEnrichment("no_email")
		} else {
			middleware.RecordEnrichment("email")
		}
	} else if cached.IsTombstone() {
		middleware.RecordEnrichment("tombstone")
	} else {
		middleware.RecordEnrichment("cache_hit")
	}

	if cached.IsTombstone() {
		return rowSkipped, uc.skip(ctx, lead)
	}

	lead.Email = cached.EmailValue()
	lead.Payload = mergePayload(lead.Payload, enrichmentFields(cached))
	if err := uc.Leads.UpdateEnrichment(ctx, lead.ID, lead.Email, lead.Payload); err != nil {
		return 0, newDatabaseError("failed to store enrichment on lead", err)
	}
	return rowServed, nil
}

// alreadyContacted consults the delivery gateway. An unreachable gateway
// counts as not contacted.
func (uc *PullNextUseCase) alreadyContacted(ctx context.Context, lead *entity.BufferedLead, input PullNextInput) bool {
	if uc.Delivery == nil {
		return false
	}
	results, err := uc.Delivery.Status(ctx, input.Namespace, []delivery.StatusItem{{Email: lead.Email, LeadID: lead.ID}})
	if err != nil {
		middleware.RecordIntegrationError("delivery")
		zap.L().Warn("delivery status unavailable", zap.String("lead_id", lead.ID), zap.Error(err))
		return false
	}
	for _, r := range results {
		if entity.NormalizeEmail(r.Email) == lead.Email && r.AlreadyReached() {
			return true
		}
	}
	return false
}

func (uc *PullNextUseCase) skip(ctx context.Context, lead *entity.BufferedLead) error {
	if err := uc.Leads.MarkSkipped(ctx, lead.ID); err != nil {
		return newDatabaseError("failed to skip lead", err)
	}
	return nil
}

func (uc *PullNextUseCase) startRun(ctx context.Context, input PullNextInput) string {
	if uc.Runs == nil {
		return ""
	}
	runID, err := uc.Runs.CreateRun(ctx, runs.CreateRunInput{
		ParentRunID:    input.ParentRunID,
		OrganizationID: input.OrganizationID,
		Kind:           "lead_pull",
		Metadata:       map[string]string{"namespace": input.Namespace},
	})
	if err != nil {
		middleware.RecordIntegrationError("runs")
		zap.L().Warn("child run not created", zap.String("parent_run_id", input.ParentRunID), zap.Error(err))
		return ""
	}
	return runID
}

func (uc *PullNextUseCase) finishRun(ctx context.Context, runID, status string) {
	if uc.Runs == nil || runID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := uc.Runs.CompleteRun(ctx, runID, status); err != nil {
			zap.L().Warn("run not completed", zap.String("run_id", runID), zap.Error(err))
		}
	}()
}

func (uc *PullNextUseCase) recordEnrichmentCost(ctx context.Context, runID string) {
	if uc.Runs == nil || runID == "" {
		return
	}
	go func() {
		if err := uc.Runs.AddCost(context.WithoutCancel(ctx), runID, runs.CostItem{Kind: "enrichment", Quantity: 1}); err != nil {
			zap.L().Warn("run cost not recorded", zap.String("run_id", runID), zap.Error(err))
		}
	}()
}

func notFound(outcome PullOutcome) *PullNextOutput {
	return &PullNextOutput{Found: false, Outcome: outcome}
}

func toLeadView(s *entity.ServedLead) *LeadView {
	return &LeadView{
		ID:               s.BufferedLeadID,
		Email:            s.Email,
		ExternalPersonID: s.ExternalPersonID,
		Namespace:        s.Namespace,
		BrandID:          s.BrandID,
		Payload:          s.Payload,
		RunID:            s.RunID,
		ServedAt:         s.ServedAt,
	}
}

package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
)

const DefaultSearchPerPage = 25

type BackfillRequest struct {
	OrganizationID string
	Namespace      string
	BrandID        string
	ScopeKey       string
	RunID          string
	Params         BackfillParams
}

type BackfillResult struct {
	Filled       int
	Skipped      int
	Exhausted    bool
	PagesFetched int
}

// BackfillWalker refills the buffer with exactly one search page per call.
// The durable cursor decides which page; once exhausted it stays exhausted
// until an operator resets it or the filters change.
type BackfillWalker struct {
	Search      SearchProvider
	Translator  *FilterTranslator
	Leads       entity.BufferedLeadRepository
	Served      entity.ServedLeadRepository
	Enrichments entity.EnrichmentRepository
	Cursors     entity.CursorRepository
	PerPage     int
}

func (w *BackfillWalker) Fill(ctx context.Context, req BackfillRequest) (*BackfillResult, error) {
	logger := zap.L().With(
		zap.String("organization_id", req.OrganizationID),
		zap.String("namespace", req.Namespace),
	)

	hash, err := FiltersHash(req.Params.Query, req.Params.Filters)
	if err != nil {
		return nil, err
	}

	cursor, err := w.Cursors.Get(ctx, req.OrganizationID, req.Namespace)
	if err != nil {
		return nil, newDatabaseError("failed to load cursor", err)
	}
	switch {
	case cursor == nil:
		cursor = entity.NewCursorState(req.OrganizationID, req.Namespace, hash)
	case cursor.FiltersHash == "":
		// set by an operator; adopt the current filters at the stored page
		cursor.FiltersHash = hash
	case cursor.FiltersHash != hash:
		logger.Info("search filters changed, restarting cursor", zap.Int("previous_page", cursor.Page))
		cursor = entity.NewCursorState(req.OrganizationID, req.Namespace, hash)
	}
	if cursor.Exhausted {
		return &BackfillResult{Exhausted: true}, nil
	}

	filters, err := w.resolveFilters(ctx, req)
	if err != nil {
		return nil, err
	}

	perPage := req.Params.PerPage
	if perPage <= 0 {
		perPage = w.PerPage
	}
	if perPage <= 0 {
		perPage = DefaultSearchPerPage
	}

	page := cursor.Page
	resp, err := w.Search.Search(ctx, people.SearchRequest{Filters: filters, Page: page, PerPage: perPage})
	if err != nil {
		middleware.RecordIntegrationError("people")
		middleware.RecordBackfillPage("error")
		logger.Warn("search failed, marking cursor exhausted", zap.Int("page", page), zap.Error(err))
		cursor.MarkExhausted()
		w.saveCursor(ctx, cursor)
		return &BackfillResult{Exhausted: true, PagesFetched: 1}, nil
	}

	result := &BackfillResult{PagesFetched: 1}
	for _, person := range resp.People {
		admitted, err := w.admit(ctx, req, person)
		if err != nil {
			return nil, err
		}
		if admitted {
			result.Filled++
		} else {
			result.Skipped++
		}
	}

	cursor.Advance(page, totalPages(resp, page, perPage), resp.Done)
	w.saveCursor(ctx, cursor)
	result.Exhausted = cursor.Exhausted

	switch {
	case result.Filled > 0:
		middleware.RecordBackfillPage("filled")
	case len(resp.People) == 0:
		middleware.RecordBackfillPage("empty")
	default:
		middleware.RecordBackfillPage("duplicates")
	}
	logger.Info("backfill page walked",
		zap.Int("page", page),
		zap.Int("filled", result.Filled),
		zap.Int("skipped", result.Skipped),
		zap.Bool("exhausted", result.Exhausted),
	)
	return result, nil
}

func (w *BackfillWalker) resolveFilters(ctx context.Context, req BackfillRequest) (map[string]any, error) {
	filters := req.Params.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	if req.Params.Query == "" || w.Translator == nil {
		return filters, nil
	}
	return w.Translator.Translate(ctx, TranslateInput{
		Query:      req.Params.Query,
		Filters:    filters,
		CampaignID: req.Namespace,
		BrandID:    req.BrandID,
		RunID:      req.RunID,
	})
}

// admit inserts the person as a buffered lead unless it is already buffered,
// already served, or known to have no email.
func (w *BackfillWalker) admit(ctx context.Context, req BackfillRequest, person people.Person) (bool, error) {
	if person.ID != "" {
		exists, err := w.Leads.ExistsByExternalPersonID(ctx, req.OrganizationID, req.Namespace, person.ID)
		if err != nil {
			return false, newDatabaseError("failed to check buffered lead", err)
		}
		if exists {
			return false, nil
		}
	}

	email := entity.NormalizeEmail(person.Email)
	payload := json.RawMessage(person.Raw)

	if email == "" {
		if person.ID == "" {
			return false, nil
		}
		cached, err := w.Enrichments.FindByExternalPersonID(ctx, person.ID)
		if err != nil {
			return false, newDatabaseError("failed to read enrichment cache", err)
		}
		if cached != nil {
			if cached.IsTombstone() {
				return false, nil
			}
			email = cached.EmailValue()
			payload = mergePayload(payload, enrichmentFields(cached))
		}
	}

	if email != "" {
		served, err := w.Served.IsServed(ctx, req.OrganizationID, req.ScopeKey, email)
		if err != nil {
			return false, newDatabaseError("failed to check served lead", err)
		}
		if served {
			return false, nil
		}
	}

	lead := entity.NewBufferedLead(req.OrganizationID, req.Namespace, email, person.ID, payload)
	lead.BrandID = req.BrandID
	lead.RunID = req.RunID
	if err := w.Leads.Insert(ctx, lead); err != nil {
		if errors.Is(err, entity.ErrLeadAlreadyBuffered) {
			return false, nil
		}
		return false, newDatabaseError("failed to buffer lead", err)
	}
	return true, nil
}

func (w *BackfillWalker) saveCursor(ctx context.Context, cursor *entity.CursorState) {
	if err := w.Cursors.Save(ctx, cursor); err != nil {
		zap.L().Warn("cursor not saved",
			zap.String("organization_id", cursor.OrganizationID),
			zap.String("namespace", cursor.Namespace),
			zap.Error(err),
		)
	}
}

// totalPages derives the page count from the entry count when the provider
// omits it. A non-empty page without any pagination data keeps the walk
// open for one more page.
func totalPages(resp *people.SearchResponse, page, perPage int) int {
	switch {
	case resp.TotalPages > 0:
		return resp.TotalPages
	case resp.TotalEntries > 0 && perPage > 0:
		return (resp.TotalEntries + perPage - 1) / perPage
	case len(resp.People) > 0 && !resp.Done:
		return page + 1
	default:
		return 0
	}
}

// FiltersHash fingerprints the search request a cursor was walked with:
// the caller's filters and free-text query, before translation.
func FiltersHash(query string, filters map[string]any) (string, error) {
	if filters == nil {
		filters = map[string]any{}
	}
	raw, err := json.Marshal(struct {
		Query   string         `json:"query,omitempty"`
		Filters map[string]any `json:"filters"`
	}{
		Query:   strings.Join(strings.Fields(strings.ToLower(query)), " "),
		Filters: filters,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8]), nil
}

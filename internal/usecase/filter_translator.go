package usecase

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/runs"
)

//go:embed filter_schema.json
var filterSchemaJSON string

const (
	DefaultTranslationTTL         = 90 * 24 * time.Hour
	DefaultTranslationMaxAttempts = 3
	translationCachePrefix        = "filters:v1:"
)

type TranslateInput struct {
	Query      string
	Filters    map[string]any
	CampaignID string
	BrandID    string
	RunID      string
}

// FilterTranslator turns free text plus loose filters into the search
// provider's structured filter language.
type FilterTranslator struct {
	Generator   TextGenerator
	Validator   FilterValidator
	Cache       Cache
	Context     *ContextLoader
	Runs        RunTracker
	TTL         time.Duration
	MaxAttempts int

	schema *gojsonschema.Schema
}

func NewFilterTranslator(gen TextGenerator, validator FilterValidator, cache Cache, loader *ContextLoader) (*FilterTranslator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(filterSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile filter schema: %w", err)
	}
	return &FilterTranslator{
		Generator:   gen,
		Validator:   validator,
		Cache:       cache,
		Context:     loader,
		TTL:         DefaultTranslationTTL,
		MaxAttempts: DefaultTranslationMaxAttempts,
		schema:      schema,
	}, nil
}

func (t *FilterTranslator) Translate(ctx context.Context, in TranslateInput) (map[string]any, error) {
	key, err := TranslationCacheKey(in.Query, in.Filters)
	if err != nil {
		return nil, err
	}
	logger := zap.L().With(zap.String("cache_key", key))

	if t.Cache != nil {
		raw, ok, err := t.Cache.Get(ctx, key)
		if err != nil {
			logger.Warn("translation cache read failed", zap.Error(err))
		} else if ok {
			var cached map[string]any
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			logger.Warn("discarding unreadable translation cache entry")
		}
	}

	lookup := t.Context.Load(ctx, in.CampaignID, in.BrandID)

	attempts := t.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultTranslationMaxAttempts
	}

	var feedback []string
	for attempt := 1; attempt <= attempts; attempt++ {
		gen, err := t.Generator.Generate(ctx, buildTranslationPrompt(in, lookup, feedback))
		if err != nil {
			middleware.RecordIntegrationError("gemini")
			logger.Warn("filter generation failed", zap.Int("attempt", attempt), zap.Error(err))
			feedback = []string{"previous request failed: " + err.Error()}
			continue
		}
		t.recordCost(ctx, in.RunID, gen.Model, gen.PromptTokens, gen.OutputTokens)

		filters, problems := t.check(ctx, gen.Text)
		if len(problems) > 0 {
			logger.Info("translated filters rejected", zap.Int("attempt", attempt), zap.Strings("errors", problems))
			feedback = problems
			continue
		}

		if t.Cache != nil {
			if raw, err := json.Marshal(filters); err == nil {
				ttl := t.TTL
				if ttl <= 0 {
					ttl = DefaultTranslationTTL
				}
				if err := t.Cache.Put(ctx, key, raw, ttl); err != nil {
					logger.Warn("translation cache write failed", zap.Error(err))
				}
			}
		}
		return filters, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %s", ErrTranslationExhausted, attempts, strings.Join(feedback, "; "))
}

// check returns the parsed filters, or the problems to feed back into the
// next prompt.
func (t *FilterTranslator) check(ctx context.Context, text string) (map[string]any, []string) {
	var filters map[string]any
	if err := json.Unmarshal([]byte(text), &filters); err != nil || filters == nil {
		return nil, []string{"response must be a single JSON object"}
	}

	res, err := t.schema.Validate(gojsonschema.NewGoLoader(filters))
	if err != nil {
		return nil, []string{"schema check failed: " + err.Error()}
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, item := range res.Errors() {
			problems = append(problems, item.Field()+": "+item.Description())
		}
		return nil, problems
	}

	if t.Validator == nil {
		return filters, nil
	}
	verdict, err := t.Validator.ValidateFilters(ctx, filters)
	if err != nil {
		middleware.RecordIntegrationError("people")
		zap.L().Warn("provider filter validation unavailable, accepting schema-valid filters", zap.Error(err))
		return filters, nil
	}
	if !verdict.Valid {
		if len(verdict.Errors) == 0 {
			return nil, []string{"filters rejected by provider"}
		}
		return nil, verdict.Errors
	}
	return filters, nil
}

func (t *FilterTranslator) recordCost(ctx context.Context, runID, model string, in, out int) {
	if t.Runs == nil || runID == "" {
		return
	}
	item := runs.CostItem{Kind: "translation", Quantity: 1, InputTokens: in, OutputTokens: out, Model: model}
	go func() {
		if err := t.Runs.AddCost(context.WithoutCancel(ctx), runID, item); err != nil {
			zap.L().Warn("run cost not recorded", zap.String("run_id", runID), zap.Error(err))
		}
	}()
}

// TranslationCacheKey hashes the normalised query with the filters encoded
// as sorted-key JSON.
func TranslationCacheKey(query string, filters map[string]any) (string, error) {
	if filters == nil {
		filters = map[string]any{}
	}
	raw, err := json.Marshal(struct {
		Query   string         `json:"query"`
		Filters map[string]any `json:"filters"`
	}{
		Query:   strings.Join(strings.Fields(strings.ToLower(query)), " "),
		Filters: filters,
	})
	if err != nil {
		return "", fmt.Errorf("encode translation input: %w", err)
	}
	sum := sha256.Sum256(raw)
	return translationCachePrefix + hex.EncodeToString(sum[:]), nil
}

func buildTranslationPrompt(in TranslateInput, lookup LookupContext, feedback []string) string {
	var b strings.Builder
	b.WriteString("You translate a lead search request into a people-search filter object.\n")
	b.WriteString("Return ONLY one JSON object matching this JSON schema:\n")
	b.WriteString(filterSchemaJSON)
	b.WriteString("\n")

	if lookup.Brand != nil {
		fmt.Fprintf(&b, "\nBrand: %s (%s). Industry: %s. %s\n", lookup.Brand.Name, lookup.Brand.Domain, lookup.Brand.Industry, lookup.Brand.Description)
	}
	if lookup.Campaign != nil {
		fmt.Fprintf(&b, "\nCampaign: %s. %s\nTarget audience: %s\n", lookup.Campaign.Name, lookup.Campaign.Description, lookup.Campaign.TargetAudience)
	}

	if q := strings.TrimSpace(in.Query); q != "" {
		fmt.Fprintf(&b, "\nRequest: %s\n", q)
	}
	if len(in.Filters) > 0 {
		if raw, err := json.Marshal(in.Filters); err == nil {
			fmt.Fprintf(&b, "\nKeep these filters unless they break the schema: %s\n", raw)
		}
	}

	if len(feedback) > 0 {
		b.WriteString("\nYour previous answer was rejected. Fix these problems:\n")
		for _, f := range feedback {
			b.WriteString("- " + f + "\n")
		}
	}
	return b.String()
}

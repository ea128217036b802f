package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/config"
	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/cache"
	"github.com/xavierca1/leadbuffer/internal/infra/database"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/brand"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/delivery"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/gemini"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/runs"
	"github.com/xavierca1/leadbuffer/internal/infra/memory"
	"github.com/xavierca1/leadbuffer/internal/infra/queue"
	"github.com/xavierca1/leadbuffer/internal/usecase"
)

type stores struct {
	db           *sql.DB
	leads        entity.BufferedLeadRepository
	served       entity.ServedLeadRepository
	enrichments  entity.EnrichmentRepository
	cursors      entity.CursorRepository
	idempotency  entity.IdempotencyRepository
	translations *database.TranslationCacheRepository
}

// openStores uses Postgres when DATABASE_URL is set and in-process maps
// otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.MemoryMode() {
		zap.L().Warn("DATABASE_URL not set, running with in-memory stores")
		return &stores{
			leads:       memory.NewBufferedLeadStore(),
			served:      memory.NewServedLeadStore(),
			enrichments: memory.NewEnrichmentStore(),
			cursors:     memory.NewCursorStore(),
			idempotency: memory.NewIdempotencyStore(),
		}, nil
	}

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &stores{
		db:           db,
		leads:        database.NewBufferedLeadRepository(db),
		served:       database.NewServedLeadRepository(db),
		enrichments:  database.NewEnrichmentRepository(db),
		cursors:      database.NewCursorRepository(db),
		idempotency:  database.NewIdempotencyRepository(db),
		translations: database.NewTranslationCacheRepository(db),
	}, nil
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

type app struct {
	stores   *stores
	broker   *queue.RabbitMQ
	local    *cache.Memory
	push     *usecase.PushLeadsUseCase
	pull     *usecase.PullNextUseCase
	idem     *usecase.IdempotentPullUseCase
	served   *usecase.ServedLeadsUseCase
	cursors  *usecase.CursorAdminUseCase
	producer *queue.Producer
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{stores: st}

	if cfg.AMQPURL != "" {
		broker, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.broker = broker
		a.producer = queue.NewProducer(broker.Ch)
	} else {
		zap.L().Info("AMQP_URL not set, served-lead events and queued pushes disabled")
	}

	scope := cfg.Scope()
	a.push = usecase.NewPushLeadsUseCase(st.leads, st.served, scope)
	a.pull = &usecase.PullNextUseCase{
		Leads:            st.leads,
		Served:           st.served,
		Enrichments:      st.enrichments,
		Scope:            scope,
		MaxIterations:    cfg.PullMaxIterations,
		MaxBackfillPages: cfg.PullMaxBackfillPages,
	}
	if a.producer != nil {
		a.pull.Publisher = a.producer
	}
	if cfg.DeliveryAPIURL != "" {
		a.pull.Delivery = delivery.NewClient(cfg.DeliveryAPIKey, cfg.DeliveryAPIURL)
	}
	var tracker usecase.RunTracker
	if cfg.RunsAPIURL != "" {
		tracker = runs.NewClient(cfg.RunsAPIKey, cfg.RunsAPIURL)
		a.pull.Runs = tracker
	}

	if cfg.PeopleAPIURL != "" {
		provider := people.NewClient(cfg.PeopleAPIKey, cfg.PeopleAPIURL, cfg.PeopleRPS)
		a.pull.Enricher = provider
		a.pull.Walker = &usecase.BackfillWalker{
			Search:      provider,
			Leads:       st.leads,
			Served:      st.served,
			Enrichments: st.enrichments,
			Cursors:     st.cursors,
			PerPage:     cfg.SearchPerPage,
		}

		if cfg.TranslationEnabled() {
			translator, err := a.buildTranslator(ctx, cfg, provider, tracker)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.pull.Walker.Translator = translator
		}
	} else {
		zap.L().Warn("PEOPLE_API_URL not set, backfill and enrichment disabled")
	}

	a.idem = usecase.NewIdempotentPullUseCase(a.pull, st.idempotency, cfg.IdempotencyTTL, cfg.IdempotencyPruneRate)
	a.served = &usecase.ServedLeadsUseCase{Leads: st.leads, Served: st.served, Scope: scope}
	a.cursors = &usecase.CursorAdminUseCase{Cursors: st.cursors}
	return a, nil
}

func (a *app) buildTranslator(ctx context.Context, cfg *config.Config, provider *people.Client, tracker usecase.RunTracker) (*usecase.FilterTranslator, error) {
	gen, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		return nil, err
	}

	local, err := cache.NewMemory(cfg.LocalCacheBytes)
	if err != nil {
		return nil, err
	}
	a.local = local
	tiered := &cache.Tiered{Local: local}
	if a.stores.translations != nil {
		tiered.Shared = a.stores.translations
	}

	var loader *usecase.ContextLoader
	if cfg.BrandAPIURL != "" {
		bc := brand.NewClient(cfg.BrandAPIKey, cfg.BrandAPIURL)
		loader = &usecase.ContextLoader{Campaigns: bc, Brands: bc}
	}

	translator, err := usecase.NewFilterTranslator(gen, provider, tiered, loader)
	if err != nil {
		return nil, err
	}
	translator.Runs = tracker
	translator.TTL = cfg.TranslationCacheTTL
	translator.MaxAttempts = cfg.TranslationMaxAttempts
	return translator, nil
}

func (a *app) Close() {
	if a.local != nil {
		a.local.Close()
	}
	if a.broker != nil {
		a.broker.Close()
	}
	a.stores.Close()
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/infra/http/handlers"
	"github.com/xavierca1/leadbuffer/internal/infra/queue"
	"github.com/xavierca1/leadbuffer/internal/infra/worker"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the push consumer and the cache janitor",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful HTTP shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go sweepVisitors(ctx, limiter)

	if a.broker != nil {
		consumer := queue.NewWorker(a.broker.Ch, a.push)
		go func() {
			if err := consumer.Start(ctx, queue.PushQueueName); err != nil {
				zap.L().Error("push consumer exited", zap.Error(err))
			}
		}()
	}

	if a.stores.translations != nil {
		go worker.NewCacheExpirationWorker(a.stores.translations, worker.DefaultCacheSweepInterval).Start(ctx)
	}

	health := handlers.NewHealthHandler(nil, nil, cfg.Version)
	if a.stores.db != nil {
		health.DB = a.stores.db
	}
	if a.broker != nil {
		health.Broker = a.broker
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Leads:          handlers.NewLeadHandler(a.push, a.idem, a.served, limiter),
			Cursors:        handlers.NewCursorHandler(a.cursors),
			Health:         health,
			AllowedOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.Bool("memory_mode", cfg.MemoryMode()),
			zap.String("scope_mode", cfg.ScopeMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepVisitors(ctx context.Context, limiter *handlers.RateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Cleanup(now)
		}
	}
}

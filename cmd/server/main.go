package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/puku-sh/gateway/cmd"
	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/internal/platform/logger"
	"github.com/puku-sh/gateway/internal/platform/otel"
	"github.com/puku-sh/gateway/internal/server"
	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/internal/usage"

	// Adapters register themselves with the provider factory.
	_ "github.com/puku-sh/gateway/internal/llm/anthropic"
	_ "github.com/puku-sh/gateway/internal/llm/google"
	_ "github.com/puku-sh/gateway/internal/llm/ollama"
	_ "github.com/puku-sh/gateway/internal/llm/openai"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Initialize(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log := logger.Get()
	defer logger.Sync()

	go cmd.CheckForUpdates()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdownTracer, err := otel.InitTracer("puku-gateway", log, os.Stdout)
		if err != nil {
			log.Warn("tracing disabled, exporter failed to start", zap.Error(err))
		} else {
			defer func() {
				_ = shutdownTracer(context.Background())
			}()
		}
	}

	// Usage ledger. The gateway runs without one if the database cannot
	// be opened; quota reporting then serves empty snapshots.
	var recorder usage.Recorder = usage.NopRecorder{}
	var quotas *usage.Service
	store, err := usage.NewSQLiteStore(cfg.Usage.DSN)
	if err != nil {
		log.Warn("usage ledger unavailable", zap.Error(err))
		quotas = usage.NewService(nil, usage.Entitlements{})
	} else {
		defer store.Close()

		ingestor := usage.NewIngestor(log, store)
		ingestor.Start(ctx)
		defer ingestor.Stop()

		recorder = ingestor
		quotas = usage.NewService(store, usage.Entitlements{
			Chat:        cfg.Usage.ChatQuota,
			Completions: cfg.Usage.CompletionsQuota,
		})
	}

	tokens := token.NewStore(token.Options{
		Disabled:        !cfg.Auth.Enforce,
		DefaultToken:    cfg.Auth.DefaultToken,
		TrustFirstToken: cfg.Auth.TrustFirstToken,
	}, log)

	service := gateway.NewService(log, recorder, cfg.Models)
	registered := gateway.BootstrapProviders(ctx, service, cfg.Providers, log)
	log.Info("gateway initialized",
		zap.Int("providers", registered),
		zap.Int("models", len(cfg.Models)))

	srv := server.New(cfg, log, service, tokens, quotas)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("listening", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}

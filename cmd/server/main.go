// Command server boots the gateway: it loads configuration, wires every
// collaborator the dispatch engine depends on, binds the registered
// endpoints onto a Gin router, and serves until an interrupt arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prism-gateway/llm-router/internal/audit"
	"github.com/prism-gateway/llm-router/internal/config"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/prism-gateway/llm-router/internal/endpoint"

	// Imported for side effects only: each file's init() registers its
	// endpoint descriptors with internal/registry.
	_ "github.com/prism-gateway/llm-router/internal/endpoint/builtin"

	"github.com/prism-gateway/llm-router/internal/keepalive"
	"github.com/prism-gateway/llm-router/internal/logger"
	"github.com/prism-gateway/llm-router/internal/prompt"
	"github.com/prism-gateway/llm-router/internal/registry"
	"github.com/prism-gateway/llm-router/internal/relay"
	"github.com/prism-gateway/llm-router/internal/server"
	"github.com/prism-gateway/llm-router/internal/store/coordination"
	"github.com/prism-gateway/llm-router/internal/strategy"
	"github.com/prism-gateway/llm-router/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger.Initialize(cfg.Server.Env)
	defer logger.Sync()
	log := logger.Get()

	catalog, err := domain.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatal("failed to load catalog", zap.Error(err))
	}
	if dups := catalog.DuplicateProviderIDs(); len(dups) > 0 {
		log.Warn("catalog has duplicate provider ids", zap.Strings("ids", dups))
	}

	if cfg.Tracing.Enabled {
		shutdownTracer, err := telemetry.InitTracer(cfg.Tracing.ServiceName, log, os.Stdout)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = shutdownTracer(shutdownCtx)
		}()
	}

	store, closeStore := buildStore(cfg, log)
	defer closeStore()

	chooser, err := strategy.New(strategy.Name(cfg.Strategy.Name), store, cfg.Server.RequestTimeout)
	if err != nil {
		log.Fatal("failed to build selection strategy", zap.Error(err))
	}

	promptRepo, err := prompt.New(cfg.Prompt.Root, log)
	if err != nil {
		log.Fatal("failed to load prompt repository", zap.Error(err))
	}

	auditor := buildAuditor(cfg, log)
	if closer, ok := auditor.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	httpClient := &http.Client{Timeout: cfg.Server.ExternalTimeout}
	relayClient := relay.New(httpClient)

	pinger := &keepalive.RelayPinger{Catalog: catalog, Relay: relayClient}
	monitor := keepalive.New(store, pinger, nil, cfg.KeepAlive.CheckInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	eng := endpoint.New(catalog, chooser, promptRepo, auditor, relayClient, monitor, log)
	eng.DefaultLanguage = cfg.Server.DefaultLanguage
	eng.Prefix = cfg.Server.Prefix
	eng.RequestTimeout = cfg.Server.RequestTimeout
	eng.ExternalTimeout = cfg.Server.ExternalTimeout
	eng.MaskingEnabled = cfg.Masking.Enabled
	eng.GuardrailEnabled = cfg.Guardrail.Enabled

	manifest, err := registry.LoadManifest(cfg.Registration.ManifestPath)
	if err != nil {
		log.Fatal("failed to load registration manifest", zap.Error(err))
	}
	strategyOverrides := buildStrategyOverrides(manifest, store, cfg, log)

	listing := server.NewListingHandler(catalog)
	srv := server.New(cfg, log, eng, listing, manifest, strategyOverrides)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("gateway listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildStore constructs the coordination backend named by cfg.Store.Backend.
// The returned closer is a no-op for the in-memory store, which owns no
// external connection to release.
func buildStore(cfg *config.Config, log *zap.Logger) (coordination.Store, func()) {
	if cfg.Store.Backend != "redis" {
		return coordination.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.Host + ":" + strconv.Itoa(cfg.Store.Port),
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
	})
	log.Info("using redis coordination store", zap.String("host", cfg.Store.Host))
	return coordination.NewRedisStore(client), func() { _ = client.Close() }
}

// buildStrategyOverrides constructs one Chooser per distinct strategy
// name the registration manifest pins to some endpoint, so routes.go can
// hand each such endpoint its own strategy instead of the gateway's
// default. A name the strategy package doesn't recognize is logged and
// skipped: the affected endpoint falls back to the default strategy at
// bind time rather than failing startup outright.
func buildStrategyOverrides(manifest *registry.Manifest, store coordination.Store, cfg *config.Config, log *zap.Logger) map[string]ports.Chooser {
	names := manifest.StrategyNames()
	if len(names) == 0 {
		return nil
	}

	overrides := make(map[string]ports.Chooser, len(names))
	for _, name := range names {
		chooser, err := strategy.New(strategy.Name(name), store, cfg.Server.RequestTimeout)
		if err != nil {
			log.Warn("registration manifest names an unknown strategy, ignoring override", zap.String("strategy", name), zap.Error(err))
			continue
		}
		overrides[name] = chooser
	}
	return overrides
}

// buildAuditor returns the configured audit sink, or a no-op sink when
// auditing is disabled.
func buildAuditor(cfg *config.Config, log *zap.Logger) ports.Auditor {
	if !cfg.Audit.Enabled {
		return audit.NoopAuditor{}
	}
	auditor, err := audit.NewSQLiteAuditor(cfg.Audit.DSN)
	if err != nil {
		log.Fatal("failed to open audit sink", zap.Error(err))
	}
	return auditor
}

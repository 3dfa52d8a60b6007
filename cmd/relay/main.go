package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/messenger"
	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/openrouter"
	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/telemetry"
	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/vault"
	httphandler "github.com/ericfisherdev/inboxrelay/internal/adapter/driving/http"
	"github.com/ericfisherdev/inboxrelay/internal/application"
	"github.com/ericfisherdev/inboxrelay/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid values).
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_driver", cfg.DBDriver,
		"default_model", cfg.DefaultModel,
		"completion_timeout", cfg.CompletionTimeout,
		"dispatch_timeout", cfg.DispatchTimeout,
		"tracing", cfg.Tracing,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Tracing.
	shutdownTracer, err := telemetry.InitTracer("inboxrelay", cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	// 4. Open database and run migrations.
	db, err := sqlstore.NewDB(ctx, sqlstore.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "dialect", db.Dialect().Name())

	if err := sqlstore.RunMigrations(db); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Secret vault.
	secrets, err := vault.New(cfg.EncryptionKey, cfg.DatabaseServiceKey, logger)
	if err != nil {
		return err
	}

	// 6. Wire adapters.
	tenantStore := sqlstore.NewTenantRepo(db)
	accountStore := sqlstore.NewAccountRepo(db)
	knowledgeStore := sqlstore.NewKnowledgeRepo(db)
	productStore := sqlstore.NewProductRepo(db)
	activityStore := sqlstore.NewActivityRepo(db)

	outbound := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	completion := openrouter.NewClient(
		openrouter.WithBaseURL(cfg.OpenRouterBaseURL),
		openrouter.WithDefaultModel(cfg.DefaultModel),
		openrouter.WithHTTPClient(outbound),
		openrouter.WithLogger(logger),
		openrouter.WithAppIdentity("https://github.com/ericfisherdev/inboxrelay", "inboxrelay"),
	)
	sender := messenger.NewClient(cfg.GraphBaseURL, cfg.GraphAPIVersion, outbound)

	observer, err := telemetry.NewObserver(nil, nil)
	if err != nil {
		return err
	}

	// 7. Application services.
	pipeline := application.NewPipeline(
		tenantStore,
		secrets,
		application.NewContextAssembler(knowledgeStore, productStore, logger),
		completion,
		sender,
		application.NewUsageMeter(accountStore, activityStore, logger),
		observer,
		application.PipelineConfig{
			FallbackAPIKey:    cfg.OpenRouterAPIKey,
			CompletionTimeout: cfg.CompletionTimeout,
			DispatchTimeout:   cfg.DispatchTimeout,
		},
		logger,
	)
	verifier := application.NewWebhookVerifier(tenantStore, secrets, logger)

	// 8. HTTP server.
	handler := httphandler.NewServeMux(
		httphandler.NewHandler(pipeline, verifier, tenantStore, cfg.DefaultModel, logger),
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("inboxrelay started", "listen_addr", cfg.ListenAddr, "key_source", secrets.Source())

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// 10. Stop accepting requests, then let in-flight messaging events finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := pipeline.Drain(shutdownCtx); err != nil {
		logger.Warn("in-flight events abandoned", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

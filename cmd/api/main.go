package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/di"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/handlers"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/config"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/idempotency"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/observability"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	idem, err := newIdempotencyBackend(cfg)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	checks := []repositories.DependencyCheck{secretManagerCheck(fetcher)}
	checks = append(checks, idem.checks...)

	reg, err := newRegistry(cfg, logger, checks)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithLogger(logger.Named("workflow")),
		di.WithBuildInfo(buildInfo),
		di.WithCloser(idem.close),
	}

	publisher, stopPublisher, err := newEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise workflow event publisher", zap.Error(err))
	}
	if publisher != nil {
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher), di.WithCloser(stopPublisher))
		logger.Info("workflow events published to pubsub", zap.String("topic", cfg.PubSub.Topic))
	}

	verifier, err := newTransactionVerifier(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise payment provider", zap.Error(err))
	}
	if verifier != nil {
		containerOpts = append(containerOpts, di.WithTransactionVerifier(verifier))
	} else {
		logger.Warn("stripe api key not configured; confirmed payments are not verified with the provider")
	}

	container, err := di.NewContainer(cfg, reg, containerOpts...)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	var background errgroup.Group
	janitor := idempotency.NewJanitor(idem.store, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize,
		logger.Named("idempotency"))
	background.Go(func() error { return janitor.Run(backgroundCtx) })

	guests, authenticator, err := newAuthenticator(ctx, cfg, logger.Named("auth"))
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	idempotencyMiddleware := idempotency.Middleware(
		idem.store,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	svc := container.Services
	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)
	guestHandlers := handlers.NewGuestSessionHandlers(guests)
	cartHandlers := handlers.NewCartHandlers(svc.Carts)
	orderHandlers := handlers.NewOrderHandlers(svc.Orders, svc.Catalog)
	paymentHandlers := handlers.NewPaymentHandlers(svc.Payments)
	deliveryHandlers := handlers.NewDeliveryHandlers(svc.Deliveries)
	internalHandlers := handlers.NewInternalHandlers(svc.Carts, handlers.SweepSettings{
		StaleAfter: cfg.Carts.StaleAfter,
		BatchSize:  cfg.Carts.SweepBatchSize,
	})

	router := handlers.NewRouter(handlers.Mounts{
		Health:         healthHandlers,
		Public:         guestHandlers.Routes,
		Carts:          cartHandlers.Routes,
		Orders:         []handlers.RouteRegistrar{orderHandlers.Routes, paymentHandlers.Routes, deliveryHandlers.Routes},
		Internal:       internalHandlers.Routes,
		ActorGuards:    []handlers.Middleware{authenticator.RequireActor(), idempotencyMiddleware},
		InternalGuards: []handlers.Middleware{newOIDCMiddleware(cfg, logger.Named("auth"))},
	},
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(middlewares...),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("workflow api listening",
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.Store.Driver),
			zap.String("idempotency", cfg.Idempotency.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	stopBackground()
	if err := background.Wait(); err != nil {
		logger.Warn("background task error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("dependency close error", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

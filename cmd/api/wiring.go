package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/payments"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/config"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/idempotency"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/jobs"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/observability"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/secrets"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
	firestoreRepo "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories/memory"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

const (
	envPubSubEmulatorHost = "PUBSUB_EMULATOR_HOST"
	stripeProviderName    = "stripe"
	redisKeyPrefix        = "workflow:idem:"
)

func newRegistry(cfg config.Config, logger *zap.Logger, checks []repositories.DependencyCheck) (repositories.Registry, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverFirestore:
		var opts []pfirestore.ProviderOption
		if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
			opts = append(opts, pfirestore.WithClientOptions(option.WithCredentialsFile(file)))
		}
		provider := pfirestore.NewProvider(cfg.Firestore, opts...)
		reg, err := firestoreRepo.NewRegistry(provider, checks...)
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Close(closeCtx)
			return nil, err
		}
		return reg, nil
	case config.StoreDriverMemory:
		reg := memory.NewRegistry(memory.WithDependencyChecks(checks...))
		if cfg.Store.SeedFixtures {
			seedFixtures(reg, time.Now().UTC())
			logger.Info("memory store seeded with demo catalog")
		}
		if cfg.Environment != "local" {
			logger.Warn("memory store in use outside local environment; data is lost on restart",
				zap.String("environment", cfg.Environment))
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

type idempotencyBackend struct {
	store  idempotency.Store
	checks []repositories.DependencyCheck
	close  func(context.Context) error
}

func newIdempotencyBackend(cfg config.Config) (idempotencyBackend, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.Idempotency.Backend {
	case config.IdempotencyBackendMemory:
		return idempotencyBackend{store: idempotency.NewMemoryStore(), close: noop}, nil
	case config.IdempotencyBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := idempotency.NewRedisStore(client, idempotency.WithKeyPrefix(redisKeyPrefix))
		if err != nil {
			_ = client.Close()
			return idempotencyBackend{}, err
		}
		return idempotencyBackend{
			store: store,
			checks: []repositories.DependencyCheck{{
				Name:    "redis",
				Timeout: time.Second,
				Check:   store.Ping,
			}},
			close: func(context.Context) error { return client.Close() },
		}, nil
	default:
		return idempotencyBackend{}, fmt.Errorf("unsupported idempotency backend %q", cfg.Idempotency.Backend)
	}
}

func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check:   fetcher.Ping,
	}
}

func newEventPublisher(ctx context.Context, cfg config.Config) (services.EventPublisher, func(context.Context) error, error) {
	projectID := strings.TrimSpace(cfg.PubSub.ProjectID)
	if projectID == "" {
		return nil, nil, nil
	}
	if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" && os.Getenv(envPubSubEmulatorHost) == "" {
		_ = os.Setenv(envPubSubEmulatorHost, host)
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.Topic)
	topic.EnableMessageOrdering = true

	publisher, err := jobs.NewPubSubEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	stop := func(context.Context) error {
		publisher.Stop()
		return client.Close()
	}
	return publisher, stop, nil
}

func newTransactionVerifier(cfg config.Config, logger *zap.Logger) (services.PaymentTransactionVerifier, error) {
	if strings.TrimSpace(cfg.PSP.StripeAPIKey) == "" {
		return nil, nil
	}
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: observability.ServiceLogger(logger, "payments"),
	})
	if err != nil {
		return nil, err
	}
	manager, err := payments.NewManager(
		map[string]payments.Provider{stripeProviderName: stripeProvider},
		payments.WithDefaultProvider(stripeProviderName),
	)
	if err != nil {
		return nil, err
	}
	return manager, nil
}

// newAuthenticator accepts guest session tokens always and Firebase ID tokens when a project is configured.
func newAuthenticator(ctx context.Context, cfg config.Config, logger *zap.Logger) (*auth.GuestTokens, *auth.Authenticator, error) {
	guests, err := auth.NewGuestTokens(cfg.Auth.GuestTokenSecret, auth.WithGuestTTL(cfg.Auth.GuestTokenTTL))
	if err != nil {
		return nil, nil, err
	}

	opts := []auth.Option{auth.WithGuestTokens(guests)}
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		logger.Warn("firebase project not configured; only guest sessions are accepted")
		return guests, auth.NewAuthenticator(nil, opts...), nil
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, nil, err
	}
	return guests, auth.NewAuthenticator(verifier, opts...), nil
}

func newOIDCMiddleware(cfg config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	oidc := cfg.Auth.OIDC
	var cache *auth.JWKSCache
	if url := strings.TrimSpace(oidc.JWKSURL); url != "" {
		cache = auth.NewJWKSCache(url, auth.WithJWKSLogger(logger.Named("jwks")))
	}
	if cache == nil || strings.TrimSpace(oidc.Audience) == "" {
		logger.Warn("auth: OIDC not fully configured; internal routes will reject requests")
	}
	return auth.NewOIDCValidator(cache, oidc.Audience, oidc.Issuers).RequireOIDC
}

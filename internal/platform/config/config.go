// Package config loads runtime settings from a dotenv file, the environment and Secret Manager.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultEnvFile     = ".env"
	defaultEnvironment = "local"
	defaultOIDCIssuer  = "https://accounts.google.com"
	defaultPubSubTopic = "workflow-events"
	minGuestSecretLen  = 32

	defaultRequestTimeout     = 20 * time.Second
	defaultGuestTokenTTL      = 24 * time.Hour
	defaultOIDCJWKSURL        = "https://www.googleapis.com/oauth2/v3/certs"
	defaultIdempotencyHeader  = "Idempotency-Key"
	defaultCartStaleAfter     = 72 * time.Hour
	defaultCartSweepBatchSize = 100
)

// Store drivers.
const (
	StoreDriverMemory    = "memory"
	StoreDriverFirestore = "firestore"
)

// Idempotency backends.
const (
	IdempotencyBackendMemory = "memory"
	IdempotencyBackendRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Store       StoreConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Auth        AuthConfig
	PubSub      PubSubConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	PSP         PSPConfig
	Carts       CartConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver string
	// SeedFixtures loads the demo catalog into the memory driver.
	SeedFixtures bool
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	// CheckRevoked rejects ID tokens of disabled users or revoked sessions.
	CheckRevoked bool
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig groups credential verification settings.
type AuthConfig struct {
	GuestTokenSecret string
	GuestTokenTTL    time.Duration
	OIDC             OIDCConfig
}

// OIDCConfig controls Google-signed token verification on internal routes.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// PubSubConfig configures workflow event publishing. Publishing is disabled without a project.
type PubSubConfig struct {
	ProjectID    string
	Topic        string
	EmulatorHost string
}

// RedisConfig configures the Redis client used by the idempotency store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Backend          string
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// PSPConfig collects payment provider credentials. An empty key disables transaction verification.
type PSPConfig struct {
	StripeAPIKey string
}

// CartConfig tunes the stale cart sweep.
type CartConfig struct {
	StaleAfter     time.Duration
	SweepBatchSize int
}

// ValidationError lists fields that are missing or hold values of the wrong shape.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid or missing [%s]", strings.Join(e.fields, ", "))
}

// Fields returns the offending config fields and environment keys.
func (e *ValidationError) Fields() []string { return append([]string(nil), e.fields...) }

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secrets         SecretResolver
	requiredSecrets []string
}

func newOptions(opts []Option) loaderOptions {
	o := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEnvFile reads dotenv values from path; "" skips the file. A missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap overrides both the dotenv file and the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver resolves secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secrets = resolver }
}

// WithRequiredSecrets fails Load with MissingSecretsError when a named secret field
// (e.g. "PSP.StripeAPIKey") ends up empty.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged key/value view Load reads from, so components needed
// before Load (the secret fetcher) see the same inputs.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	o := newOptions(opts)
	src, err := newSource(o)
	if err != nil {
		return nil, err
	}
	return src.values(o.useSystemEnv), nil
}

// Load reads, resolves and validates the configuration.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := newOptions(opts)
	src, err := newSource(o)
	if err != nil {
		return Config{}, err
	}
	cfg := read(src)
	if err := cfg.resolveSecrets(ctx, o.secrets); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(src.invalid); err != nil {
		return Config{}, err
	}
	if missing := cfg.missingSecrets(o.requiredSecrets); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func read(src *source) Config {
	cfg := Config{
		Environment: src.lower("API_ENVIRONMENT", defaultEnvironment),
		Server: ServerConfig{
			Port:            src.str("API_SERVER_PORT", "8080"),
			ReadTimeout:     src.duration("API_SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    src.duration("API_SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     src.duration("API_SERVER_IDLE_TIMEOUT", 2*time.Minute),
			RequestTimeout:  src.duration("API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			ShutdownTimeout: src.duration("API_SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			Driver:       src.lower("API_STORE_DRIVER", StoreDriverMemory),
			SeedFixtures: src.flag("API_STORE_SEED_FIXTURES", false),
		},
		Firebase: FirebaseConfig{
			ProjectID:       src.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: src.str("API_FIREBASE_CREDENTIALS_FILE", ""),
			CheckRevoked:    src.flag("API_FIREBASE_CHECK_REVOKED", false),
		},
		Auth: AuthConfig{
			GuestTokenSecret: src.str("API_AUTH_GUEST_TOKEN_SECRET", ""),
			GuestTokenTTL:    src.duration("API_AUTH_GUEST_TOKEN_TTL", defaultGuestTokenTTL),
			OIDC: OIDCConfig{
				JWKSURL:   src.str("API_AUTH_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  src.str("API_AUTH_OIDC_AUDIENCE", ""),
				Audiences: src.pairs("API_AUTH_OIDC_AUDIENCES"),
				Issuers:   src.list("API_AUTH_OIDC_ISSUERS"),
			},
		},
		PubSub: PubSubConfig{
			Topic:        src.str("API_PUBSUB_TOPIC", defaultPubSubTopic),
			EmulatorHost: src.str("API_PUBSUB_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:     src.str("API_REDIS_ADDR", ""),
			Password: src.str("API_REDIS_PASSWORD", ""),
			DB:       src.integer("API_REDIS_DB", 0),
		},
		Idempotency: IdempotencyConfig{
			Backend:          src.lower("API_IDEMPOTENCY_BACKEND", IdempotencyBackendMemory),
			Header:           src.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              src.duration("API_IDEMPOTENCY_TTL", 24*time.Hour),
			CleanupInterval:  src.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", time.Hour),
			CleanupBatchSize: src.integer("API_IDEMPOTENCY_CLEANUP_BATCH", 200),
		},
		PSP: PSPConfig{
			StripeAPIKey: src.str("API_PSP_STRIPE_API_KEY", ""),
		},
		Carts: CartConfig{
			StaleAfter:     src.duration("API_CARTS_STALE_AFTER", defaultCartStaleAfter),
			SweepBatchSize: src.integer("API_CARTS_SWEEP_BATCH_SIZE", defaultCartSweepBatchSize),
		},
	}

	// Firestore and Pub/Sub share the Firebase project unless told otherwise.
	cfg.Firestore = FirestoreConfig{
		ProjectID:    src.str("API_FIRESTORE_PROJECT_ID", cfg.Firebase.ProjectID),
		EmulatorHost: src.str("API_FIRESTORE_EMULATOR_HOST", ""),
	}
	cfg.PubSub.ProjectID = src.str("API_PUBSUB_PROJECT_ID", cfg.Firebase.ProjectID)

	if len(cfg.Auth.OIDC.Issuers) == 0 {
		cfg.Auth.OIDC.Issuers = []string{defaultOIDCIssuer}
	}
	if cfg.Auth.OIDC.Audience == "" {
		cfg.Auth.OIDC.Audience = cfg.Auth.OIDC.Audiences[cfg.Environment]
	}
	return cfg
}

func (c Config) validate(invalidKeys []string) error {
	fields := append([]string(nil), invalidKeys...)
	check := func(ok bool, field string) {
		if !ok {
			fields = append(fields, field)
		}
	}

	check(c.Server.Port != "", "Server.Port")
	check(c.Server.RequestTimeout > 0, "Server.RequestTimeout")
	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverFirestore:
		check(c.Firestore.ProjectID != "", "Firestore.ProjectID")
	default:
		check(false, "Store.Driver")
	}

	check(len(c.Auth.GuestTokenSecret) >= minGuestSecretLen, "Auth.GuestTokenSecret")
	check(c.Auth.GuestTokenTTL > 0, "Auth.GuestTokenTTL")

	switch c.Idempotency.Backend {
	case IdempotencyBackendMemory:
	case IdempotencyBackendRedis:
		check(c.Redis.Addr != "", "Redis.Addr")
	default:
		check(false, "Idempotency.Backend")
	}
	check(c.Idempotency.Header != "", "Idempotency.Header")
	check(c.Idempotency.TTL > 0, "Idempotency.TTL")
	check(c.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval")
	check(c.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")

	check(c.Carts.StaleAfter > 0, "Carts.StaleAfter")
	check(c.Carts.SweepBatchSize > 0, "Carts.SweepBatchSize")

	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuestSecret = "0123456789abcdef0123456789abcdef"

func loadMap(t *testing.T, env map[string]string, opts ...Option) (Config, error) {
	t.Helper()
	return Load(context.Background(), append([]Option{WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")}, opts...)...)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{
		"API_FIREBASE_PROJECT_ID":     "wf-dev",
		"API_AUTH_GUEST_TOKEN_SECRET": testGuestSecret,
	})
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, ServerConfig{
		Port:            "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     2 * time.Minute,
		RequestTimeout:  defaultRequestTimeout,
		ShutdownTimeout: 15 * time.Second,
	}, cfg.Server)
	assert.Equal(t, StoreConfig{Driver: StoreDriverMemory}, cfg.Store)
	assert.Equal(t, "wf-dev", cfg.Firestore.ProjectID)
	assert.Equal(t, "wf-dev", cfg.PubSub.ProjectID)
	assert.Equal(t, defaultPubSubTopic, cfg.PubSub.Topic)
	assert.False(t, cfg.Firebase.CheckRevoked)
	assert.Equal(t, defaultGuestTokenTTL, cfg.Auth.GuestTokenTTL)
	assert.Equal(t, defaultOIDCJWKSURL, cfg.Auth.OIDC.JWKSURL)
	assert.Equal(t, []string{defaultOIDCIssuer}, cfg.Auth.OIDC.Issuers)
	assert.Equal(t, IdempotencyConfig{
		Backend:          IdempotencyBackendMemory,
		Header:           defaultIdempotencyHeader,
		TTL:              24 * time.Hour,
		CleanupInterval:  time.Hour,
		CleanupBatchSize: 200,
	}, cfg.Idempotency)
	assert.Equal(t, CartConfig{StaleAfter: defaultCartStaleAfter, SweepBatchSize: defaultCartSweepBatchSize}, cfg.Carts)
}

func TestLoad_OverridesAndSecrets(t *testing.T) {
	secrets := map[string]string{
		"secret://auth/guest":     "guest-secret-guest-secret-guest-secret",
		"secret://redis/password": "redis-pass",
		"secret://stripe/api":     "sk_test_123",
	}
	var asked []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		asked = append(asked, ref)
		if v, ok := secrets[ref]; ok {
			return v + "\n", nil
		}
		return "", errors.New("unknown")
	})

	cfg, err := loadMap(t, map[string]string{
		"API_ENVIRONMENT":             "PROD",
		"API_SERVER_PORT":             "9090",
		"API_SERVER_REQUEST_TIMEOUT":  "5s",
		"API_STORE_DRIVER":            "Firestore",
		"API_STORE_SEED_FIXTURES":     "true",
		"API_FIREBASE_PROJECT_ID":     "wf-prod",
		"API_FIREBASE_CHECK_REVOKED":  "1",
		"API_FIRESTORE_PROJECT_ID":    "wf-fire",
		"API_AUTH_GUEST_TOKEN_SECRET": "secret://auth/guest",
		"API_AUTH_GUEST_TOKEN_TTL":    "2h",
		"API_AUTH_OIDC_AUDIENCES":     "Prod=https://wf.example.com, stg=https://wf-stg.example.com, broken",
		"API_AUTH_OIDC_ISSUERS":       "https://accounts.google.com, ,https://cloud.google.com/iap",
		"API_PUBSUB_TOPIC":            "order-events",
		"API_REDIS_ADDR":              "redis:6379",
		"API_REDIS_PASSWORD":          "sm://redis/password",
		"API_REDIS_DB":                "3",
		"API_IDEMPOTENCY_BACKEND":     "REDIS",
		"API_IDEMPOTENCY_HEADER":      "X-Idem-Key",
		"API_PSP_STRIPE_API_KEY":      "secret://stripe/api",
		"API_CARTS_SWEEP_BATCH_SIZE":  "25",
	}, WithSecretResolver(resolver))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, StoreConfig{Driver: StoreDriverFirestore, SeedFixtures: true}, cfg.Store)
	assert.True(t, cfg.Firebase.CheckRevoked)
	assert.Equal(t, "wf-fire", cfg.Firestore.ProjectID)
	assert.Equal(t, "wf-prod", cfg.PubSub.ProjectID)
	assert.Equal(t, "guest-secret-guest-secret-guest-secret", cfg.Auth.GuestTokenSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.GuestTokenTTL)
	assert.Equal(t, "https://wf.example.com", cfg.Auth.OIDC.Audience)
	assert.Equal(t, []string{"https://accounts.google.com", "https://cloud.google.com/iap"}, cfg.Auth.OIDC.Issuers)
	assert.Equal(t, RedisConfig{Addr: "redis:6379", Password: "redis-pass", DB: 3}, cfg.Redis)
	assert.Equal(t, IdempotencyBackendRedis, cfg.Idempotency.Backend)
	assert.Equal(t, "X-Idem-Key", cfg.Idempotency.Header)
	assert.Equal(t, "sk_test_123", cfg.PSP.StripeAPIKey)
	assert.Equal(t, 25, cfg.Carts.SweepBatchSize)
	assert.ElementsMatch(t, []string{"secret://auth/guest", "secret://redis/password", "secret://stripe/api"}, asked)
}

func TestLoad_DotEnvBelowEnvironment(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env.test")
	content := "API_SERVER_PORT=7070\nexport API_FIREBASE_PROJECT_ID=wf-dot\nAPI_AUTH_GUEST_TOKEN_SECRET=\"" + testGuestSecret + "\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))
	t.Setenv("API_SERVER_PORT", "6060")

	cfg, err := Load(context.Background(), WithEnvFile(envPath))
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Server.Port)
	assert.Equal(t, "wf-dot", cfg.Firebase.ProjectID)
	assert.Equal(t, testGuestSecret, cfg.Auth.GuestTokenSecret)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "absent.env")),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_AUTH_GUEST_TOKEN_SECRET": testGuestSecret}),
	)
	require.NoError(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		drop  []string
		field string
	}{
		{name: "missing guest secret", drop: []string{"API_AUTH_GUEST_TOKEN_SECRET"}, field: "Auth.GuestTokenSecret"},
		{name: "blank guest secret", env: map[string]string{"API_AUTH_GUEST_TOKEN_SECRET": ""}, field: "Auth.GuestTokenSecret"},
		{name: "short guest secret", env: map[string]string{"API_AUTH_GUEST_TOKEN_SECRET": "short"}, field: "Auth.GuestTokenSecret"},
		{name: "unknown store driver", env: map[string]string{"API_STORE_DRIVER": "postgres"}, field: "Store.Driver"},
		{name: "firestore without project", env: map[string]string{"API_STORE_DRIVER": "firestore"}, field: "Firestore.ProjectID"},
		{name: "redis without address", env: map[string]string{"API_IDEMPOTENCY_BACKEND": "redis"}, field: "Redis.Addr"},
		{name: "unparseable duration", env: map[string]string{"API_CARTS_STALE_AFTER": "three days"}, field: "API_CARTS_STALE_AFTER"},
		{name: "unparseable integer", env: map[string]string{"API_REDIS_DB": "zero"}, field: "API_REDIS_DB"},
		{name: "unparseable flag", env: map[string]string{"API_STORE_SEED_FIXTURES": "maybe"}, field: "API_STORE_SEED_FIXTURES"},
		{name: "non-positive batch", env: map[string]string{"API_CARTS_SWEEP_BATCH_SIZE": "0"}, field: "Carts.SweepBatchSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{"API_AUTH_GUEST_TOKEN_SECRET": testGuestSecret}
			for k, v := range tt.env {
				env[k] = v
			}
			for _, k := range tt.drop {
				delete(env, k)
			}
			_, err := loadMap(t, env)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Contains(t, validation.Fields(), tt.field)
		})
	}
}

func TestLoad_SecretResolution(t *testing.T) {
	env := map[string]string{
		"API_AUTH_GUEST_TOKEN_SECRET": testGuestSecret,
		"API_PSP_STRIPE_API_KEY":      "sm://missing",
	}

	_, err := loadMap(t, env)
	var secretErr *SecretError
	require.ErrorAs(t, err, &secretErr)
	assert.Equal(t, "secret://missing", secretErr.Ref)
	assert.ErrorIs(t, err, errSecretResolverNotConfigured)

	failing := SecretResolverFunc(func(context.Context, string) (string, error) { return "", os.ErrPermission })
	_, err = loadMap(t, env, WithSecretResolver(failing))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestLoad_RequiredSecrets(t *testing.T) {
	_, err := loadMap(t,
		map[string]string{"API_AUTH_GUEST_TOKEN_SECRET": testGuestSecret},
		WithRequiredSecrets("PSP.StripeAPIKey", "Auth.GuestTokenSecret", "Redis.Password", "PSP.StripeAPIKey", " "),
	)
	var missing *MissingSecretsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"PSP.StripeAPIKey", "Redis.Password"}, missing.Names())
	assert.ElementsMatch(t, []string{redactSecretName("PSP.StripeAPIKey"), redactSecretName("Redis.Password")}, missing.RedactedNames())
	assert.NotContains(t, err.Error(), "Stripe")
}

func TestEnvironmentValues_Precedence(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))
	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS": "secret://stripe/api=5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "override-project", values["API_FIREBASE_PROJECT_ID"])
	assert.Equal(t, ".dot.local", values["API_SECRET_FALLBACK_FILE"])
	assert.Equal(t, "prod=project-prod", values["API_SECRET_PROJECT_IDS"])
	assert.Equal(t, "secret://stripe/api=5", values["API_SECRET_VERSION_PINS"])
}

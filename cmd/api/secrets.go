package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/config"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/secrets"
)

const defaultSecretFallbackFile = ".secrets.local"

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	opts := secrets.Options{
		Environment:    lookup("API_ENVIRONMENT"),
		DefaultProject: lookup("API_SECRET_DEFAULT_PROJECT_ID"),
		Projects:       parseKeyValueList(lookup("API_SECRET_PROJECT_IDS"), strings.ToLower),
		VersionPins:    secretVersionPinsFromEnv(env),
		FallbackFile:   lookup("API_SECRET_FALLBACK_FILE"),
		Logger:         logger.Named("secrets"),
	}
	if opts.DefaultProject == "" {
		opts.DefaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	if opts.FallbackFile == "" {
		opts.FallbackFile = defaultSecretFallbackFile
	}
	if raw := lookup("API_SECRET_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("API_SECRET_CACHE_TTL: %w", err)
		}
		opts.CacheTTL = ttl
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts.ClientOptions = append(opts.ClientOptions, option.WithCredentialsFile(credentialsFile))
	}
	return secrets.NewFetcher(ctx, opts)
}

// requiredSecretNames lists the secrets that must resolve to a value. Optional credentials are required
// only once their backend is selected.
func requiredSecretNames(env map[string]string) []string {
	required := []string{"Auth.GuestTokenSecret"}
	if strings.EqualFold(strings.TrimSpace(env["API_IDEMPOTENCY_BACKEND"]), config.IdempotencyBackendRedis) &&
		strings.TrimSpace(env["API_REDIS_PASSWORD"]) != "" {
		required = append(required, "Redis.Password")
	}
	if strings.TrimSpace(env["API_PSP_STRIPE_API_KEY"]) != "" {
		required = append(required, "PSP.StripeAPIKey")
	}
	return required
}

// secretVersionPinsFromEnv parses API_SECRET_VERSION_PINS entries such as "prod:sm://psp/stripe=3".
func secretVersionPinsFromEnv(env map[string]string) map[string]string {
	pins := make(map[string]string)
	for ref, version := range parseKeyValueList(env["API_SECRET_VERSION_PINS"], nil) {
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		switch {
		case strings.HasPrefix(ref, "sm://"):
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		case !strings.HasPrefix(ref, "secret://"):
			ref = "secret://" + ref
		}
		pins[prefix+ref] = version
	}
	return pins
}

func parseKeyValueList(raw string, normaliseKey func(string) string) map[string]string {
	result := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if normaliseKey != nil {
			key = normaliseKey(key)
		}
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

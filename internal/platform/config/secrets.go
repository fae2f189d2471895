package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	secretScheme      = "secret://"
	shortSecretScheme = "sm://"
)

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// SecretResolver turns a secret:// reference into its value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError reports a reference that could not be resolved.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string { return fmt.Sprintf("config: resolve %s: %v", e.Ref, e.Err) }

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secret fields that resolved to nothing.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("config: missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the sorted field names, e.g. "PSP.StripeAPIKey".
func (e *MissingSecretsError) Names() []string { return slices.Clone(e.names) }

// RedactedNames returns short hashes of the field names, safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, len(e.names))
	for i, name := range e.names {
		out[i] = redactSecretName(name)
	}
	slices.Sort(out)
	return out
}

// secretFields names every configuration value that may hold a secret reference.
func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"Auth.GuestTokenSecret": &c.Auth.GuestTokenSecret,
		"Redis.Password":        &c.Redis.Password,
		"PSP.StripeAPIKey":      &c.PSP.StripeAPIKey,
	}
}

func (c *Config) resolveSecrets(ctx context.Context, resolver SecretResolver) error {
	for _, field := range c.secretFields() {
		ref, ok := secretRef(*field)
		if !ok {
			continue
		}
		if resolver == nil {
			return &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}
		value, err := resolver.ResolveSecret(ctx, ref)
		if err != nil {
			return &SecretError{Ref: ref, Err: err}
		}
		*field = strings.TrimSpace(value)
	}
	return nil
}

func (c *Config) missingSecrets(required []string) *MissingSecretsError {
	fields := c.secretFields()
	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(missing, name) {
			continue
		}
		if field, ok := fields[name]; !ok || *field == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &MissingSecretsError{names: missing}
}

// secretRef normalises sm:// to secret:// and reports whether value is a reference at all.
func secretRef(value string) (string, bool) {
	value = strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(value, secretScheme):
		return value, true
	case strings.HasPrefix(value, shortSecretScheme):
		return secretScheme + strings.TrimPrefix(value, shortSecretScheme), true
	}
	return "", false
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

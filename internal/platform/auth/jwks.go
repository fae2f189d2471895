package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeySetValidity = 15 * time.Minute
	defaultKeySetTimeout  = 5 * time.Second
)

var (
	// ErrJWKSKeyNotFound reports a kid the key set does not carry even after a refetch.
	ErrJWKSKeyNotFound = errors.New("auth: jwks key not found")
	// ErrJWKSFetchFailed wraps transport and decoding failures of the key set endpoint.
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")
)

// keySet is one fetched JWKS document and the instant it goes stale.
type keySet struct {
	byKid  map[string]jose.JSONWebKey
	expiry time.Time
}

func (s *keySet) lookup(kid string, now time.Time) (any, bool) {
	if s == nil || (!now.IsZero() && !now.Before(s.expiry)) {
		return nil, false
	}
	jwk, ok := s.byKid[kid]
	return jwk.Key, ok
}

// JWKSCache serves the verification keys of the scheduler's identity provider. The set is refetched
// once the Cache-Control max-age elapses or an unknown kid shows up, and concurrent refetches collapse
// into one request.
type JWKSCache struct {
	url      string
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
	validity time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	set    *keySet
	flight singleflight.Group
}

// JWKSOption customises a JWKSCache.
type JWKSOption func(*JWKSCache)

func WithJWKSHTTPClient(client *http.Client) JWKSOption {
	return func(c *JWKSCache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithJWKSLogger routes refresh logs to logger.
func WithJWKSLogger(logger *zap.Logger) JWKSOption {
	return func(c *JWKSCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewJWKSCache builds a cache over the key set published at url. Nothing is fetched until the first lookup.
func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   zap.NewNop(),
		now:      time.Now,
		validity: defaultKeySetValidity,
		timeout:  defaultKeySetTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the public key published under kid.
func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	if key, ok := c.current().lookup(kid, c.now()); ok {
		return key, nil
	}
	_, err, _ := c.flight.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	// A freshly fetched set is trusted even when the clock says otherwise.
	if key, ok := c.current().lookup(kid, time.Time{}); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
}

func (c *JWKSCache) current() *keySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	keys, maxAge, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("jwks refresh failed", zap.String("url", c.url), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	if maxAge <= 0 {
		maxAge = c.validity
	}
	next := &keySet{
		byKid:  lo.KeyBy(keys, func(jwk jose.JSONWebKey) string { return jwk.KeyID }),
		expiry: c.now().Add(maxAge),
	}
	c.mu.Lock()
	c.set = next
	c.mu.Unlock()

	c.logger.Debug("jwks refreshed", zap.Int("keys", len(keys)), zap.Duration("valid_for", maxAge))
	return nil
}

// fetch downloads the key set and keeps the usable keys.
func (c *JWKSCache) fetch(ctx context.Context) ([]jose.JSONWebKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}
	keys := lo.Filter(doc.Keys, func(jwk jose.JSONWebKey, _ int) bool {
		return jwk.KeyID != "" && jwk.Valid()
	})
	if len(keys) == 0 {
		return nil, 0, errors.New("no usable keys")
	}
	return keys, cacheMaxAge(resp.Header.Get("Cache-Control")), nil
}

// cacheMaxAge reads max-age from a Cache-Control header, zero when absent or malformed.
func cacheMaxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(directive), "=")
		if !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}

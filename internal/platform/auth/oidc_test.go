package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	schedulerAudience = "https://workflow.example.com/internal/carts:sweep"
	googleIssuer      = "https://accounts.google.com"
)

type oidcFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	requests atomic.Int32
}

func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &oidcFixture{key: key}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "svc-key", Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *oidcFixture) sign(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"aud":   schedulerAudience,
		"iss":   googleIssuer,
		"sub":   "1234567890",
		"email": "scheduler@project.iam.gserviceaccount.com",
		"exp":   float64(time.Now().Add(time.Hour).Unix()),
		"iat":   float64(time.Now().Unix()),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWKSCache_CachesWithinMaxAge(t *testing.T) {
	f := newOIDCFixture(t)
	now := time.Unix(1_000_000, 0)
	cache := NewJWKSCache(f.server.URL, WithJWKSLogger(zaptest.NewLogger(t)), WithJWKSClock(func() time.Time { return now }))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := cache.Key(ctx, "svc-key")
		if err != nil {
			t.Fatalf("cache.Key: %v", err)
		}
		if _, ok := got.(*rsa.PublicKey); !ok {
			t.Fatalf("expected *rsa.PublicKey, got %T", got)
		}
	}
	if n := f.requests.Load(); n != 1 {
		t.Fatalf("expected single JWKS fetch, got %d", n)
	}

	now = now.Add(11 * time.Minute)
	if _, err := cache.Key(ctx, "svc-key"); err != nil {
		t.Fatalf("cache.Key after expiry: %v", err)
	}
	if n := f.requests.Load(); n != 2 {
		t.Fatalf("expected refetch after max-age, got %d fetches", n)
	}

	if _, err := cache.Key(ctx, "unknown"); err == nil {
		t.Fatalf("expected unknown kid to fail")
	}
}

func TestRequireOIDC(t *testing.T) {
	f := newOIDCFixture(t)

	tests := []struct {
		name     string
		audience string
		mutate   func(jwt.MapClaims)
		header   func(token string) string
		status   int
	}{
		{name: "valid", audience: schedulerAudience, status: http.StatusNoContent},
		{
			name:     "audience mismatch",
			audience: "https://other.example.com",
			status:   http.StatusUnauthorized,
		},
		{
			name:     "issuer mismatch",
			audience: schedulerAudience,
			mutate:   func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" },
			status:   http.StatusUnauthorized,
		},
		{
			name:     "expired",
			audience: schedulerAudience,
			mutate:   func(c jwt.MapClaims) { c["exp"] = float64(time.Now().Add(-time.Hour).Unix()) },
			status:   http.StatusUnauthorized,
		},
		{
			name:     "missing token",
			audience: schedulerAudience,
			header:   func(string) string { return "" },
			status:   http.StatusUnauthorized,
		},
		{name: "audience not configured", status: http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cache := NewJWKSCache(f.server.URL, WithJWKSLogger(zaptest.NewLogger(t)))
			validator := NewOIDCValidator(cache, tc.audience, []string{googleIssuer, " "})

			token := f.sign(t, tc.mutate)
			header := "Bearer " + token
			if tc.header != nil {
				header = tc.header(token)
			}
			rr := serve(t, validator.RequireOIDC, header, func(w http.ResponseWriter, r *http.Request) {
				identity, ok := ServiceIdentityFromContext(r.Context())
				if !ok || identity.Issuer != googleIssuer || identity.Subject != "1234567890" {
					t.Fatalf("unexpected service identity: %+v", identity)
				}
				w.WriteHeader(http.StatusNoContent)
			})
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestRequireOIDC_JWKSUnavailable(t *testing.T) {
	f := newOIDCFixture(t)
	token := f.sign(t, nil)

	cache := NewJWKSCache("http://127.0.0.1:1/jwks", WithJWKSLogger(zaptest.NewLogger(t)))
	validator := NewOIDCValidator(cache, schedulerAudience, []string{googleIssuer})

	rr := serve(t, validator.RequireOIDC, "Bearer "+token, func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestJWKSCache_UnknownKidReportsNotFound(t *testing.T) {
	f := newOIDCFixture(t)
	cache := NewJWKSCache(f.server.URL)

	_, err := cache.Key(context.Background(), "rotated-away")
	require.ErrorIs(t, err, ErrJWKSKeyNotFound)
}

func TestCacheMaxAge(t *testing.T) {
	tests := map[string]time.Duration{
		"public, max-age=600":         10 * time.Minute,
		"MAX-AGE=30, must-revalidate": 30 * time.Second,
		"no-store":                    0,
		"max-age=-5":                  0,
		"max-age=soon":                0,
		"":                            0,
	}
	for header, want := range tests {
		assert.Equal(t, want, cacheMaxAge(header), header)
	}
}

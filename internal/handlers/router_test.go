package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{report: domain.Readiness{Status: domain.HealthOK, GeneratedAt: now}}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(Mounts{Health: health})

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "healthz", method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		{name: "readyz", method: http.MethodGet, path: "/readyz", status: http.StatusOK},
		{name: "carts not wired", method: http.MethodGet, path: "/api/v1/carts/abc", status: http.StatusNotImplemented},
		{name: "orders not wired", method: http.MethodPost, path: "/api/v1/orders", status: http.StatusNotImplemented},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/unknown", status: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(Mounts{Carts: func(r chi.Router) {
		r.Get("/{cartID}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/carts/abc", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "method_not_allowed", errorCode(t, rr))
}

func TestNewRouter_ActorMiddlewaresRunInOrder(t *testing.T) {
	var calls []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	router := NewRouter(Mounts{
		ActorGuards: []Middleware{mark("auth"), mark("idempotency")},
		Orders: []RouteRegistrar{func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		}},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"auth", "idempotency"}, calls)
}

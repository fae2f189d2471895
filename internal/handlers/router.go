package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	defaultTimeout = 60 * time.Second
)

// RouteRegistrar registers one resource's routes on r.
type RouteRegistrar func(r chi.Router)

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Mounts lists what NewRouter serves. A group without registrars answers 501.
type Mounts struct {
	Health   *HealthHandlers
	Public   RouteRegistrar
	Carts    RouteRegistrar
	Orders   []RouteRegistrar
	Internal RouteRegistrar

	// ActorGuards wrap /carts and /orders in order. Authentication must precede idempotency so
	// replays are scoped per actor.
	ActorGuards    []Middleware
	InternalGuards []Middleware
}

type serverSettings struct {
	timeout     time.Duration
	middlewares []Middleware
}

// Option tunes the router-wide middleware stack.
type Option func(*serverSettings)

// WithRequestTimeout bounds the context of every request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *serverSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMiddlewares appends router-wide middleware after request id, real ip and timeout.
func WithMiddlewares(mw ...Middleware) Option {
	return func(s *serverSettings) { s.middlewares = append(s.middlewares, mw...) }
}

// NewRouter builds the chi router: health probes at the root, workflow groups under /api/v1.
func NewRouter(m Mounts, opts ...Option) chi.Router {
	s := serverSettings{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	if m.Health == nil {
		m.Health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(s.timeout))
	for _, mw := range s.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed",
			req.Method+" is not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", m.Health.Healthz)
	r.Get("/readyz", m.Health.Readyz)

	r.Route(apiPrefix, func(api chi.Router) {
		if m.Public != nil {
			m.Public(api)
		}
		api.Route("/carts", group("carts", m.ActorGuards, m.Carts))
		api.Route("/orders", group("orders", m.ActorGuards, m.Orders...))
		api.Route("/internal", group("internal", m.InternalGuards, m.Internal))
	})
	return r
}

func group(name string, guards []Middleware, registrars ...RouteRegistrar) func(chi.Router) {
	return func(r chi.Router) {
		for _, mw := range guards {
			if mw != nil {
				r.Use(mw)
			}
		}
		mounted := false
		for _, register := range registrars {
			if register != nil {
				register(r)
				mounted = true
			}
		}
		if !mounted {
			notImplemented := func(w http.ResponseWriter, req *http.Request) {
				httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", name+" routes are not wired", http.StatusNotImplemented))
			}
			r.HandleFunc("/", notImplemented)
			r.HandleFunc("/*", notImplemented)
		}
	}
}

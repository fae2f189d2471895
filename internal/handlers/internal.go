package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

// SweepSettings bounds one stale cart sweep.
type SweepSettings struct {
	StaleAfter time.Duration
	BatchSize  int
}

// InternalHandlers serves scheduler-invoked maintenance endpoints.
type InternalHandlers struct {
	carts services.CartService
	sweep SweepSettings
}

// NewInternalHandlers constructs maintenance handlers.
func NewInternalHandlers(carts services.CartService, sweep SweepSettings) *InternalHandlers {
	return &InternalHandlers{carts: carts, sweep: sweep}
}

// Routes registers the /internal endpoints. Callers authenticate with OIDC, applied by the router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/carts:sweep", h.sweepCarts)
}

type sweepPayload struct {
	Abandoned int    `json:"abandoned"`
	Cutoff    string `json:"older_than"`
}

func (h *InternalHandlers) sweepCarts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	abandoned, err := h.carts.AbandonStaleCarts(ctx, services.AbandonStaleCartsCommand{
		OlderThan: h.sweep.StaleAfter,
		Limit:     h.sweep.BatchSize,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	fields := []zap.Field{zap.Int("abandoned", abandoned), zap.Duration("older_than", h.sweep.StaleAfter)}
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok {
		fields = append(fields, zap.String("caller", identity.Email))
	}
	requestctx.Logger(ctx).Info("stale cart sweep finished", fields...)

	writeJSONResponse(w, http.StatusOK, sweepPayload{Abandoned: abandoned, Cutoff: h.sweep.StaleAfter.String()})
}

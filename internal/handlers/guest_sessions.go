package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
)

// GuestSessionHandlers issues anonymous guest credentials.
type GuestSessionHandlers struct {
	guests *auth.GuestTokens
}

// NewGuestSessionHandlers constructs guest session handlers.
func NewGuestSessionHandlers(guests *auth.GuestTokens) *GuestSessionHandlers {
	return &GuestSessionHandlers{guests: guests}
}

// Routes registers POST /guest-sessions.
func (h *GuestSessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/guest-sessions", h.issue)
}

type guestSessionPayload struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	GuestID   string `json:"guest_id"`
	ExpiresAt string `json:"expires_at"`
}

func (h *GuestSessionHandlers) issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.guests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("guest_sessions_disabled", "guest sessions are not configured", http.StatusServiceUnavailable))
		return
	}
	session, err := h.guests.Issue()
	if err != nil {
		requestctx.Logger(ctx).Error("issue guest session", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal", "failed to issue guest session", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusCreated, guestSessionPayload{
		Token:     session.Token,
		TokenType: "Bearer",
		GuestID:   session.GuestID,
		ExpiresAt: formatTime(session.ExpiresAt),
	})
}

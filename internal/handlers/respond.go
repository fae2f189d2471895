package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/pagination"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

const (
	maxBodySize           = 16 * 1024
	unavailableRetryAfter = 5 * time.Second
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSONBody reads at most maxBodySize bytes and rejects unknown fields. An empty body is only
// accepted when optional is set.
func decodeJSONBody(r *http.Request, dst any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return err
	}
	if len(data) > maxBodySize {
		return errBodyTooLarge
	}
	if strings.TrimSpace(string(data)) == "" {
		if optional {
			return nil
		}
		return errEmptyBody
	}
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

// pathUUID reads a route parameter that must be a UUID.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_id", fmt.Sprintf("%s must be a UUID", name), http.StatusBadRequest).WithField(name))
		return "", false
	}
	return id.String(), true
}

// requireActor returns the actor resolved by the auth middleware.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok || actor.ID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return domain.Actor{}, false
	}
	return actor, true
}

func parseListParams(w http.ResponseWriter, r *http.Request, opts pagination.Options) (pagination.Params, bool) {
	params, err := pagination.FromRequest(r, opts)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return pagination.Params{}, false
	}
	return params, true
}

// writeServiceError maps workflow error kinds to HTTP statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "operation not permitted for this actor", http.StatusForbidden))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidArgument):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_argument", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnavailable):
		requestctx.Logger(ctx).Warn("backing service unavailable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "service temporarily unavailable", http.StatusServiceUnavailable).WithRetryAfter(unavailableRetryAfter))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal", "failed to process request", http.StatusInternalServerError))
	}
}

// money renders a decimal as a bare JSON number.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

type pagePayload[T any] struct {
	Data       []T             `json:"data"`
	Pagination domain.PageInfo `json:"pagination"`
}

func buildPage[S any, T any](page domain.Page[S], convert func(S) T) pagePayload[T] {
	data := make([]T, 0, len(page.Data))
	for _, item := range page.Data {
		data = append(data, convert(item))
	}
	return pagePayload[T]{Data: data, Pagination: page.Pagination}
}

// optionalTime decodes a JSON field that may be absent, null, or an RFC 3339 timestamp.
type optionalTime struct {
	set   bool
	value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		o.value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.value = &t
	return nil
}

func (o optionalTime) toService() services.OptionalTime {
	return services.OptionalTime{Set: o.set, Value: o.value}
}

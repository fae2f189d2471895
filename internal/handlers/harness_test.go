package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/di"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/config"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/idempotency"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories/memory"
)

const testGuestSecret = "0123456789abcdef0123456789abcdef"

var testEpoch = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// Bearer tokens understood by the stub Firebase verifier.
const (
	memberAToken = "member-a-token"
	memberBToken = "member-b-token"
	sellerAToken = "seller-a-token"
	adminToken   = "admin-token"
)

type stubVerifier struct {
	tokens map[string]domain.Actor
}

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	actor, ok := s.tokens[idToken]
	if !ok {
		return nil, auth.ErrTokenInvalid
	}
	return &firebaseauth.Token{UID: actor.ID, Claims: map[string]any{"role": string(actor.Role)}}, nil
}

type testAPI struct {
	router   http.Handler
	reg      *memory.Registry
	guests   *auth.GuestTokens
	internal *InternalHandlers
	now      time.Time
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{reg: memory.NewRegistry(), now: testEpoch}
	seedTestCatalog(api.reg)

	container, err := di.NewContainer(config.Config{Environment: "test"}, api.reg,
		di.WithClock(func() time.Time { return api.now }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	guests, err := auth.NewGuestTokens(testGuestSecret)
	require.NoError(t, err)
	api.guests = guests
	authn := auth.NewAuthenticator(stubVerifier{tokens: map[string]domain.Actor{
		memberAToken: {ID: "member-a", Role: domain.RoleMember},
		memberBToken: {ID: "member-b", Role: domain.RoleMember},
		sellerAToken: {ID: "seller-a", Role: domain.RoleSeller},
		adminToken:   {ID: "admin-1", Role: domain.RoleAdmin},
	}}, auth.WithGuestTokens(guests))

	svc := container.Services
	carts := NewCartHandlers(svc.Carts)
	orders := NewOrderHandlers(svc.Orders, svc.Catalog)
	payments := NewPaymentHandlers(svc.Payments)
	deliveries := NewDeliveryHandlers(svc.Deliveries)
	api.internal = NewInternalHandlers(svc.Carts, SweepSettings{StaleAfter: time.Hour, BatchSize: 10})

	api.router = NewRouter(Mounts{
		Health:         NewHealthHandlers(WithHealthSystemService(svc.System)),
		Public:         NewGuestSessionHandlers(guests).Routes,
		Carts:          carts.Routes,
		Orders:         []RouteRegistrar{orders.Routes, payments.Routes, deliveries.Routes},
		Internal:       api.internal.Routes,
		ActorGuards:    []Middleware{authn.RequireActor(), idempotency.Middleware(idempotency.NewMemoryStore())},
		InternalGuards: []Middleware{auth.NewOIDCValidator(nil, "", nil).RequireOIDC},
	})
	return api
}

func seedTestCatalog(reg *memory.Registry) {
	reg.SeedChannel(domain.Channel{ID: "ch-main", Code: "MAIN", Name: "Main store", Active: true})
	reg.SeedSale(domain.Sale{ID: "sale-a", SellerID: "seller-a", ChannelID: "ch-main", Title: "Desk lamp", SnapshotID: "snap-a", Active: true})
	reg.SeedSnapshot(domain.SaleSnapshot{ID: "snap-a", SaleID: "sale-a", Title: "Desk lamp", UnitPrice: decimal.NewFromInt(12000), CreatedAt: testEpoch})
	reg.SeedOptionGroup(domain.OptionGroup{ID: "grp-color", Name: "Colour", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-red", GroupID: "grp-color", Name: "Red", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-blue", GroupID: "grp-color", Name: "Blue", Active: true})
}

type requestOption func(*http.Request)

func withIdempotencyKey(key string) requestOption {
	return func(r *http.Request) { r.Header.Set("Idempotency-Key", key) }
}

// do sends a request through the router. Mutating requests get a fresh idempotency key unless one is given.
func (a *testAPI) do(t *testing.T, method, path, token string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) guestToken(t *testing.T) (string, string) {
	t.Helper()
	session, err := a.guests.Issue()
	require.NoError(t, err)
	return session.Token, session.GuestID
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decodeJSON(t, rr)["error"].(string)
	return code
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equalf(t, status, rr.Code, "body: %s", strings.TrimSpace(rr.Body.String()))
}

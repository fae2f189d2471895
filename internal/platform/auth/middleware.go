package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/samber/lo"
	"go.uber.org/zap"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
)

const (
	roleClaim     = "role"
	emailClaim    = "email"
	verifyTimeout = 5 * time.Second
	maxLoggedID   = 64
)

var (
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
	// ErrRoleInvalid reports a role claim naming none of member, seller or admin.
	ErrRoleInvalid = errors.New("auth: role claim invalid")
	// ErrVerifierUnavailable reports a Firebase token arriving while no verifier is configured.
	ErrVerifierUnavailable = errors.New("auth: verifier unavailable")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns a bearer credential into the request actor. Tokens minted by GuestTokens are
// guest sessions and anything else is a Firebase ID token.
type Authenticator struct {
	firebase TokenVerifier
	guests   *GuestTokens

	roleClaim   string
	defaultRole domain.Role
	timeout     time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithGuestTokens accepts guest sessions issued by guests.
func WithGuestTokens(guests *GuestTokens) Option {
	return func(a *Authenticator) { a.guests = guests }
}

// WithRoleClaim reads the role from a custom claim other than "role".
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole is the role of Firebase users without a role claim. Guest is not accepted.
func WithFallbackRole(role domain.Role) Option {
	return func(a *Authenticator) {
		if role = parseRole(string(role)); role != "" {
			a.defaultRole = role
		}
	}
}

func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator builds an Authenticator. A nil firebase verifier limits it to guest sessions.
func NewAuthenticator(firebase TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		firebase:    firebase,
		roleClaim:   roleClaim,
		defaultRole: domain.RoleMember,
		timeout:     verifyTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RequireActor resolves the bearer token and attaches the identity and an actor-tagged logger to the
// request. With roles given, the actor must hold one of them.
func (a *Authenticator) RequireActor(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			identity, err := a.Resolve(ctx, token)
			if err != nil {
				requestctx.Logger(ctx).Info("bearer rejected", zap.Error(err))
				writeRejection(ctx, w, err)
				return
			}
			if len(roles) > 0 && !identity.HasRole(roles...) {
				respondAuthError(ctx, w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			logger := requestctx.Logger(ctx).With(
				zap.String("actor_id", truncate(identity.Actor.ID, maxLoggedID)),
				zap.String("actor_role", string(identity.Actor.Role)),
			)
			ctx = requestctx.WithLogger(WithIdentity(ctx, identity), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Resolve verifies token and returns the identity behind it.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*Identity, error) {
	if a == nil {
		return nil, ErrVerifierUnavailable
	}
	if a.guests.Owns(token) {
		actor, expiresAt, err := a.guests.Verify(token)
		if err != nil {
			return nil, err
		}
		return &Identity{Actor: actor, Source: SourceGuest, ExpiresAt: expiresAt}, nil
	}
	if a.firebase == nil {
		return nil, ErrVerifierUnavailable
	}

	verifyCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	decoded, err := a.firebase.VerifyIDToken(verifyCtx, token)
	if err != nil {
		return nil, err
	}

	role := a.defaultRole
	if raw, ok := decoded.Claims[a.roleClaim]; ok {
		if role = highestRole(raw); role == "" {
			return nil, ErrRoleInvalid
		}
	}
	identity := &Identity{
		Actor:  domain.Actor{ID: decoded.UID, Role: role},
		Source: SourceFirebase,
	}
	if email, ok := decoded.Claims[emailClaim].(string); ok {
		identity.Email = strings.TrimSpace(email)
	}
	if decoded.Expires > 0 {
		identity.ExpiresAt = time.Unix(decoded.Expires, 0).UTC()
	}
	return identity, nil
}

// firebaseRoles ranks the roles a Firebase claim may carry.
var firebaseRoles = []domain.Role{domain.RoleMember, domain.RoleSeller, domain.RoleAdmin}

// highestRole accepts a role or a list of roles and returns the most privileged recognised one.
func highestRole(raw any) domain.Role {
	var values []string
	switch v := raw.(type) {
	case string:
		values = []string{v}
	case []string:
		values = v
	case []any:
		values = lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	}
	best := -1
	for _, value := range values {
		best = max(best, lo.IndexOf(firebaseRoles, parseRole(value)))
	}
	if best < 0 {
		return ""
	}
	return firebaseRoles[best]
}

// parseRole maps a claim value to a Firebase role, or "" for anything else including guest.
func parseRole(value string) domain.Role {
	role := domain.Role(strings.ToLower(strings.TrimSpace(value)))
	if !lo.Contains(firebaseRoles, role) {
		return ""
	}
	return role
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

// rejection maps a verification failure to the response sent for it. The first match wins.
type rejection struct {
	match   func(error) bool
	status  int
	code    string
	message string
}

func errIs(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

var rejections = []rejection{
	{errIs(ErrGuestTokenExpired), http.StatusUnauthorized, "token_expired", "guest session expired"},
	{errIs(ErrGuestTokenInvalid), http.StatusUnauthorized, "invalid_token", "guest session token invalid"},
	{errIs(ErrRoleInvalid), http.StatusUnauthorized, "invalid_role", "role claim not recognised"},
	{errIs(ErrVerifierUnavailable), http.StatusServiceUnavailable, "verification_unavailable", "token verification unavailable"},
	{func(err error) bool { return errors.Is(err, ErrTokenExpired) || firebaseauth.IsIDTokenExpired(err) },
		http.StatusUnauthorized, "token_expired", "firebase id token expired"},
	{func(err error) bool { return firebaseauth.IsIDTokenRevoked(err) || firebaseauth.IsUserDisabled(err) },
		http.StatusUnauthorized, "token_revoked", "firebase session revoked"},
}

func writeRejection(ctx context.Context, w http.ResponseWriter, err error) {
	for _, rj := range rejections {
		if rj.match(err) {
			respondAuthError(ctx, w, rj.status, rj.code, rj.message)
			return
		}
	}
	respondAuthError(ctx, w, http.StatusUnauthorized, "invalid_token", "firebase id token invalid")
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
)

// ServiceIdentity is the scheduler principal behind an internal call.
type ServiceIdentity struct {
	Subject string
	Email   string
	Issuer  string
}

type serviceIdentityKey struct{}

// ServiceIdentityFromContext returns the identity RequireOIDC attached.
func ServiceIdentityFromContext(ctx context.Context) (ServiceIdentity, bool) {
	identity, ok := ctx.Value(serviceIdentityKey{}).(ServiceIdentity)
	return identity, ok
}

// schedulerClaims is the payload of a Google-signed OIDC token.
type schedulerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// OIDCValidator admits internal calls carrying an RS256 OIDC token minted for one audience.
type OIDCValidator struct {
	keys     *JWKSCache
	audience string
	issuers  []string
	parser   *jwt.Parser
}

// NewOIDCValidator accepts tokens for audience signed by any of issuers. An empty issuer list accepts
// every issuer the key set vouches for.
func NewOIDCValidator(keys *JWKSCache, audience string, issuers []string) *OIDCValidator {
	return &OIDCValidator{
		keys:     keys,
		audience: strings.TrimSpace(audience),
		issuers:  lo.Compact(lo.Map(issuers, func(s string, _ int) string { return strings.TrimSpace(s) })),
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
	}
}

// verify parses token and checks issuer and audience.
func (v *OIDCValidator) verify(ctx context.Context, token string) (ServiceIdentity, error) {
	var claims schedulerClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("auth: token has no kid")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return ServiceIdentity{}, err
	}
	if len(v.issuers) > 0 && !slices.Contains(v.issuers, claims.Issuer) {
		return ServiceIdentity{}, errors.New("auth: issuer " + claims.Issuer + " not trusted")
	}
	if !claims.VerifyAudience(v.audience, true) {
		return ServiceIdentity{}, errors.New("auth: audience mismatch")
	}
	return ServiceIdentity{Subject: claims.Subject, Email: claims.Email, Issuer: claims.Issuer}, nil
}

// RequireOIDC rejects requests without a valid scheduler token. It never attaches an actor.
func (v *OIDCValidator) RequireOIDC(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if v == nil || v.keys == nil || v.audience == "" {
			respondAuthError(ctx, w, http.StatusServiceUnavailable, "verification_unavailable", "oidc verification not configured")
			return
		}
		token, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "oidc token missing")
			return
		}

		identity, err := v.verify(ctx, token)
		switch {
		case errors.Is(err, ErrJWKSFetchFailed):
			requestctx.Logger(ctx).Error("oidc keys unavailable", zap.Error(err))
			respondAuthError(ctx, w, http.StatusServiceUnavailable, "verification_unavailable", "oidc keys unavailable")
			return
		case err != nil:
			requestctx.Logger(ctx).Warn("oidc token rejected", zap.Error(err))
			respondAuthError(ctx, w, http.StatusUnauthorized, "invalid_token", "oidc token verification failed")
			return
		}

		logger := requestctx.Logger(ctx).With(zap.String("service_account", identity.Email))
		ctx = requestctx.WithLogger(context.WithValue(ctx, serviceIdentityKey{}, identity), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

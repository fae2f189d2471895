package auth

import (
	"context"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

// Source names the credential kind that produced an identity.
type Source string

const (
	// SourceFirebase marks identities verified from Firebase ID tokens.
	SourceFirebase Source = "firebase"
	// SourceGuest marks identities verified from guest session tokens.
	SourceGuest Source = "guest"
)

// Identity captures the verified principal attached to a request.
type Identity struct {
	Actor     domain.Actor
	Source    Source
	Email     string
	ExpiresAt time.Time
}

// HasRole reports whether the identity acts with one of the provided roles.
func (i *Identity) HasRole(roles ...domain.Role) bool {
	if i == nil {
		return false
	}
	for _, role := range roles {
		if i.Actor.Role == role {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ActorFromContext returns the actor of the authenticated request, or the zero actor.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	return identity.Actor, true
}

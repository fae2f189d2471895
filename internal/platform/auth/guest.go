package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

const (
	defaultGuestIssuer   = "marketplace-workflow/guest"
	defaultGuestAudience = "guest-session"
	defaultGuestTTL      = 24 * time.Hour
	minGuestSecretBytes  = 32
)

var (
	// ErrGuestTokenInvalid reports a guest token that fails signature or claim checks.
	ErrGuestTokenInvalid = errors.New("auth: guest token invalid")
	// ErrGuestTokenExpired reports a guest token past its expiry.
	ErrGuestTokenExpired = errors.New("auth: guest token expired")
)

// GuestSession is a freshly issued guest credential.
type GuestSession struct {
	Token     string
	GuestID   string
	ExpiresAt time.Time
}

// GuestTokens issues and verifies HS256 guest session tokens. The subject claim carries the guest id.
type GuestTokens struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

// GuestOption customises GuestTokens.
type GuestOption func(*GuestTokens)

// WithGuestTTL overrides the token lifetime.
func WithGuestTTL(ttl time.Duration) GuestOption {
	return func(g *GuestTokens) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuestIssuer overrides the issuer claim.
func WithGuestIssuer(issuer string) GuestOption {
	return func(g *GuestTokens) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			g.issuer = issuer
		}
	}
}

// WithGuestClock injects a time source.
func WithGuestClock(now func() time.Time) GuestOption {
	return func(g *GuestTokens) {
		if now != nil {
			g.now = now
		}
	}
}

// WithGuestIDGenerator overrides guest id generation.
func WithGuestIDGenerator(fn func() string) GuestOption {
	return func(g *GuestTokens) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// NewGuestTokens constructs a guest token issuer. The secret must be at least 32 bytes.
func NewGuestTokens(secret string, opts ...GuestOption) (*GuestTokens, error) {
	if len(secret) < minGuestSecretBytes {
		return nil, fmt.Errorf("auth: guest token secret must be at least %d bytes", minGuestSecretBytes)
	}
	g := &GuestTokens{
		secret:   []byte(secret),
		issuer:   defaultGuestIssuer,
		audience: defaultGuestAudience,
		ttl:      defaultGuestTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Issue mints a token for a new guest id.
func (g *GuestTokens) Issue() (GuestSession, error) {
	now := g.now().UTC().Truncate(time.Second)
	guestID := g.newID()
	expiresAt := now.Add(g.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    g.issuer,
		Subject:   guestID,
		Audience:  jwt.ClaimStrings{g.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return GuestSession{}, fmt.Errorf("auth: sign guest token: %w", err)
	}
	return GuestSession{Token: signed, GuestID: guestID, ExpiresAt: expiresAt}, nil
}

// Owns reports whether the token claims to be issued by this issuer. The signature is not checked.
func (g *GuestTokens) Owns(token string) bool {
	if g == nil {
		return false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.Issuer == g.issuer
}

// Verify checks the token and returns the guest actor with the token expiry.
func (g *GuestTokens) Verify(token string) (domain.Actor, time.Time, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}); err != nil {
		return domain.Actor{}, time.Time{}, fmt.Errorf("%w: %v", ErrGuestTokenInvalid, err)
	}

	now := g.now()
	if !claims.VerifyIssuer(g.issuer, true) || !claims.VerifyAudience(g.audience, true) {
		return domain.Actor{}, time.Time{}, fmt.Errorf("%w: unexpected issuer or audience", ErrGuestTokenInvalid)
	}
	if !claims.VerifyNotBefore(now, false) {
		return domain.Actor{}, time.Time{}, fmt.Errorf("%w: token not yet valid", ErrGuestTokenInvalid)
	}
	if !claims.VerifyExpiresAt(now, true) {
		return domain.Actor{}, time.Time{}, ErrGuestTokenExpired
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return domain.Actor{}, time.Time{}, fmt.Errorf("%w: subject is not a uuid", ErrGuestTokenInvalid)
	}
	return domain.Actor{ID: claims.Subject, Role: domain.RoleGuest}, claims.ExpiresAt.Time, nil
}

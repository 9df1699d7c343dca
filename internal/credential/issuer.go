// Package credential mints and validates the bridge's own short-lived signed
// credential. This token, not the external provider's and not the
// field-service platform's, is what callers present to the protected
// connection endpoints.
package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "fieldlink/pkg/domain-errors"
)

// Grant is the outcome of a successful authentication: the asserted identity
// and the credential that vouches for it.
type Grant struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Claims carried by an issued credential. The subject is the asserted email;
// the jti is fresh per issuance so replay detection never collides.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs credentials with a symmetric key. HS256 is fixed by agreement
// with the credential's consumers.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the issuer's time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates a credential issuer.
func NewIssuer(signingKey, issuer, audience string, ttl time.Duration, opts ...Option) *Issuer {
	i := &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a credential for the asserted email.
func (i *Issuer) Issue(email string) (*Grant, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign credential")
	}
	return &Grant{Email: email, Token: signed}, nil
}

// Validate checks a presented credential and returns its claims. Expired and
// otherwise invalid tokens are both unauthorized; the distinction is not
// disclosed to the caller.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "credential expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	return claims, nil
}

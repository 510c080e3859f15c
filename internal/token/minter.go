package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Minter signs downstream tokens with the secret shared with the data
// API. Minting is a pure function of the verified claims and the clock;
// a missing secret is rejected at startup, not per request.
type Minter struct {
	secret      []byte
	audience    string
	ttl         time.Duration
	serviceRole string

	now func() time.Time
}

func NewMinter(secret []byte, audience string, ttl time.Duration, serviceRole string) *Minter {
	return &Minter{
		secret:      secret,
		audience:    audience,
		ttl:         ttl,
		serviceRole: serviceRole,
		now:         time.Now,
	}
}

// Mint builds a downstream token for the given verified claims. The
// role is the subject itself, which is how the data API's row-level
// security binds rows to their owner. No inbound claim other than
// subject and email makes it into the minted token.
func (m *Minter) Mint(c *Claims) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"role": c.Subject,
		"sub":  c.Subject,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
		"aud":  m.audience,
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	return m.sign(claims)
}

// MintService builds the privileged token used for role provisioning.
// The fixed service role cannot collide with a user role because user
// roles are always subject identifiers.
func (m *Minter) MintService() (string, error) {
	now := m.now()
	return m.sign(jwt.MapClaims{
		"role": m.serviceRole,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
		"aud":  m.audience,
	})
}

// Decode verifies a downstream-shaped token against the shared secret
// and returns its claims. Only HS256 is accepted, so an inbound
// (asymmetric) token presented here fails.
func (m *Minter) Decode(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(m.audience),
	).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, &InvalidTokenError{Err: err}
	}
	return claims, nil
}

func (m *Minter) sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing downstream token: %w", err)
	}
	return signed, nil
}

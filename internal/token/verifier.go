package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/localparts/tokenbridge/internal/jwks"
)

// inboundMethod is the only signature algorithm accepted on inbound
// tokens. It is fixed here rather than read from the token header so a
// caller cannot downgrade verification to a symmetric algorithm.
const inboundMethod = "RS256"

// InvalidTokenError covers every way an inbound token can fail
// verification: bad signature, expired, wrong audience, malformed
// structure. Callers translate it uniformly to 401.
type InvalidTokenError struct {
	Err error
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid token: %v", e.Err)
}

func (e *InvalidTokenError) Unwrap() error {
	return e.Err
}

// Claims is the only data that crosses the verification boundary.
type Claims struct {
	Subject string
	Email   string
}

// Verifier validates inbound identity-provider tokens against the
// cached verification keys.
type Verifier struct {
	keys     *jwks.Cache
	audience string
	parser   *jwt.Parser
}

func NewVerifier(keys *jwks.Cache, audience string) *Verifier {
	return &Verifier{
		keys:     keys,
		audience: audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{inboundMethod}),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify checks the token's signature, expiry and audience and extracts
// the subject and optional email claim. A signature failure triggers a
// single key refetch and retry, in case the provider rotated its keys
// since the cache was populated.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := v.parse(ctx, raw)
	if err != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		log.Ctx(ctx).Debug().Msg("signature check failed, refetching verification keys")
		v.keys.Invalidate()
		claims, err = v.parse(ctx, raw)
	}
	if err != nil {
		var fetchErr *jwks.FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &InvalidTokenError{Err: err}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, &InvalidTokenError{Err: errors.New("missing sub claim")}
	}

	out := &Claims{Subject: sub}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	return out, nil
}

func (v *Verifier) parse(ctx context.Context, raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key.Public, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

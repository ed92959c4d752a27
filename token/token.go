// Package token issues and verifies the signed, time-limited redemption
// tokens that authorize access to a provisioning request's result.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that is malformed, expired, or
// not signed with the issuer's secret.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTTL is the redemption window for a freshly issued token.
const DefaultTTL = time.Hour

// Claims is the verified payload of a redemption token. Possession of a
// valid token referencing an existing request is the sole authorization for
// redemption; there is no further identity check.
type Claims struct {
	RequestID string
	Subject   string
}

type tokenClaims struct {
	RequestID string `json:"request_id"`
	Subject   string `json:"subject"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies redemption tokens with an HMAC-SHA256 secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer with the given signing secret.
func NewIssuer(secret []byte, opts ...IssuerOption) *Issuer {
	i := &Issuer{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue returns a signed token for the given request, valid for ttl.
func (i *Issuer) Issue(requestID, subject string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := tokenClaims{
		RequestID: requestID,
		Subject:   subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidToken)
	}
	if claims.RequestID == "" {
		return nil, fmt.Errorf("missing request id: %w", ErrInvalidToken)
	}
	return &Claims{RequestID: claims.RequestID, Subject: claims.Subject}, nil
}

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload. The identity is taken from User, falling back
// to the standard subject claim.
type Claims struct {
	User string `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now}
}

// Verify validates the token signature and expiry and returns its identity.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrUnauthenticated
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	identity := strings.TrimSpace(claims.User)
	if identity == "" {
		identity = strings.TrimSpace(claims.Subject)
	}
	if identity == "" {
		return "", fmt.Errorf("%w: token carries no identity", ErrUnauthenticated)
	}
	return identity, nil
}

// Sign issues a token for identity valid for ttl.
func (v *JWTVerifier) Sign(identity string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		User: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

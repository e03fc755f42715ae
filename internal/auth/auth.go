// Package auth resolves connection credentials to verified identities.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Auth errors.
var (
	// ErrUnauthenticated is returned when a credential is missing or rejected.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrGateUnavailable is returned when the verifier cannot reach a verdict.
	ErrGateUnavailable = errors.New("session gate unavailable")
)

// Verifier turns a credential into the identity it was issued for.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// CredentialFromRequest extracts a bearer credential from the Authorization
// header, falling back to the "token" query parameter used by browser
// WebSocket clients.
func CredentialFromRequest(r *http.Request) string {
	if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// BearerToken parses an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret")
	token, err := v.Sign("alice", time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestJWTSubjectFallback(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	identity, err := NewJWTVerifier("secret").Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "bob", identity)
}

func TestJWTRejections(t *testing.T) {
	v := NewJWTVerifier("secret")

	expired := NewJWTVerifier("secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Sign("alice", time.Hour)
	require.NoError(t, err)

	otherKey, err := NewJWTVerifier("other").Sign("alice", time.Hour)
	require.NoError(t, err)

	noIdentity, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{User: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"expired":     expiredToken,
		"wrong key":   otherKey,
		"no identity": noIdentity,
		"alg none":    unsigned,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func introspectServer(t *testing.T, handler func(token string) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req introspectRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		status, body := handler(req.Token)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteVerifier(t *testing.T) {
	srv := introspectServer(t, func(token string) (int, any) {
		switch token {
		case "good":
			return http.StatusOK, introspectResponse{Active: true, UserID: "carol"}
		case "revoked":
			return http.StatusOK, introspectResponse{Active: false, UserID: "carol"}
		case "denied":
			return http.StatusUnauthorized, map[string]string{"error": "invalid"}
		default:
			return http.StatusInternalServerError, map[string]string{"error": "boom"}
		}
	})
	v := NewRemoteVerifier(srv.URL, time.Second)
	ctx := context.Background()

	identity, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "carol", identity)

	_, err = v.Verify(ctx, "revoked")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = v.Verify(ctx, "denied")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = v.Verify(ctx, "explode")
	assert.ErrorIs(t, err, ErrGateUnavailable)

	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRemoteVerifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemoteVerifier(url, 200*time.Millisecond).Verify(context.Background(), "good")
	assert.ErrorIs(t, err, ErrGateUnavailable)
}

func TestCredentialFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/chat?token=query-token", nil)
	assert.Equal(t, "query-token", CredentialFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", CredentialFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, CredentialFromRequest(r))
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("Bearer   ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

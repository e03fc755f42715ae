package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteVerifier asks an external session service to introspect credentials.
type RemoteVerifier struct {
	client *resty.Client
	url    string
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
}

// NewRemoteVerifier creates a verifier that POSTs credentials to url.
func NewRemoteVerifier(url string, timeout time.Duration) *RemoteVerifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &RemoteVerifier{client: client, url: url}
}

// Verify returns the identity the session service reports for credential.
func (v *RemoteVerifier) Verify(ctx context.Context, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrUnauthenticated
	}

	var out introspectResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(introspectRequest{Token: credential}).
		SetResult(&out).
		Post(v.url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGateUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "", ErrUnauthenticated
	case resp.IsError():
		return "", fmt.Errorf("%w: status %d", ErrGateUnavailable, code)
	}

	identity := strings.TrimSpace(out.UserID)
	if !out.Active || identity == "" {
		return "", ErrUnauthenticated
	}
	return identity, nil
}

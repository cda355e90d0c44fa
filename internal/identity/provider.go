package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"support-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Provider resolves a bearer token to an authenticated identity. The actual
// account store lives in the surrounding storefront app; this service only
// consumes it through this narrow lookup.
type Provider interface {
	Lookup(ctx context.Context, token string) (models.Identity, error)
}

// HTTPProvider resolves identities against the storefront's auth endpoint.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider constructs the wrapper.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup verifies the token and returns the user's id, display name, avatar
// and role. A 401/404 from the auth endpoint maps to ErrInvalidToken.
func (p *HTTPProvider) Lookup(ctx context.Context, token string) (models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/internal/auth/me", nil)
	if err != nil {
		return models.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Identity{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusNotFound:
		return models.Identity{}, ErrInvalidToken
	default:
		return models.Identity{}, fmt.Errorf("auth lookup status %d", resp.StatusCode)
	}

	var payload struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.Identity{}, err
	}
	if payload.ID == 0 {
		return models.Identity{}, ErrInvalidToken
	}

	role := payload.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Identity{
		Token:  fmt.Sprintf("user:%d", payload.ID),
		Name:   payload.Name,
		Avatar: payload.Avatar,
		Role:   role,
	}, nil
}

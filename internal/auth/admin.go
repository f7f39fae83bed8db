package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// AdminConfig holds admin credentials for /admin/login.
type AdminConfig struct {
	// LoginURL is the full URL of the login endpoint.
	LoginURL string
	Email    string
	Password string

	// Token is an admin JWT obtained earlier. It is used until it expires.
	Token     string
	ExpiresAt time.Time

	HTTPClient *http.Client
}

// AdminTokenManager logs into the Strapi admin panel and uses the returned
// JWT as bearer token. A new login happens when the token expires or the
// server rejects it.
type AdminTokenManager struct {
	config     *AdminConfig
	httpClient *retryablehttp.Client
	store      *TokenStore
	mutex      sync.Mutex
}

// NewAdminTokenManager creates an admin token manager.
func NewAdminTokenManager(config *AdminConfig) *AdminTokenManager {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2

	if config.HTTPClient != nil {
		client.HTTPClient = config.HTTPClient
	}

	manager := &AdminTokenManager{
		config:     config,
		httpClient: client,
		store:      NewTokenStore(),
	}

	if config.Token != "" {
		expiresAt := config.ExpiresAt
		if expiresAt.IsZero() {
			expiresAt = jwtExpiry(config.Token)
		}

		manager.store.Set(&Token{AccessToken: config.Token, ExpiresAt: expiresAt})
	}

	return manager
}

// GetToken returns a valid admin JWT, logging in if needed.
func (m *AdminTokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken logs in again.
func (m *AdminTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.config.Email == "" || m.config.Password == "" {
		return ErrCredentialsRequired
	}

	payload, err := json.Marshal(map[string]string{
		"email":    m.config.Email,
		"password": m.config.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, m.config.LoginURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrLoginFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var loginResponse struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}

	err = json.Unmarshal(body, &loginResponse)
	if err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	if loginResponse.Data.Token == "" {
		return ErrNoTokenInResponse
	}

	m.store.Set(&Token{
		AccessToken: loginResponse.Data.Token,
		ExpiresAt:   jwtExpiry(loginResponse.Data.Token),
	})

	return nil
}

// SetToken manually sets the admin JWT.
func (m *AdminTokenManager) SetToken(token string, expiresAt time.Time) {
	if expiresAt.IsZero() {
		expiresAt = jwtExpiry(token)
	}

	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// CurrentToken returns the stored token without logging in.
func (m *AdminTokenManager) CurrentToken() *Token {
	return m.store.Get()
}

// jwtExpiry reads the exp claim of a JWT without verifying it. Unreadable
// tokens get a zero expiry and are refreshed only after a 401.
func jwtExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}

	err = json.Unmarshal(payload, &claims)
	if err != nil || claims.Exp == 0 {
		return time.Time{}
	}

	return time.Unix(claims.Exp, 0)
}

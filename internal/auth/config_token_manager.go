package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister defines the interface for persisting config changes.
type ConfigPersister interface {
	UpdateAdminToken(target, token string, expiresAt time.Time) error
}

// ConfigTokenManager wraps AdminTokenManager and persists every new admin JWT
// so that the next CLI run can reuse it instead of logging in again.
type ConfigTokenManager struct {
	admin           *AdminTokenManager
	configPersister ConfigPersister
	target          string
	mutex           sync.Mutex
	lastPersisted   string

	// OnPersistError is called when saving a token fails. The request itself
	// still succeeds.
	OnPersistError func(error)
}

// NewConfigTokenManager creates a new config-persisting token manager.
func NewConfigTokenManager(config *AdminConfig, configPersister ConfigPersister, target string) *ConfigTokenManager {
	return &ConfigTokenManager{
		admin:           NewAdminTokenManager(config),
		configPersister: configPersister,
		target:          target,
		lastPersisted:   config.Token,
	}
}

// GetToken returns a valid admin JWT, logging in and persisting if necessary.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.admin.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged()

	return token, nil
}

// RefreshToken forces a new login.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	err := m.admin.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged()

	return nil
}

// SetToken manually sets the admin JWT.
func (m *ConfigTokenManager) SetToken(token string, expiresAt time.Time) {
	m.admin.SetToken(token, expiresAt)
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *ConfigTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	token := m.admin.CurrentToken()
	if token == nil {
		return true
	}

	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

func (m *ConfigTokenManager) persistIfChanged() {
	token := m.admin.CurrentToken()
	if token == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if token.AccessToken == m.lastPersisted {
		return
	}

	err := m.persistToken(token)
	if err != nil {
		if m.OnPersistError != nil {
			m.OnPersistError(err)
		}

		return
	}

	m.lastPersisted = token.AccessToken
}

// persistToken saves the token to config.
func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateAdminToken(m.target, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update admin token: %w", err)
	}

	return nil
}

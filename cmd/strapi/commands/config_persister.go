package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateAdminToken stores a fresh admin JWT for the named target.
func (p *ConfigPersister) UpdateAdminToken(target, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	targetConfig, exists := config.Targets[target]
	if !exists {
		return fmt.Errorf("%w: '%s'", constants.ErrTargetNotFound, target)
	}

	targetConfig.AdminToken = token
	targetConfig.AdminTokenExpiresAt = nil

	if !expiresAt.IsZero() {
		targetConfig.AdminTokenExpiresAt = &expiresAt
	}

	now := time.Now()
	targetConfig.LastLogin = &now

	return saveConfigStruct(config)
}

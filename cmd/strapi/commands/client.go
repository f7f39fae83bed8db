package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/fivetwenty-io/strapi-client/internal/auth"
	"github.com/fivetwenty-io/strapi-client/internal/client"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/pkg/schema"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
)

// session is a connected client plus the schema cache built for it.
type session struct {
	client  strapi.Client
	schemas *schema.Cache
	logger  *logging.Logger
	target  string
	close   func()
}

// Close releases the schema cache backend.
func (s *session) Close() {
	s.close()
}

// newLogger returns the CLI logger: warnings by default, debug with --verbose.
func newLogger() *logging.Logger {
	level := "warn"
	if viper.GetBool("verbose") {
		level = "debug"
	}

	return logging.NewConsole(constants.ServiceName, level, os.Stderr)
}

// newSession builds a client for the selected target. The --url and --token
// flags override the target and work without any configuration file.
func newSession() (*session, error) {
	config := loadConfig()

	name, target, err := resolveSessionTarget(config)
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	strapiConfig := buildStrapiConfig(config, target, logger)

	if strapiConfig.BaseURL == "" {
		return nil, fmt.Errorf("%w, use 'strapi config set url <url>' or --url", constants.ErrNoBaseURLConfigured)
	}

	var c *client.Client

	tokenManager := createTokenManager(strapiConfig, target, name, logger)
	if tokenManager != nil {
		c, err = client.NewWithTokenManager(strapiConfig, tokenManager)
	} else {
		c, err = client.New(strapiConfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create Strapi client: %w", err)
	}

	schemas, closer, err := strapiclient.NewSchemaCache(c, strapiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}

	return &session{client: c, schemas: schemas, logger: logger, target: name, close: closer}, nil
}

// resolveSessionTarget returns the configured target, or an empty one when
// --url is given and nothing is configured.
func resolveSessionTarget(config *Config) (string, *TargetConfig, error) {
	name, target, err := resolveTarget(config, viper.GetString("target"))
	if err == nil {
		return name, target, nil
	}

	if viper.GetString("url") != "" && viper.GetString("target") == "" {
		return "", &TargetConfig{}, nil
	}

	return "", nil, err
}

func buildStrapiConfig(config *Config, target *TargetConfig, logger *logging.Logger) *strapi.Config {
	strapiConfig := &strapi.Config{
		BaseURL:       target.URL,
		APIToken:      target.APIToken,
		AdminEmail:    target.AdminEmail,
		AdminPassword: viper.GetString("admin_password"),
		APIVersion:    strapi.APIVersion(target.APIVersion),
		Timeout:       constants.DefaultHTTPTimeout,
		RetryMax:      constants.DefaultRetryMax,
		RetryWaitMin:  constants.DefaultRetryWaitMin,
		RetryWaitMax:  constants.DefaultRetryWaitMax,
		Debug:         viper.GetBool("verbose"),
		Logger:        logger,
		SchemaCache:   buildCacheConfig(config),

		RateLimitPerSecond: viper.GetFloat64("rate_limit"),
	}

	if value := viper.GetString("url"); value != "" {
		strapiConfig.BaseURL = value
	}

	if value := viper.GetString("token"); value != "" {
		strapiConfig.APIToken = value
	}

	if value := viper.GetString("api_version"); value != "" {
		strapiConfig.APIVersion = strapi.APIVersion(value)
	}

	return strapiConfig
}

func buildCacheConfig(config *Config) *strapi.CacheConfig {
	switch strapi.CacheType(config.SchemaCache) {
	case strapi.CacheTypeNATS:
		cacheConfig := strapi.DefaultCacheConfig()
		cacheConfig.Type = strapi.CacheTypeNATS
		cacheConfig.NATS = &strapi.NATSKVConfig{
			URL:    config.NATSURL,
			Bucket: constants.DefaultNATSBucket,
			TTL:    constants.SchemaCacheTTL,
		}

		return cacheConfig
	case strapi.CacheTypeNone:
		return &strapi.CacheConfig{Type: strapi.CacheTypeNone}
	default:
		return nil
	}
}

// createTokenManager returns an admin token manager that persists the JWT to
// the target, or nil when a static API token is used.
func createTokenManager(strapiConfig *strapi.Config, target *TargetConfig, name string, logger *logging.Logger) auth.TokenManager {
	if strapiConfig.APIToken != "" || name == "" {
		return nil
	}

	if target.AdminEmail == "" && target.AdminToken == "" {
		return nil
	}

	adminConfig := &auth.AdminConfig{
		LoginURL: strings.TrimSuffix(client.NormalizeBaseURL(strapiConfig.BaseURL), "/") + constants.AdminLoginPath,
		Email:    target.AdminEmail,
		Password: strapiConfig.AdminPassword,
		Token:    target.AdminToken,
	}

	if target.AdminTokenExpiresAt != nil {
		adminConfig.ExpiresAt = *target.AdminTokenExpiresAt
	}

	manager := auth.NewConfigTokenManager(adminConfig, NewConfigPersister(), name)
	manager.OnPersistError = func(err error) {
		logger.Warn("failed to save admin token", map[string]interface{}{"error": err.Error()})
	}

	return manager
}

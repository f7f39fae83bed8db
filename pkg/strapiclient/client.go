package strapiclient

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/fivetwenty-io/strapi-client/internal/client"
	"github.com/fivetwenty-io/strapi-client/pkg/schema"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// EnvPrefix is the prefix of the environment variables read by NewFromEnv.
const EnvPrefix = "STRAPI"

// New creates a Strapi client from config.
func New(config *strapi.Config) (strapi.Client, error) {
	c, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// LoadConfigFromEnv reads STRAPI_* variables into a Config. Unset variables
// take the defaults declared on the Config fields.
func LoadConfigFromEnv() (*strapi.Config, error) {
	config := &strapi.Config{}

	err := envconfig.Process(EnvPrefix, config)
	if err != nil {
		return nil, fmt.Errorf("loading %s_* environment: %w", EnvPrefix, err)
	}

	return config, nil
}

// NewFromEnv creates a client configured from STRAPI_* variables, e.g.
// STRAPI_URL, STRAPI_API_TOKEN and STRAPI_API_VERSION.
func NewFromEnv() (strapi.Client, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return New(config)
}

// NewSchemaCache builds a schema cache for c. When config.SchemaCache names
// a backend, schemas are also persisted there. The returned closer releases
// the backend and is never nil.
func NewSchemaCache(c strapi.Client, config *strapi.Config) (*schema.Cache, func(), error) {
	noop := func() {}

	var opts []schema.Option

	if config != nil && config.Logger != nil {
		opts = append(opts, schema.WithLogger(config.Logger))
	}

	if config == nil || config.SchemaCache == nil || config.SchemaCache.Type == strapi.CacheTypeNone {
		return schema.New(c, opts...), noop, nil
	}

	store, err := strapi.NewCacheFromConfig(config.SchemaCache)
	if err != nil {
		return nil, noop, fmt.Errorf("creating schema store: %w", err)
	}

	closer := noop
	if natsStore, ok := store.(*strapi.NATSKVCache); ok {
		closer = natsStore.Close
	}

	return schema.New(c, append(opts, schema.WithStore(store))...), closer, nil
}

// IsConfigError reports whether err came from missing or invalid configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, strapi.ErrBaseURLRequired) || errors.Is(err, strapi.ErrConfigRequired)
}

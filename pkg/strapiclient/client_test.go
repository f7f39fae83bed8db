package strapiclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/strapi-client/internal/strapitest"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
)

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := strapiclient.New(&strapi.Config{})
	require.Error(t, err)
	assert.True(t, strapiclient.IsConfigError(err))

	client, err := strapiclient.New(&strapi.Config{BaseURL: "http://localhost:1337/api"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1337", client.BaseURL())
}

//nolint:paralleltest // t.Setenv is incompatible with t.Parallel
func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STRAPI_URL", "https://cms.example.com")
	t.Setenv("STRAPI_API_TOKEN", "env-token")
	t.Setenv("STRAPI_API_VERSION", "v5")
	t.Setenv("STRAPI_RETRY_MAX", "7")

	config, err := strapiclient.LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://cms.example.com", config.BaseURL)
	assert.Equal(t, "env-token", config.APIToken)
	assert.Equal(t, strapi.VersionV5, config.APIVersion)
	assert.Equal(t, 7, config.RetryMax)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 500*time.Millisecond, config.RetryWaitMin)
}

//nolint:paralleltest // t.Setenv is incompatible with t.Parallel
func TestNewFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("STRAPI_URL", "https://cms.example.com")
	t.Setenv("STRAPI_TIMEOUT", "soon")

	_, err := strapiclient.NewFromEnv()
	require.Error(t, err)
}

func TestNewSchemaCache(t *testing.T) {
	t.Parallel()

	server := strapitest.NewServer(t, strapi.VersionV5)
	server.AddContentType("api::article.article", "article", "articles", "collectionType",
		map[string]map[string]interface{}{"title": {"type": "string"}})

	config := &strapi.Config{
		BaseURL:     server.URL,
		SchemaCache: &strapi.CacheConfig{Type: strapi.CacheTypeMemory, MaxSize: 10},
	}

	client, err := strapiclient.New(config)
	require.NoError(t, err)

	cache, closeStore, err := strapiclient.NewSchemaCache(client, config)
	require.NoError(t, err)

	defer closeStore()

	got, err := cache.GetSchema(context.Background(), "api::article.article")
	require.NoError(t, err)
	assert.Equal(t, "articles", got.PluralName)
	assert.Equal(t, 1, cache.FetchCount())

	_, _, err = strapiclient.NewSchemaCache(client, &strapi.Config{
		SchemaCache: &strapi.CacheConfig{Type: strapi.CacheTypeNATS},
	})
	require.ErrorIs(t, err, strapi.ErrNATSConfigRequired)
}

package commands_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/strapi-client/cmd/strapi/commands"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/internal/strapitest"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/transfer"
)

// The tests in this file change global viper state and must not run in parallel.

//nolint:paralleltest,funlen // Test functions can be longer for comprehensive testing
func TestConfigCommands(t *testing.T) {
	path := useTempConfig(t)

	out, err := execute(t, "config", "set", "url", "http://cms.example.com/")
	require.NoError(t, err)
	assert.Contains(t, out, "http://cms.example.com/")

	config := readConfigFile(t, path)
	assert.Equal(t, "default", config.CurrentTarget)
	require.Contains(t, config.Targets, "default")
	assert.Equal(t, "http://cms.example.com", config.Targets["default"].URL)

	out, err = execute(t, "config", "set", "api_token", "abcdefghijkl")
	require.NoError(t, err)
	assert.Contains(t, out, "abcd...ijkl")
	assert.NotContains(t, out, "abcdefghijkl")
	assert.Equal(t, "abcdefghijkl", readConfigFile(t, path).Targets["default"].APIToken)

	_, err = execute(t, "config", "set", "schema_cache", "nats")
	require.NoError(t, err)
	assert.Equal(t, "nats", readConfigFile(t, path).SchemaCache)

	t.Run("rejects invalid values", func(t *testing.T) {
		_, err := execute(t, "config", "set", "bogus", "x")
		require.ErrorIs(t, err, constants.ErrUnknownConfigKey)

		_, err = execute(t, "config", "set", "output", "xml")
		require.ErrorIs(t, err, constants.ErrInvalidOutputFormat)

		_, err = execute(t, "config", "set", "schema_cache", "redis")
		require.ErrorIs(t, err, strapi.ErrUnsupportedCacheType)

		_, err = execute(t, "config", "use", "missing")
		require.ErrorIs(t, err, constants.ErrTargetNotFound)
	})

	t.Run("show masks tokens", func(t *testing.T) {
		out, err := execute(t, "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "http://cms.example.com")
		assert.Contains(t, out, "abcd...ijkl")
		assert.NotContains(t, out, "abcdefghijkl")
	})

	t.Run("named targets", func(t *testing.T) {
		viper.Set("target", "staging")
		defer viper.Set("target", "")

		_, err := execute(t, "config", "set", "url", "http://staging.example.com")
		require.NoError(t, err)

		config := readConfigFile(t, path)
		assert.Equal(t, "default", config.CurrentTarget, "current target is kept")
		assert.Equal(t, "http://staging.example.com", config.Targets["staging"].URL)

		_, err = execute(t, "config", "use", "staging")
		require.NoError(t, err)
		assert.Equal(t, "staging", readConfigFile(t, path).CurrentTarget)

		_, err = execute(t, "config", "unset", "url")
		require.NoError(t, err)

		config = readConfigFile(t, path)
		assert.NotContains(t, config.Targets, "staging")
		assert.Empty(t, config.CurrentTarget)
		assert.Contains(t, config.Targets, "default")
	})
}

//nolint:paralleltest // Modifies global viper state
func TestCommandsWithoutTarget(t *testing.T) {
	useTempConfig(t)

	_, err := execute(t, "entries", "list", "articles")
	require.ErrorIs(t, err, constants.ErrNoTargetsConfigured)

	viper.Set("target", "prod")

	_, err = execute(t, "entries", "list", "articles")
	require.ErrorIs(t, err, constants.ErrTargetNotFound)
}

//nolint:paralleltest // Modifies global viper state
func TestVersionCommand(t *testing.T) {
	useTempConfig(t)
	viper.Set("output", "json")

	out, err := execute(t, "version")
	require.NoError(t, err)

	var info commands.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, commands.VersionInfo{Version: "1.2.3", Commit: "abc123", Built: "2024-01-15"}, info)
}

//nolint:paralleltest,funlen // Test functions can be longer for comprehensive testing
func TestLoginCommandSavesTarget(t *testing.T) {
	server := blogServer(t, strapi.VersionV5)

	t.Run("api token", func(t *testing.T) {
		path := useTempConfig(t)
		connectTo(server)

		out, err := execute(t, "login")
		require.NoError(t, err)
		assert.Contains(t, out, "Logged in to")

		config := readConfigFile(t, path)
		assert.Equal(t, "127.0.0.1", config.CurrentTarget)
		require.Contains(t, config.Targets, "127.0.0.1")
		assert.Equal(t, server.URL, config.Targets["127.0.0.1"].URL)
		assert.Equal(t, "secret", config.Targets["127.0.0.1"].APIToken)
		assert.NotNil(t, config.Targets["127.0.0.1"].LastLogin)

		viper.Set("url", "")
		viper.Set("token", "")
		viper.Set("output", "json")

		out, err = execute(t, "content-types", "list")
		require.NoError(t, err, "the saved target is used")
		assert.Contains(t, out, articleUID)
	})

	t.Run("rejected token is not saved", func(t *testing.T) {
		path := useTempConfig(t)
		connectTo(server)
		viper.Set("token", "wrong")

		_, err := execute(t, "login")
		require.ErrorIs(t, err, strapi.ErrAuthentication)

		_, statErr := os.Stat(path)
		assert.ErrorIs(t, statErr, os.ErrNotExist)
	})

	t.Run("admin credentials", func(t *testing.T) {
		admin := blogServer(t, strapi.VersionV4)
		admin.Token = ""
		admin.AdminEmail = "admin@example.com"
		admin.AdminPassword = "hunter2"
		admin.AdminJWT = "admin-jwt"

		path := useTempConfig(t)
		viper.Set("url", admin.URL)
		viper.Set("target", "local")
		viper.Set("admin_password", "hunter2")

		_, err := execute(t, "login", "--admin-email", "admin@example.com")
		require.NoError(t, err)

		target := readConfigFile(t, path).Targets["local"]
		require.NotNil(t, target)
		assert.Equal(t, "admin@example.com", target.AdminEmail)
		assert.Equal(t, "admin-jwt", target.AdminToken)
		assert.Empty(t, target.APIToken)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "hunter2")

		viper.Set("url", "")
		viper.Set("admin_password", "")
		viper.Set("output", "json")

		out, err := execute(t, "entries", "list", "categories")
		require.NoError(t, err, "the saved admin JWT is reused without a password")
		assert.Contains(t, out, "Tech")
		assert.Equal(t, 1, admin.CountRequests("POST", "/admin/login"))
	})
}

//nolint:paralleltest // Modifies global viper state
func TestContentTypeCommands(t *testing.T) {
	server := blogServer(t, strapi.VersionV5)

	useTempConfig(t)
	connectTo(server)
	viper.Set("output", "json")

	out, err := execute(t, "content-types", "list")
	require.NoError(t, err)

	var schemas []*strapi.ContentTypeSchema
	require.NoError(t, json.Unmarshal([]byte(out), &schemas))
	require.Len(t, schemas, 3)
	assert.Equal(t, []string{articleUID, categoryUID, homepageUID},
		[]string{schemas[0].UID, schemas[1].UID, schemas[2].UID})

	viper.Set("output", "table")

	out, err = execute(t, "content-types", "schema", articleUID)
	require.NoError(t, err)
	assert.Contains(t, out, "manyToOne -> "+categoryUID)
	assert.Contains(t, out, "component seo (shared.seo)")
	assert.Contains(t, out, server.URL+"/admin/content-manager/collection-types/"+articleUID)

	viper.Set("output", "json")

	out, err = execute(t, "content-types", "schema", articleUID)
	require.NoError(t, err)

	var view struct {
		UID string           `json:"uid"`
		SEO strapi.SEOConfig `json:"seo"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, articleUID, view.UID)
	assert.True(t, view.SEO.HasSEO)
	assert.Equal(t, "seo.metaTitle", view.SEO.Fields["title"])

	viper.Set("output", "table")

	out, err = execute(t, "components", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "shared.seo")

	_, err = execute(t, "content-types", "schema", "api::ghost.ghost")
	require.ErrorIs(t, err, strapi.ErrNotFound)
}

//nolint:paralleltest,funlen // Test functions can be longer for comprehensive testing
func TestEntriesCommands(t *testing.T) {
	server := blogServer(t, strapi.VersionV4)

	useTempConfig(t)
	connectTo(server)
	viper.Set("output", "json")

	list := func(t *testing.T, args ...string) []strapi.NormalizedEntity {
		t.Helper()

		out, err := execute(t, append([]string{"entries", "list", "articles"}, args...)...)
		require.NoError(t, err)

		var entries []strapi.NormalizedEntity
		require.NoError(t, json.Unmarshal([]byte(out), &entries))

		return entries
	}

	t.Run("list pages", func(t *testing.T) {
		assert.Len(t, list(t), 3)

		second := list(t, "--page", "2", "--page-size", "2")
		require.Len(t, second, 1)
		assert.Equal(t, "Third", second[0].Attributes["title"])

		assert.Len(t, list(t, "--all", "--page-size", "1"), 3)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := execute(t, "entries", "list", "articles", "--filter", "title")
		require.ErrorIs(t, err, commands.ErrInvalidFilter)
	})

	t.Run("get", func(t *testing.T) {
		out, err := execute(t, "entries", "get", "articles", "2")
		require.NoError(t, err)

		var entry strapi.NormalizedEntity
		require.NoError(t, json.Unmarshal([]byte(out), &entry))
		assert.Equal(t, 2, entry.ID)
		assert.Equal(t, "Second", entry.Attributes["title"])

		out, err = execute(t, "entries", "get", "homepage")
		require.NoError(t, err)
		assert.Contains(t, out, "Welcome")
	})

	t.Run("table output", func(t *testing.T) {
		viper.Set("output", "table")
		defer viper.Set("output", "json")

		out, err := execute(t, "entries", "list", "articles", "--page-size", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "First")
		assert.Contains(t, out, "Page 1 of 2 (3 total)")
	})

	t.Run("delete reports failures", func(t *testing.T) {
		out, err := execute(t, "entries", "delete", "categories", "1", "99")
		require.ErrorIs(t, err, commands.ErrBulkIncomplete)

		var result strapi.BulkResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 1, result.Failed)

		remaining := server.Entries("categories")
		require.Len(t, remaining, 1)
		assert.Equal(t, "Tech", remaining[0]["name"])
	})
}

//nolint:paralleltest,funlen // Test functions can be longer for comprehensive testing
func TestMediaCommands(t *testing.T) {
	server := strapitest.NewServer(t, strapi.VersionV5)
	server.Token = "secret"
	catID := server.AddMedia("cat.png", "image/png", []byte("meow"))

	useTempConfig(t)
	connectTo(server)
	viper.Set("output", "json")

	out, err := execute(t, "media", "list")
	require.NoError(t, err)

	var files []strapi.MediaFile
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "cat.png", files[0].Name)

	t.Run("download", func(t *testing.T) {
		dir := t.TempDir()

		_, err := execute(t, "media", "download", "1", "--dir", dir)
		require.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(dir, "1_cat.png"))
		require.NoError(t, err)
		assert.Equal(t, "meow", string(content))
	})

	t.Run("upload update delete", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), "dog.png")
		require.NoError(t, os.WriteFile(local, []byte("woof"), 0o600))

		out, err := execute(t, "media", "upload", local, "--alt", "A dog")
		require.NoError(t, err)

		var uploaded strapi.MediaFile
		require.NoError(t, json.Unmarshal([]byte(out), &uploaded))
		assert.Equal(t, "dog.png", uploaded.Name)
		assert.Equal(t, 2, server.MediaCount())

		out, err = execute(t, "media", "update", "2", "--caption", "Good dog")
		require.NoError(t, err)

		var updated strapi.MediaFile
		require.NoError(t, json.Unmarshal([]byte(out), &updated))
		assert.Equal(t, "Good dog", updated.Caption)

		_, err = execute(t, "media", "delete", "2")
		require.NoError(t, err)
		assert.Equal(t, 1, server.MediaCount())
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := execute(t, "media", "get", "abc")
		require.ErrorIs(t, err, strapi.ErrValidation)
	})

	assert.Equal(t, 1, catID)
}

//nolint:paralleltest,funlen // Test functions can be longer for comprehensive testing
func TestExportImportCommands(t *testing.T) {
	source := blogServer(t, strapi.VersionV4)
	source.AddContentType("api::empty.empty", "empty", "empties", "collectionType", nil)

	for _, name := range []string{"blog.json", "blog.jsonl"} {
		t.Run(name, func(t *testing.T) {
			useTempConfig(t)
			viper.Set("output", "json")

			file := filepath.Join(t.TempDir(), name)

			connectTo(source)

			out, err := execute(t, "export", "--content-types", categoryUID+","+articleUID, "--file", file)
			require.NoError(t, err)

			var summary commands.ExportSummary
			require.NoError(t, json.Unmarshal([]byte(out), &summary))
			assert.Equal(t, 5, summary.TotalEntities)
			assert.Equal(t, map[string]int{categoryUID: 2, articleUID: 3}, summary.Entities)
			assert.Equal(t, "v4", summary.Version)

			target := blogServer(t, strapi.VersionV5)
			before := target.WriteCount()
			connectTo(target)

			out, err = execute(t, "import", file, "--dry-run")
			require.NoError(t, err)
			assert.Contains(t, out, `"dry_run": true`)
			assert.Equal(t, before, target.WriteCount())

			out, err = execute(t, "import", file)
			require.NoError(t, err)

			var result transfer.ImportResult
			require.NoError(t, json.Unmarshal([]byte(out), &result))
			assert.Equal(t, 5, result.EntitiesImported)
			assert.True(t, result.Success)

			categories := target.Entries("categories")
			require.Len(t, categories, 4)

			articles := target.Entries("articles")
			require.Len(t, articles, 6)
			assert.Equal(t, "Second", articles[4]["title"])
			assert.EqualValues(t, 4, articles[4]["category"], "relation points at the imported Tech")
		})
	}

	t.Run("export all content types", func(t *testing.T) {
		useTempConfig(t)
		connectTo(source)
		viper.Set("output", "json")

		file := filepath.Join(t.TempDir(), "all.json")

		out, err := execute(t, "export", "--all", "--file", file)
		require.NoError(t, err)

		var summary commands.ExportSummary
		require.NoError(t, json.Unmarshal([]byte(out), &summary))
		assert.ElementsMatch(t, []string{articleUID, categoryUID, "api::empty.empty", homepageUID}, summary.ContentTypes)
		assert.Equal(t, 6, summary.TotalEntities)
	})

	t.Run("content types required", func(t *testing.T) {
		useTempConfig(t)
		connectTo(source)

		_, err := execute(t, "export", "--file", filepath.Join(t.TempDir(), "x.json"))
		require.ErrorIs(t, err, constants.ErrContentTypesRequired)

		_, err = execute(t, "export", "--content-types", categoryUID, "--file", "x.json", "--format", "xml")
		require.ErrorIs(t, err, constants.ErrInvalidExportFormat)
	})

	t.Run("failed entities fail the command", func(t *testing.T) {
		useTempConfig(t)
		connectTo(source)
		viper.Set("output", "json")

		file := filepath.Join(t.TempDir(), "blog.json")
		_, err := execute(t, "export", "--content-types", categoryUID+","+articleUID, "--file", file)
		require.NoError(t, err)

		target := strapitest.NewServer(t, strapi.VersionV5)
		target.Token = "secret"
		target.AddContentType(categoryUID, "category", "categories", "collectionType",
			map[string]map[string]interface{}{"name": {"type": "string"}})
		target.AddContentType(articleUID, "article", "articles", "collectionType",
			map[string]map[string]interface{}{
				"title":    {"type": "string"},
				"category": {"type": "relation", "relation": "manyToOne", "target": categoryUID},
			})
		target.FailCreates(func(endpoint string, data map[string]interface{}) bool {
			return data["name"] == "Tech"
		})
		connectTo(target)

		out, err := execute(t, "import", file, "--content-types", categoryUID)
		require.ErrorIs(t, err, constants.ErrImportFailed)

		var result transfer.ImportResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 1, result.EntitiesImported)
		assert.Equal(t, 1, result.EntitiesFailed)
		assert.Equal(t, 3, result.EntitiesSkipped)
	})
}

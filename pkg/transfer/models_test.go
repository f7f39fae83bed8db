package transfer_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/transfer"
)

func strPtr(value string) *string {
	return &value
}

func sampleExport() *transfer.ExportData {
	metadata := transfer.NewExportMetadata("http://source:1337", strapi.VersionV5,
		[]string{"api::category.category", "api::article.article"})

	data := transfer.NewExportData(metadata)
	data.Entities["api::category.category"] = []transfer.ExportedEntity{
		{
			ID:          1,
			DocumentID:  strPtr("cat-doc-1"),
			ContentType: "api::category.category",
			Data:        map[string]interface{}{"name": "News"},
			Relations:   map[string][]int{},
		},
		{
			ID:          2,
			DocumentID:  strPtr("cat-doc-2"),
			ContentType: "api::category.category",
			Data:        map[string]interface{}{"name": "Tech"},
			Relations:   map[string][]int{},
		},
	}
	data.Entities["api::article.article"] = []transfer.ExportedEntity{
		{
			ID:          10,
			ContentType: "api::article.article",
			Data: map[string]interface{}{
				"title": "Hello",
				"views": float64(3),
				"tags":  []interface{}{"a", "b"},
			},
			Relations: map[string][]int{"category": {2}, "related": {}},
		},
	}
	data.Media = []transfer.ExportedMediaFile{
		{ID: 4, URL: "/uploads/a.png", Name: "a.png", Mime: "image/png", Size: 2048, Hash: "a", LocalPath: "4_a.png"},
	}
	data.Metadata.TotalEntities = data.EntityCount()

	return data
}

func TestExportDataRoundTrip(t *testing.T) {
	t.Parallel()

	data := sampleExport()
	path := filepath.Join(t.TempDir(), "nested", "export.json")

	require.NoError(t, data.SaveToFile(path))

	loaded, err := transfer.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, loaded.EntityCount())
	assert.Equal(t, data.Metadata.ExportID, loaded.Metadata.ExportID)
	assert.Equal(t, "v5", loaded.Metadata.StrapiVersion)
	assert.Equal(t, data.Entities, loaded.Entities)
	assert.Equal(t, data.Media, loaded.Media)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var document map[string]json.RawMessage

	require.NoError(t, json.Unmarshal(raw, &document))
	assert.Contains(t, document, "metadata")
	assert.Contains(t, document, "entities")
	assert.Contains(t, document, "media")
	assert.Contains(t, string(raw), "\n  \"metadata\"")
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := transfer.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))

		var importErr *strapi.ImportExportError
		require.ErrorAs(t, err, &importErr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := transfer.LoadFromFile(path)

		var formatErr *strapi.FormatError
		require.ErrorAs(t, err, &formatErr)
	})

	t.Run("traversal in media manifest", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "evil.json")
		body := `{"metadata":{"version":"1.0.0"},"entities":{},"media":[{"id":1,"local_path":"../../etc/passwd"}]}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		_, err := transfer.LoadFromFile(path)
		require.ErrorIs(t, err, transfer.ErrPathTraversal)
	})
}

func TestValidateLocalPath(t *testing.T) {
	t.Parallel()

	rejected := []string{"../x", "/etc/passwd", `C:\x`, `..\x`, `\share\x`, "sub/../x", "c:x"}
	for _, path := range rejected {
		t.Run("rejects "+path, func(t *testing.T) {
			t.Parallel()

			_, err := transfer.NewExportedMediaFile(1, "/u", "x", "image/png", 1, "h", path)

			var formatErr *strapi.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.ErrorIs(t, err, transfer.ErrPathTraversal)
		})
	}

	accepted := []string{"x.jpg", "sub/x.jpg", "4_photo.final.png"}
	for _, path := range accepted {
		t.Run("accepts "+path, func(t *testing.T) {
			t.Parallel()

			media, err := transfer.NewExportedMediaFile(1, "/u", "x", "image/png", 1, "h", path)
			require.NoError(t, err)
			assert.Equal(t, path, media.LocalPath)
		})
	}
}

func TestExportMetadata(t *testing.T) {
	t.Parallel()

	first := transfer.NewExportMetadata("http://a", strapi.VersionUnknown, []string{"api::a.a"})
	second := transfer.NewExportMetadata("http://a", strapi.VersionV4, nil)

	assert.NotEqual(t, first.ExportID, second.ExportID)
	assert.Equal(t, "1.0.0", first.Version)
	assert.Equal(t, "auto", first.StrapiVersion)
	assert.Equal(t, "v4", second.StrapiVersion)
	assert.True(t, first.IsCompatible())

	first.Version = "2.0.0"
	assert.False(t, first.IsCompatible())
}

func TestContentTypeOrder(t *testing.T) {
	t.Parallel()

	data := sampleExport()
	data.Entities["api::zeta.zeta"] = nil
	data.Entities["api::beta.beta"] = nil

	assert.Equal(t, []string{
		"api::category.category",
		"api::article.article",
		"api::beta.beta",
		"api::zeta.zeta",
	}, data.ContentTypeOrder())
}

func TestImportResultMapping(t *testing.T) {
	t.Parallel()

	result := transfer.NewImportResult(false)

	_, ok := result.NewID("api::article.article", 1)
	assert.False(t, ok)

	result.MapID("api::article.article", 1, 41)

	newID, ok := result.NewID("api::article.article", 1)
	require.True(t, ok)
	assert.Equal(t, 41, newID)

	result.AddError("failed %s #%d", "api::article.article", 2)
	result.AddWarning("careful")
	assert.Equal(t, []string{"failed api::article.article #2"}, result.Errors)
	assert.Equal(t, []string{"careful"}, result.Warnings)
}

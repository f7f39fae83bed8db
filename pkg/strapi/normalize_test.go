package strapi_test

import (
	"encoding/json"
	"testing"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &out))

	return out
}

func TestDetectVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected strapi.APIVersion
	}{
		{"v4 collection", `{"data":[{"id":1,"attributes":{"title":"A"}}]}`, strapi.VersionV4},
		{"v5 collection", `{"data":[{"id":1,"documentId":"abc","title":"A"}]}`, strapi.VersionV5},
		{"v4 single", `{"data":{"id":1,"attributes":{}}}`, strapi.VersionV4},
		{"v5 single", `{"data":{"id":1,"documentId":"abc"}}`, strapi.VersionV5},
		{"empty list", `{"data":[]}`, strapi.VersionUnknown},
		{"null data", `{"data":null}`, strapi.VersionUnknown},
		{"no markers", `{"data":[{"id":1,"title":"A"}]}`, strapi.VersionUnknown},
		{"no data", `{"meta":{}}`, strapi.VersionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, strapi.DetectVersion(decode(t, tt.body)))
		})
	}
}

func TestNormalizeEntity_V4(t *testing.T) {
	t.Parallel()

	raw := decode(t, `{
		"id": 7,
		"attributes": {
			"title": "Hello",
			"createdAt": "2024-01-02T03:04:05.000Z",
			"publishedAt": null,
			"locale": "en"
		}
	}`)

	entity, err := strapi.NormalizeEntity(raw, strapi.VersionV4)
	require.NoError(t, err)

	assert.Equal(t, 7, entity.ID)
	assert.Nil(t, entity.DocumentID)
	require.NotNil(t, entity.CreatedAt)
	assert.Equal(t, 2024, entity.CreatedAt.Year())
	assert.Nil(t, entity.PublishedAt)
	require.NotNil(t, entity.Locale)
	assert.Equal(t, "en", *entity.Locale)
	assert.Equal(t, map[string]interface{}{"title": "Hello"}, entity.Attributes)
	assert.Equal(t, "7", entity.Identifier())
}

func TestNormalizeEntity_V5(t *testing.T) {
	t.Parallel()

	raw := decode(t, `{"id": 3, "documentId": "doc-3", "title": "Flat", "updatedAt": "2024-05-01T00:00:00Z"}`)

	entity, err := strapi.NormalizeEntity(raw, strapi.VersionV5)
	require.NoError(t, err)

	assert.Equal(t, 3, entity.ID)
	require.NotNil(t, entity.DocumentID)
	assert.Equal(t, "doc-3", *entity.DocumentID)
	require.NotNil(t, entity.UpdatedAt)
	assert.Equal(t, map[string]interface{}{"title": "Flat"}, entity.Attributes)
	assert.Equal(t, "doc-3", entity.Identifier())
}

func TestNormalizeEntity_V5MissingDocumentID(t *testing.T) {
	t.Parallel()

	_, err := strapi.NormalizeEntity(decode(t, `{"id": 3, "title": "x"}`), strapi.VersionV5)
	require.Error(t, err)
	require.ErrorIs(t, err, strapi.ErrMissingDocument)

	var formatErr *strapi.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestNormalizeEntity_MissingID(t *testing.T) {
	t.Parallel()

	_, err := strapi.NormalizeEntity(decode(t, `{"attributes": {}}`), strapi.VersionV4)
	require.ErrorIs(t, err, strapi.ErrMissingID)
}

func TestNormalizeEntity_UnknownParsesAsV4(t *testing.T) {
	t.Parallel()

	entity, err := strapi.NormalizeEntity(decode(t, `{"id": 1, "title": "flat"}`), strapi.VersionUnknown)
	require.NoError(t, err)
	assert.Equal(t, "flat", entity.Attributes["title"])
}

func TestNormalizeCollection(t *testing.T) {
	t.Parallel()

	body := decode(t, `{
		"data": [
			{"id": 1, "attributes": {"title": "A"}},
			{"id": 2, "attributes": {"title": "B"}}
		],
		"meta": {"pagination": {"page": 1, "pageSize": 2, "pageCount": 3, "total": 5}}
	}`)

	response, err := strapi.NormalizeCollection(body, strapi.VersionV4)
	require.NoError(t, err)

	require.Len(t, response.Data, 2)
	assert.Equal(t, "B", response.Data[1].Attributes["title"])
	require.NotNil(t, response.Meta.Pagination)
	assert.Equal(t, 3, response.Meta.Pagination.PageCount)
	assert.Equal(t, 5, response.Meta.Pagination.Total)
}

func TestNormalizeCollection_OffsetPagination(t *testing.T) {
	t.Parallel()

	body := decode(t, `{"data": [], "meta": {"pagination": {"start": 0, "limit": 10, "total": 25}}}`)

	response, err := strapi.NormalizeCollection(body, strapi.VersionV5)
	require.NoError(t, err)

	assert.Empty(t, response.Data)
	require.NotNil(t, response.Meta.Pagination)
	assert.Equal(t, 3, response.Meta.Pagination.PageCount)
}

func TestNormalizeCollection_SingleTypeObject(t *testing.T) {
	t.Parallel()

	body := decode(t, `{"data": {"id": 1, "documentId": "home", "heading": "Welcome"}}`)

	response, err := strapi.NormalizeCollection(body, strapi.VersionV5)
	require.NoError(t, err)
	require.Len(t, response.Data, 1)
	assert.Equal(t, "Welcome", response.Data[0].Attributes["heading"])
	assert.Nil(t, response.Meta.Pagination)
}

func TestNormalizeSingle(t *testing.T) {
	t.Parallel()

	response, err := strapi.NormalizeSingle(decode(t, `{"data": null, "meta": {}}`), strapi.VersionV4)
	require.NoError(t, err)
	assert.Nil(t, response.Data)

	response, err = strapi.NormalizeSingle(decode(t, `{"data": {"id": 9, "attributes": {"a": 1}}}`), strapi.VersionV4)
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, 9, response.Data.ID)
	assert.InDelta(t, 1.0, response.Data.Attributes["a"], 0)
}

func TestVersionDetector(t *testing.T) {
	t.Parallel()

	t.Run("ambiguous response is not cached", func(t *testing.T) {
		t.Parallel()

		detector := strapi.NewVersionDetector(strapi.VersionAuto)

		assert.Equal(t, strapi.VersionUnknown, detector.Observe(decode(t, `{"data":[]}`)))
		assert.Equal(t, strapi.VersionUnknown, detector.Current())
		assert.Equal(t, strapi.VersionV4, detector.Effective())

		assert.Equal(t, strapi.VersionV5, detector.Observe(decode(t, `{"data":[{"id":1,"documentId":"x"}]}`)))
		assert.Equal(t, strapi.VersionV5, detector.Current())
	})

	t.Run("detection is sticky until reset", func(t *testing.T) {
		t.Parallel()

		detector := strapi.NewVersionDetector("")
		detector.Observe(decode(t, `{"data":[{"id":1,"attributes":{}}]}`))
		assert.Equal(t, strapi.VersionV4, detector.Observe(decode(t, `{"data":[{"id":1,"documentId":"x"}]}`)))

		detector.Reset()
		assert.Equal(t, strapi.VersionUnknown, detector.Current())
	})

	t.Run("configured version bypasses detection", func(t *testing.T) {
		t.Parallel()

		detector := strapi.NewVersionDetector(strapi.VersionV5)
		assert.Equal(t, strapi.VersionV5, detector.Observe(decode(t, `{"data":[{"id":1,"attributes":{}}]}`)))

		detector.Reset()
		assert.Equal(t, strapi.VersionV5, detector.Current())
	})
}

package strapi_test

import (
	"net/url"
	"testing"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
)

func TestQueryParams_ToValues(t *testing.T) {
	t.Parallel()

	query := strapi.NewQueryParams().
		WithPage(2, 50).
		WithSort("publishedAt:desc", "title").
		WithPopulate("author", "cover").
		WithFilter("author.name", "eq", "Ada").
		WithFilter("views", "$gt", "10")
	query.Locale = "fr"
	query.Status = "draft"
	query.Extra = url.Values{"custom": {"1"}}

	values := query.ToValues()

	assert.Equal(t, "2", values.Get("pagination[page]"))
	assert.Equal(t, "50", values.Get("pagination[pageSize]"))
	assert.Empty(t, values.Get("pagination[start]"))
	assert.Equal(t, "publishedAt:desc", values.Get("sort[0]"))
	assert.Equal(t, "title", values.Get("sort[1]"))
	assert.Equal(t, "author", values.Get("populate[0]"))
	assert.Equal(t, "cover", values.Get("populate[1]"))
	assert.Equal(t, "Ada", values.Get("filters[author][name][$eq]"))
	assert.Equal(t, "10", values.Get("filters[views][$gt]"))
	assert.Equal(t, "fr", values.Get("locale"))
	assert.Equal(t, "draft", values.Get("status"))
	assert.Equal(t, "1", values.Get("custom"))
}

func TestQueryParams_PopulateAll(t *testing.T) {
	t.Parallel()

	values := strapi.NewQueryParams().WithPopulate("*").ToValues()

	assert.Equal(t, "*", values.Get("populate"))
	assert.Empty(t, values.Get("populate[0]"))
}

func TestQueryParams_Clone(t *testing.T) {
	t.Parallel()

	original := strapi.NewQueryParams().WithSort("a")
	original.Extra = url.Values{"k": {"v"}}

	clone := original.Clone()
	clone.Sort[0] = "b"
	clone.Extra.Set("k", "changed")
	clone.Page = 5

	assert.Equal(t, "a", original.Sort[0])
	assert.Equal(t, "v", original.Extra.Get("k"))
	assert.Zero(t, original.Page)

	var nilQuery *strapi.QueryParams
	assert.NotNil(t, nilQuery.Clone())
	assert.Empty(t, nilQuery.ToValues())
}

package transfer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/transfer"
)

func pageSchemas() transfer.SchemaMap {
	return transfer.SchemaMap{
		"api::page.page": {
			UID:        "api::page.page",
			PluralName: "pages",
			Fields: map[string]strapi.FieldSchema{
				"title":    {Type: strapi.FieldTypeString},
				"settings": {Type: strapi.FieldTypeJSON},
				"author":   {Type: strapi.FieldTypeRelation, Relation: strapi.RelationManyToOne, Target: "api::author.author"},
				"tags":     {Type: strapi.FieldTypeRelation, Relation: strapi.RelationManyToMany, Target: "api::tag.tag"},
				"seo":      {Type: strapi.FieldTypeComponent, Component: "shared.seo"},
				"links":    {Type: strapi.FieldTypeComponent, Component: "shared.link", Repeatable: true},
				"blocks":   {Type: strapi.FieldTypeDynamicZone, Components: []string{"blocks.quote", "blocks.cta"}},
			},
		},
		"shared.seo": {
			UID: "shared.seo",
			Fields: map[string]strapi.FieldSchema{
				"metaTitle": {Type: strapi.FieldTypeString},
				"related":   {Type: strapi.FieldTypeRelation, Relation: strapi.RelationOneToMany, Target: "api::page.page"},
			},
		},
		"shared.link": {
			UID: "shared.link",
			Fields: map[string]strapi.FieldSchema{
				"label":  {Type: strapi.FieldTypeString},
				"target": {Type: strapi.FieldTypeRelation, Relation: strapi.RelationOneToOne, Target: "api::page.page"},
			},
		},
		"blocks.quote": {
			UID:    "blocks.quote",
			Fields: map[string]strapi.FieldSchema{"text": {Type: strapi.FieldTypeText}},
		},
		"blocks.cta": {
			UID: "blocks.cta",
			Fields: map[string]strapi.FieldSchema{
				"label":  {Type: strapi.FieldTypeString},
				"author": {Type: strapi.FieldTypeRelation, Relation: strapi.RelationManyToOne, Target: "api::author.author"},
			},
		},
	}
}

func pageData() map[string]interface{} {
	return map[string]interface{}{
		"title":    "Home",
		"settings": map[string]interface{}{"data": map[string]interface{}{"id": 99}},
		"author":   map[string]interface{}{"data": map[string]interface{}{"id": 7, "attributes": map[string]interface{}{"name": "Ann"}}},
		"tags":     []interface{}{map[string]interface{}{"id": 1}, map[string]interface{}{"id": 2}},
		"seo": map[string]interface{}{
			"metaTitle": "Home page",
			"related":   []interface{}{map[string]interface{}{"id": 3, "documentId": "p3"}},
		},
		"links": []interface{}{
			map[string]interface{}{"label": "first", "target": nil},
			map[string]interface{}{"label": "second", "target": float64(4)},
		},
		"blocks": []interface{}{
			map[string]interface{}{"__component": "blocks.quote", "text": "hi"},
			map[string]interface{}{"__component": "blocks.cta", "label": "go", "author": map[string]interface{}{"data": map[string]interface{}{"id": 8}}},
		},
	}
}

func TestExtractRelationsSchemaless(t *testing.T) {
	t.Parallel()

	data := map[string]interface{}{
		"title":   "x",
		"author":  map[string]interface{}{"data": map[string]interface{}{"id": 5}},
		"tags":    map[string]interface{}{"data": []interface{}{map[string]interface{}{"id": 2}, map[string]interface{}{"id": 1}}},
		"editor":  map[string]interface{}{"data": nil},
		"cover":   map[string]interface{}{"data": map[string]interface{}{"id": 1, "mime": "image/jpeg"}},
		"gallery": map[string]interface{}{"data": []interface{}{map[string]interface{}{"id": 3, "attributes": map[string]interface{}{"mime": "image/png"}}}},
	}

	relations := transfer.ExtractRelations(data)
	assert.Equal(t, map[string][]int{
		"author": {5},
		"tags":   {2, 1},
		"editor": {},
	}, relations)

	stripped := transfer.StripRelations(data)
	assert.ElementsMatch(t, []string{"title", "cover", "gallery"}, keys(stripped))
	assert.Contains(t, data, "author", "input must not be modified")
}

func keys(data map[string]interface{}) []string {
	out := make([]string, 0, len(data))
	for key := range data {
		out = append(out, key)
	}

	return out
}

func TestMediaRelationDiscrimination(t *testing.T) {
	t.Parallel()

	media := map[string]interface{}{"f": map[string]interface{}{"data": map[string]interface{}{"id": 1, "mime": "image/jpeg"}}}
	plain := map[string]interface{}{"f": map[string]interface{}{"data": map[string]interface{}{"id": 1}}}

	assert.Equal(t, []int{1}, transfer.ExtractMediaReferences(media))
	assert.Empty(t, transfer.ExtractMediaReferences(plain))
	assert.Equal(t, map[string][]int{"f": {1}}, transfer.ExtractRelations(plain))
	assert.Empty(t, transfer.ExtractRelations(media))
}

func TestExtractRelationsWithSchema(t *testing.T) {
	t.Parallel()

	schemas := pageSchemas()
	resolver := transfer.NewResolver(nil)

	relations := resolver.ExtractRelationsWithSchema(context.Background(), pageData(), schemas["api::page.page"], schemas)

	assert.Equal(t, map[string][]int{
		"author":           {7},
		"tags":             {1, 2},
		"seo.related":      {3},
		"links[0].target":  {},
		"links[1].target":  {4},
		"blocks[1].author": {8},
	}, relations)

	targets := resolver.RelationTargets(context.Background(), pageData(), schemas["api::page.page"], schemas)
	assert.Equal(t, "api::page.page", targets["seo.related"])
	assert.Equal(t, "api::author.author", targets["blocks[1].author"])
	assert.Equal(t, "api::tag.tag", targets["tags"])
}

func TestExtractRelationsWithSchemaSkipsUnknownComponents(t *testing.T) {
	t.Parallel()

	schemas := pageSchemas()
	delete(schemas, "shared.seo")

	relations := transfer.NewResolver(nil).ExtractRelationsWithSchema(context.Background(), pageData(), schemas["api::page.page"], schemas)

	assert.NotContains(t, relations, "seo.related")
	assert.Contains(t, relations, "author")
	assert.Contains(t, relations, "links[1].target")
}

func TestStripRelationsWithSchema(t *testing.T) {
	t.Parallel()

	schemas := pageSchemas()
	original := pageData()

	stripped := transfer.NewResolver(nil).StripRelationsWithSchema(context.Background(), original, schemas["api::page.page"], schemas)

	assert.ElementsMatch(t, []string{"title", "settings", "seo", "links", "blocks"}, keys(stripped))
	assert.Equal(t, original["settings"], stripped["settings"], "JSON fields shaped like relations are kept")

	seo := stripped["seo"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"metaTitle": "Home page"}, seo)

	links := stripped["links"].([]interface{})
	assert.Equal(t, map[string]interface{}{"label": "second"}, links[1])

	blocks := stripped["blocks"].([]interface{})
	assert.Equal(t, map[string]interface{}{"__component": "blocks.cta", "label": "go"}, blocks[1])

	assert.Contains(t, original["seo"], "related", "input must not be modified")
}

func TestTargetForPath(t *testing.T) {
	t.Parallel()

	schemas := pageSchemas()
	resolver := transfer.NewResolver(nil)
	stripped := resolver.StripRelationsWithSchema(context.Background(), pageData(), schemas["api::page.page"], schemas)

	tests := []struct {
		path   string
		target string
		found  bool
	}{
		{path: "author", target: "api::author.author", found: true},
		{path: "seo.related", target: "api::page.page", found: true},
		{path: "links[1].target", target: "api::page.page", found: true},
		{path: "blocks[1].author", target: "api::author.author", found: true},
		{path: "blocks[0].author"},
		{path: "title"},
		{path: "missing.field"},
		{path: "links[x].target"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			target, found := resolver.TargetForPath(context.Background(), tt.path, stripped, schemas["api::page.page"], schemas)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestResolveRelations(t *testing.T) {
	t.Parallel()

	resolver := transfer.NewResolver(nil)
	mapping := map[string]map[int]int{
		"api::author.author": {1: 101, 2: 102},
	}

	resolved := resolver.ResolveRelations(map[string][]int{
		"author":  {1},
		"editors": {2, 3},
		"ghost":   {9},
		"none":    {},
	}, mapping, "api::author.author")

	assert.Equal(t, map[string][]int{
		"author":  {101},
		"editors": {102},
	}, resolved)

	withTargets := resolver.ResolveRelationsWithSchema(
		map[string][]int{"author": {1}, "tags": {1}},
		map[string]map[int]int{"api::author.author": {1: 11}, "api::tag.tag": {1: 21}},
		map[string]string{"author": "api::author.author", "tags": "api::tag.tag"},
	)
	assert.Equal(t, map[string][]int{"author": {11}, "tags": {21}}, withTargets)
}

func TestBuildRelationPayload(t *testing.T) {
	t.Parallel()

	payload := transfer.BuildRelationPayload(map[string][]int{
		"empty":  {},
		"single": {7},
		"many":   {7, 8},
	})

	assert.Equal(t, []int{}, payload["empty"])
	assert.Equal(t, 7, payload["single"])
	assert.Equal(t, []int{7, 8}, payload["many"])
}

func TestApplyNestedRelations(t *testing.T) {
	t.Parallel()

	schemas := pageSchemas()
	data := transfer.NewResolver(nil).StripRelationsWithSchema(context.Background(), pageData(), schemas["api::page.page"], schemas)

	payload, err := transfer.ApplyNestedRelations(map[string]interface{}{
		"author":           11,
		"seo.related":      []int{31},
		"links[1].target":  41,
		"blocks[1].author": 11,
		"gone[3].x":        1,
	}, data)
	require.NoError(t, err)

	assert.Equal(t, 11, payload["author"])
	assert.Equal(t, map[string]interface{}{"metaTitle": "Home page", "related": []int{31}}, payload["seo"])

	links := payload["links"].([]interface{})
	assert.Equal(t, map[string]interface{}{"label": "first"}, links[0])
	assert.Equal(t, map[string]interface{}{"label": "second", "target": 41}, links[1])

	blocks := payload["blocks"].([]interface{})
	assert.Equal(t, "go", blocks[1].(map[string]interface{})["label"])
	assert.Equal(t, 11, blocks[1].(map[string]interface{})["author"])

	assert.NotContains(t, payload, "gone")
	assert.NotContains(t, data["seo"], "related", "source data must not be modified")

	_, err = transfer.ApplyNestedRelations(map[string]interface{}{"links[a.b": 1}, data)

	var formatErr *strapi.FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestIsNestedPath(t *testing.T) {
	t.Parallel()

	assert.False(t, transfer.IsNestedPath("author"))
	assert.True(t, transfer.IsNestedPath("seo.related"))
	assert.True(t, transfer.IsNestedPath("blocks[0].link"))
}

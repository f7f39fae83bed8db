package strapi

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// SEOType is how a content type stores its SEO metadata.
type SEOType string

// SEO layouts.
const (
	SEOTypeComponent SEOType = "component"
	SEOTypeFlat      SEOType = "flat"
)

// SEOConfig is the SEO layout detected in a content type schema. Fields maps
// a purpose ("title", "description", ...) to a field path.
type SEOConfig struct {
	HasSEO       bool              `json:"has_seo"                 yaml:"has_seo"`
	Type         SEOType           `json:"type,omitempty"          yaml:"type,omitempty"`
	FieldName    string            `json:"field_name,omitempty"    yaml:"field_name,omitempty"`
	ComponentUID string            `json:"component_uid,omitempty" yaml:"component_uid,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"        yaml:"fields,omitempty"`
}

var (
	seoComponentNames = []string{"seo", "meta", "metadata", "metatags", "seometa"}
	seoComponentUIDs  = []string{"shared.seo", "seo.seo", "shared.meta", "shared.metadata", "seo"}

	flatSEOFields = map[string]string{
		"metatitle":        "title",
		"meta_title":       "title",
		"seotitle":         "title",
		"seo_title":        "title",
		"ogtitle":          "og_title",
		"og_title":         "og_title",
		"metadescription":  "description",
		"meta_description": "description",
		"seodescription":   "description",
		"seo_description":  "description",
		"ogdescription":    "og_description",
		"og_description":   "og_description",
		"metakeywords":     "keywords",
		"meta_keywords":    "keywords",
		"seokeywords":      "keywords",
		"seo_keywords":     "keywords",
		"metaimage":        "image",
		"meta_image":       "image",
		"seoimage":         "image",
		"seo_image":        "image",
		"ogimage":          "og_image",
		"og_image":         "og_image",
		"canonicalurl":     "canonical_url",
		"canonical_url":    "canonical_url",
		"canonical":        "canonical_url",
		"noindex":          "no_index",
		"no_index":         "no_index",
		"nofollow":         "no_follow",
		"no_follow":        "no_follow",
		"robots":           "robots",
	}

	seoComponentFields = map[string]string{
		"title":               "metaTitle",
		"description":         "metaDescription",
		"keywords":            "keywords",
		"image":               "metaImage",
		"canonical_url":       "canonicalURL",
		"og_title":            "ogTitle",
		"og_description":      "ogDescription",
		"og_image":            "ogImage",
		"twitter_title":       "twitterTitle",
		"twitter_description": "twitterDescription",
		"twitter_image":       "twitterImage",
		"robots":              "robots",
		"structured_data":     "structuredData",
	}
)

// DetectSEO looks for an SEO component first and for flat SEO fields
// otherwise. Fields are examined in name order.
func DetectSEO(schema *ContentTypeSchema) SEOConfig {
	if schema == nil {
		return SEOConfig{}
	}

	names := slices.Sorted(slices.Values(lo.Keys(schema.Fields)))

	for _, name := range names {
		field := schema.Fields[name]
		if field.Type != FieldTypeComponent {
			continue
		}

		byName := lo.Contains(seoComponentNames, strings.ToLower(name))
		byUID := field.Component != "" && lo.SomeBy(seoComponentUIDs, func(uid string) bool {
			return strings.Contains(strings.ToLower(field.Component), uid)
		})

		if byName || byUID {
			return SEOConfig{
				HasSEO:       true,
				Type:         SEOTypeComponent,
				FieldName:    name,
				ComponentUID: field.Component,
				Fields:       lo.MapValues(seoComponentFields, func(sub, _ string) string { return name + "." + sub }),
			}
		}
	}

	fields := map[string]string{}

	for _, name := range names {
		if purpose, ok := flatSEOFields[strings.ReplaceAll(strings.ToLower(name), "-", "_")]; ok {
			fields[purpose] = name
		}
	}

	if len(fields) == 0 {
		return SEOConfig{}
	}

	return SEOConfig{HasSEO: true, Type: SEOTypeFlat, Fields: fields}
}

package strapi

import (
	"strings"
)

// ParseUID splits "api::article.article" into ("api", "article", "article").
// A UID without a "::" namespace returns an empty namespace.
func ParseUID(uid string) (namespace, apiName, modelName string) {
	rest := uid
	if before, after, found := strings.Cut(uid, "::"); found {
		namespace = before
		rest = after
	}

	apiName, modelName, found := strings.Cut(rest, ".")
	if !found {
		return namespace, rest, rest
	}

	return namespace, apiName, modelName
}

// ModelName returns the part of a UID after the last dot.
func ModelName(uid string) string {
	_, _, model := ParseUID(uid)

	return model
}

// IsAPIContentType reports whether uid belongs to the application (api::)
// rather than a plugin or the admin.
func IsAPIContentType(uid string) bool {
	return strings.HasPrefix(uid, "api::")
}

// Pluralize is a best-effort English pluralization used only when a schema
// does not provide a plural name. It has known gaps ("quiz" -> "quizes").
func Pluralize(word string) string {
	lower := strings.ToLower(word)

	switch {
	case word == "":
		return word
	case strings.HasSuffix(lower, "y") && !hasAnySuffix(lower, "ay", "ey", "oy", "uy"):
		return word[:len(word)-1] + "ies"
	case hasAnySuffix(lower, "s", "x", "z", "ch", "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

func hasAnySuffix(word string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(word, suffix) {
			return true
		}
	}

	return false
}

// UIDToEndpoint derives the REST endpoint of a content type from its UID.
// A value without a "::" namespace is not a content-type UID and is
// returned unchanged.
func UIDToEndpoint(uid string) string {
	if !strings.Contains(uid, "::") {
		return uid
	}

	return Pluralize(ModelName(uid))
}

var irregularSingulars = map[string]string{
	"people":    "person",
	"children":  "child",
	"men":       "man",
	"women":     "woman",
	"feet":      "foot",
	"teeth":     "tooth",
	"geese":     "goose",
	"mice":      "mouse",
	"oxen":      "ox",
	"indices":   "index",
	"matrices":  "matrix",
	"vertices":  "vertex",
	"analyses":  "analysis",
	"crises":    "crisis",
	"theses":    "thesis",
	"phenomena": "phenomenon",
	"criteria":  "criterion",
	"data":      "datum",
	"media":     "medium",
}

// quizLength separates doubled-z plurals ("quizzes") from double-z words
// ("buzzes").
const quizLength = 6

// Singularize turns a plural API ID ("categories") into its singular form.
// The result is lower case.
func Singularize(apiID string) string {
	name := strings.ToLower(apiID)

	if singular, ok := irregularSingulars[name]; ok {
		return singular
	}

	switch {
	case strings.HasSuffix(name, "ies"):
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "zzes"):
		if len(name) <= quizLength {
			return name[:len(name)-2]
		}

		return name[:len(name)-3]
	case strings.HasSuffix(name, "es") && hasAnySuffix(name[:len(name)-2], "s", "x", "z", "ch", "sh"):
		return name[:len(name)-2]
	case strings.HasSuffix(name, "s") && len(name) > 1:
		return name[:len(name)-1]
	default:
		return name
	}
}

// AdminURL returns the admin panel content-manager URL of a content type.
// kind is "collectionType" or "singleType".
func AdminURL(uid, baseURL, kind string) string {
	segment := "collection-types"
	if kind == KindSingleType {
		segment = "single-types"
	}

	return strings.TrimRight(baseURL, "/") + "/admin/content-manager/" + segment + "/" + uid
}

// EndpointFor prefers the plural name from the schema and falls back to
// UIDToEndpoint. Single types use the singular name.
func EndpointFor(uid string, schema *ContentTypeSchema) string {
	if schema != nil {
		if schema.IsSingleType() && schema.SingularName != "" {
			return schema.SingularName
		}

		if schema.PluralName != "" {
			return schema.PluralName
		}
	}

	return UIDToEndpoint(uid)
}

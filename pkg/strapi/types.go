package strapi

import (
	"time"
)

// APIVersion identifies the Strapi REST wire format.
type APIVersion string

const (
	// VersionUnknown means no confident detection has happened yet.
	VersionUnknown APIVersion = ""

	// VersionV4 nests business fields under "attributes".
	VersionV4 APIVersion = "v4"

	// VersionV5 is flat and carries "documentId".
	VersionV5 APIVersion = "v5"

	// VersionAuto asks the client to detect the version from responses.
	VersionAuto APIVersion = "auto"
)

// String returns the version label, "auto" for an undetected version.
func (v APIVersion) String() string {
	if v == VersionUnknown {
		return string(VersionAuto)
	}

	return string(v)
}

// NormalizedEntity is one entity in a version-independent shape.
type NormalizedEntity struct {
	ID          int                    `json:"id"                    yaml:"id"`
	DocumentID  *string                `json:"documentId,omitempty"  yaml:"documentId,omitempty"`
	CreatedAt   *time.Time             `json:"createdAt,omitempty"   yaml:"createdAt,omitempty"`
	UpdatedAt   *time.Time             `json:"updatedAt,omitempty"   yaml:"updatedAt,omitempty"`
	PublishedAt *time.Time             `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
	Locale      *string                `json:"locale,omitempty"      yaml:"locale,omitempty"`
	Attributes  map[string]interface{} `json:"attributes"            yaml:"attributes"`
}

// Identifier returns the documentId for v5 entities and the numeric id otherwise.
// Strapi v5 addresses single entities by documentId.
func (e *NormalizedEntity) Identifier() string {
	if e.DocumentID != nil && *e.DocumentID != "" {
		return *e.DocumentID
	}

	return itoa(e.ID)
}

// Pagination is the meta.pagination block of a collection response.
type Pagination struct {
	Page      int `json:"page,omitempty"      yaml:"page,omitempty"`
	PageSize  int `json:"pageSize,omitempty"  yaml:"pageSize,omitempty"`
	PageCount int `json:"pageCount,omitempty" yaml:"pageCount,omitempty"`
	Start     int `json:"start,omitempty"     yaml:"start,omitempty"`
	Limit     int `json:"limit,omitempty"     yaml:"limit,omitempty"`
	Total     int `json:"total"               yaml:"total"`
}

// ResponseMeta is the meta block of a response.
type ResponseMeta struct {
	Pagination *Pagination            `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	Extra      map[string]interface{} `json:"-"                    yaml:"-"`
}

// NormalizedSingleResponse wraps a single entity response.
type NormalizedSingleResponse struct {
	Data *NormalizedEntity `json:"data" yaml:"data"`
	Meta ResponseMeta      `json:"meta" yaml:"meta"`
}

// NormalizedCollectionResponse wraps a collection response.
type NormalizedCollectionResponse struct {
	Data []NormalizedEntity `json:"data" yaml:"data"`
	Meta ResponseMeta       `json:"meta" yaml:"meta"`
}

// MediaFormat is one generated rendition of an image.
type MediaFormat struct {
	Name   string  `json:"name"             yaml:"name"`
	Hash   string  `json:"hash"             yaml:"hash"`
	Ext    string  `json:"ext"              yaml:"ext"`
	Mime   string  `json:"mime"             yaml:"mime"`
	Width  int     `json:"width,omitempty"  yaml:"width,omitempty"`
	Height int     `json:"height,omitempty" yaml:"height,omitempty"`
	Size   float64 `json:"size"             yaml:"size"`
	URL    string  `json:"url"              yaml:"url"`
}

// MediaFile is a file in the Strapi media library. Size is in kilobytes, as
// reported by Strapi.
type MediaFile struct {
	ID              int                    `json:"id"                        yaml:"id"`
	DocumentID      string                 `json:"documentId,omitempty"      yaml:"documentId,omitempty"`
	Name            string                 `json:"name"                      yaml:"name"`
	AlternativeText string                 `json:"alternativeText,omitempty" yaml:"alternativeText,omitempty"`
	Caption         string                 `json:"caption,omitempty"         yaml:"caption,omitempty"`
	Width           int                    `json:"width,omitempty"           yaml:"width,omitempty"`
	Height          int                    `json:"height,omitempty"          yaml:"height,omitempty"`
	Formats         map[string]MediaFormat `json:"formats,omitempty"         yaml:"formats,omitempty"`
	Hash            string                 `json:"hash"                      yaml:"hash"`
	Ext             string                 `json:"ext"                       yaml:"ext"`
	Mime            string                 `json:"mime"                      yaml:"mime"`
	Size            float64                `json:"size"                      yaml:"size"`
	URL             string                 `json:"url"                       yaml:"url"`
	PreviewURL      string                 `json:"previewUrl,omitempty"      yaml:"previewUrl,omitempty"`
	Provider        string                 `json:"provider,omitempty"        yaml:"provider,omitempty"`
	CreatedAt       *time.Time             `json:"createdAt,omitempty"       yaml:"createdAt,omitempty"`
	UpdatedAt       *time.Time             `json:"updatedAt,omitempty"       yaml:"updatedAt,omitempty"`
}

// UploadOptions carries optional metadata for a media upload.
type UploadOptions struct {
	Ref             string
	RefID           string
	Field           string
	Folder          string
	AlternativeText string
	Caption         string
}

// MediaUpdate changes media metadata. Nil fields are left untouched.
type MediaUpdate struct {
	AlternativeText *string
	Caption         *string
	Name            *string
}

// ProgressFunc receives (completed, total) progress notifications. Calls are
// serialized and completed grows by one on each call.
type ProgressFunc func(completed, total int)

// BulkOptions configures bulk create/update/delete.
type BulkOptions struct {
	BatchSize      int
	MaxConcurrency int
	Query          *QueryParams
	Progress       ProgressFunc
}

// BulkUpdateItem is one entry of a bulk update.
type BulkUpdateItem struct {
	ID   string
	Data map[string]interface{}
}

// BulkFailure records one failed item of a bulk operation.
type BulkFailure struct {
	Index int         `json:"index" yaml:"index"`
	Item  interface{} `json:"item"  yaml:"item"`
	Error string      `json:"error" yaml:"error"`
	Err   error       `json:"-"     yaml:"-"`
}

// BulkResult summarizes a bulk operation.
type BulkResult struct {
	Successes []NormalizedEntity `json:"successes" yaml:"successes"`
	Failures  []BulkFailure      `json:"failures"  yaml:"failures"`
	Total     int                `json:"total"     yaml:"total"`
	Succeeded int                `json:"succeeded" yaml:"succeeded"`
	Failed    int                `json:"failed"    yaml:"failed"`
}

// IsComplete reports whether every item succeeded.
func (r *BulkResult) IsComplete() bool {
	return r.Failed == 0
}

package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// ExportDirPerm is the permission for export and media directories.
	ExportDirPerm = 0750

	// ExportFilePerm is the permission for export artifacts and downloaded media.
	ExportFilePerm = 0640
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ExtendedHTTPTimeout is used for uploads and downloads.
	ExtendedHTTPTimeout = 2 * time.Minute
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 500 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// RetryBackoffMultiplier grows the wait between attempts.
	RetryBackoffMultiplier = 2.0
)

// Concurrency and batching limits.
const (
	// DefaultBatchSize is the number of items submitted per bulk wave.
	DefaultBatchSize = 10

	// DefaultMaxConcurrency limits concurrent requests within a bulk wave.
	DefaultMaxConcurrency = 5
)

// Pagination.
const (
	// DefaultPageSize is the default number of entities per page.
	DefaultPageSize = 25

	// ExportPageSize is the page size used when streaming entities for export.
	ExportPageSize = 100

	// MaxPageSize is the largest page size Strapi accepts by default.
	MaxPageSize = 100
)

// Caching.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute

	// SchemaCacheTTL is the TTL for schemas persisted to a shared backend.
	SchemaCacheTTL = time.Hour

	// DefaultNATSBucket is the KV bucket used for shared schema caching.
	DefaultNATSBucket = "strapi_schemas"
)

// Strapi API paths.
const (
	// APIPrefix is prepended to every REST endpoint.
	APIPrefix = "/api/"

	// AdminLoginPath issues admin JWTs.
	AdminLoginPath = "/admin/login"

	// ContentTypesPath lists content types through the Content-Type Builder.
	ContentTypesPath = "content-type-builder/content-types"

	// ComponentsPath lists components through the Content-Type Builder.
	ComponentsPath = "content-type-builder/components"

	// UploadPath is the media upload endpoint.
	UploadPath = "upload"

	// UploadFilesPath is the media library endpoint.
	UploadFilesPath = "upload/files"
)

// Export format.
const (
	// ExportFormatVersion is written into every export.
	ExportFormatVersion = "1.0.0"

	// ExportFormatMajorPrefix is the compatible version prefix accepted on import.
	ExportFormatMajorPrefix = "1."

	// MaxFilenameLength bounds sanitized media filenames.
	MaxFilenameLength = 200

	// UnnamedFile replaces filenames that sanitize to nothing.
	UnnamedFile = "unnamed"

	// BytesPerKB converts Strapi media sizes (KB) to bytes.
	BytesPerKB = 1024

	// MaxJSONLLineSize bounds a single JSONL line.
	MaxJSONLLineSize = 64 * 1024 * 1024

	// BodyPreviewLength bounds body excerpts attached to format errors.
	BodyPreviewLength = 500
)

// Output formatting.
const (
	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// OutputFormatJSON selects JSON output.
	OutputFormatJSON = "json"

	// OutputFormatYAML selects YAML output.
	OutputFormatYAML = "yaml"

	// OutputFormatTable selects table output.
	OutputFormatTable = "table"

	// ExportFormatJSONL selects the streaming export container.
	ExportFormatJSONL = "jsonl"

	// ExportFormatJSON selects the single-document export.
	ExportFormatJSON = "json"
)

// Service identity.
const (
	// ServiceName tags log lines and metrics.
	ServiceName = "strapi-client"

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "strapi-client-go/1.0"

	// MetricsNamespace prefixes every Prometheus collector.
	MetricsNamespace = "strapi_client"
)

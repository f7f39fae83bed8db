package strapi

import (
	"context"
	"io"
	"time"
)

// EntityLister fetches one page of a collection. It is all the streaming
// source needs from a client.
type EntityLister interface {
	GetMany(ctx context.Context, endpoint string, query *QueryParams) (*NormalizedCollectionResponse, error)
}

// EntityClient provides CRUD over collection and single types. Endpoints are
// relative to /api, for example "articles" or "articles/abc123".
type EntityClient interface {
	EntityLister
	GetOne(ctx context.Context, endpoint string, query *QueryParams) (*NormalizedSingleResponse, error)
	Create(ctx context.Context, endpoint string, data map[string]interface{}, query *QueryParams) (*NormalizedSingleResponse, error)
	Update(ctx context.Context, endpoint string, data map[string]interface{}, query *QueryParams) (*NormalizedSingleResponse, error)
	Remove(ctx context.Context, endpoint string) (*NormalizedSingleResponse, error)
}

// BulkClient runs batched writes with bounded concurrency.
type BulkClient interface {
	BulkCreate(ctx context.Context, endpoint string, items []map[string]interface{}, opts BulkOptions) (*BulkResult, error)
	BulkUpdate(ctx context.Context, endpoint string, items []BulkUpdateItem, opts BulkOptions) (*BulkResult, error)
	BulkDelete(ctx context.Context, endpoint string, ids []string, opts BulkOptions) (*BulkResult, error)
}

// MediaClient provides access to the media library.
type MediaClient interface {
	UploadFile(ctx context.Context, path string, opts UploadOptions) (*MediaFile, error)
	UploadFiles(ctx context.Context, paths []string, opts UploadOptions) ([]MediaFile, error)
	DownloadFile(ctx context.Context, mediaURL string, dst io.Writer) (int64, error)
	ListMedia(ctx context.Context, query *QueryParams) ([]MediaFile, error)
	GetMedia(ctx context.Context, id int) (*MediaFile, error)
	DeleteMedia(ctx context.Context, id int) error
	UpdateMedia(ctx context.Context, id int, update MediaUpdate) (*MediaFile, error)
}

// ContentTypeClient provides access to the Content-Type Builder API.
type ContentTypeClient interface {
	GetContentTypes(ctx context.Context, includePlugins bool) ([]*ContentTypeSchema, error)
	GetComponents(ctx context.Context) ([]*ContentTypeSchema, error)
	GetContentTypeSchema(ctx context.Context, uid string) (*ContentTypeSchema, error)
	GetComponentSchema(ctx context.Context, uid string) (*ContentTypeSchema, error)
}

// SessionInfo exposes per-session state.
type SessionInfo interface {
	APIVersion() APIVersion
	ResetVersionDetection()
	BaseURL() string
}

// Client is the full Strapi client.
type Client interface {
	EntityClient
	BulkClient
	MediaClient
	ContentTypeClient
	SessionInfo
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a strapi.Client.
//
// # Authentication
//
// APIToken is sent as a static Bearer token. When it is empty and
// AdminEmail/AdminPassword are set, the client logs into /admin/login and
// uses the returned admin JWT, logging in again after a 401.
//
// # Timeouts and retries
//
// Per-request timeouts should be controlled via the context passed to client
// methods; Timeout bounds each HTTP attempt. Retries apply to 5xx, 429 and
// connection failures.
type Config struct {
	// BaseURL is the Strapi root, e.g. "http://localhost:1337". A trailing
	// slash and a trailing "/api" are removed.
	BaseURL string `envconfig:"URL"`

	// APIToken is a Strapi API token.
	APIToken string `envconfig:"API_TOKEN"`

	// AdminEmail and AdminPassword obtain an admin JWT when no token is set.
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	// APIVersion pins the wire format. "auto" or empty detects it.
	APIVersion APIVersion `envconfig:"API_VERSION" default:"auto"`

	Timeout      time.Duration `envconfig:"TIMEOUT"        default:"30s"`
	RetryMax     int           `envconfig:"RETRY_MAX"      default:"3"`
	RetryWaitMin time.Duration `envconfig:"RETRY_WAIT_MIN" default:"500ms"`
	RetryWaitMax time.Duration `envconfig:"RETRY_WAIT_MAX" default:"10s"`

	// RateLimitPerSecond caps outgoing requests. Zero disables the limit.
	RateLimitPerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND"`

	// Debug logs every request and response at debug level.
	Debug bool `envconfig:"DEBUG"`

	UserAgent string `envconfig:"USER_AGENT"`

	// Logger receives client logs. Nil discards them.
	Logger Logger `ignored:"true"`

	// SchemaCache selects a shared backing store for content-type schemas.
	// Nil keeps schemas in memory only.
	SchemaCache *CacheConfig `ignored:"true"`
}

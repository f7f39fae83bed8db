package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/strapi-client/internal/auth"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	strapihttp "github.com/fivetwenty-io/strapi-client/internal/http"
	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Static errors for err113 compliance.
var (
	ErrEndpointRequired = errors.New("endpoint is required")
)

// Client implements the strapi.Client interface.
type Client struct {
	httpClient   *strapihttp.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       strapi.Logger
	versions     *strapi.VersionDetector
}

var _ strapi.Client = (*Client)(nil)

// New creates a client from config. The token manager is chosen from the
// credentials present: API token, then admin email/password, then none.
func New(config *strapi.Config) (*Client, error) {
	if config == nil {
		return nil, strapi.ErrConfigRequired
	}

	baseURL := NormalizeBaseURL(config.BaseURL)
	if baseURL == "" {
		return nil, strapi.ErrBaseURLRequired
	}

	return NewWithTokenManager(config, createTokenManager(config, baseURL))
}

// NewWithTokenManager creates a client with a custom token manager.
func NewWithTokenManager(config *strapi.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, strapi.ErrConfigRequired
	}

	baseURL := NormalizeBaseURL(config.BaseURL)
	if baseURL == "" {
		return nil, strapi.ErrBaseURLRequired
	}

	var logger strapi.Logger = logging.Nop()
	if config.Logger != nil {
		logger = config.Logger
	}

	httpClient := strapihttp.NewClient(baseURL, tokenManager, createHTTPClientOptions(config, logger)...)

	return &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      baseURL,
		logger:       logger,
		versions:     strapi.NewVersionDetector(config.APIVersion),
	}, nil
}

// NormalizeBaseURL strips a trailing slash and a trailing "/api" segment.
func NormalizeBaseURL(raw string) string {
	baseURL := strings.TrimRight(strings.TrimSpace(raw), "/")
	baseURL = strings.TrimSuffix(baseURL, "/api")

	return strings.TrimRight(baseURL, "/")
}

func createTokenManager(config *strapi.Config, baseURL string) auth.TokenManager {
	switch {
	case config.APIToken != "":
		return auth.NewStaticTokenManager(config.APIToken)
	case config.AdminEmail != "" && config.AdminPassword != "":
		return auth.NewAdminTokenManager(&auth.AdminConfig{
			LoginURL: baseURL + constants.AdminLoginPath,
			Email:    config.AdminEmail,
			Password: config.AdminPassword,
		})
	default:
		return nil
	}
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *strapi.Config, logger strapi.Logger) []strapihttp.Option {
	httpOpts := []strapihttp.Option{strapihttp.WithLogger(logger)}

	if config.Debug {
		httpOpts = append(httpOpts, strapihttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, strapihttp.WithUserAgent(config.UserAgent))
	}

	if config.Timeout > 0 {
		httpOpts = append(httpOpts, strapihttp.WithTimeout(config.Timeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, strapihttp.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	if config.RateLimitPerSecond > 0 {
		httpOpts = append(httpOpts, strapihttp.WithRateLimit(config.RateLimitPerSecond))
	}

	return httpOpts
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// APIVersion returns the configured or detected version, VersionUnknown when
// nothing has been detected yet.
func (c *Client) APIVersion() strapi.APIVersion {
	return c.versions.Current()
}

// ResetVersionDetection forgets a detected version.
func (c *Client) ResetVersionDetection() {
	c.versions.Reset()
}

// BaseURL returns the normalized server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiPath prefixes endpoint with /api/.
func apiPath(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	endpoint = strings.TrimPrefix(endpoint, "api/")

	return constants.APIPrefix + endpoint
}

// decodeObject parses a JSON object body. An empty body decodes to an empty
// object, as returned by some DELETE handlers.
func decodeObject(resp *strapihttp.Response) (map[string]interface{}, error) {
	body := map[string]interface{}{}
	if resp == nil || len(resp.Body) == 0 || resp.StatusCode == http.StatusNoContent {
		return body, nil
	}

	err := json.Unmarshal(resp.Body, &body)
	if err != nil {
		return nil, &strapi.FormatError{Message: "response body is not a JSON object", Err: err}
	}

	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query *strapi.QueryParams) (*strapihttp.Response, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	return c.httpClient.Get(ctx, apiPath(endpoint), query.ToValues())
}

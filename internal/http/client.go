// Package http is the transport used by the Strapi client: retries with
// exponential backoff, bearer authentication, error mapping, multipart upload
// and streaming download.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/strapi-client/internal/auth"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/internal/metrics"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Client is the Strapi HTTP transport.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	logger       Logger
	debug        bool
	userAgent    string
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
	limiter      *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug logs every request and response at debug level.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig sets the retry budget and backoff bounds.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryMax = retryMax
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimit spaces outgoing requests evenly at perSecond. Zero or less
// disables the limit. Retries of a request are not limited separately.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil

			return
		}

		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a transport for baseURL. tokenManager may be nil for
// anonymous access.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokenManager: tokenManager,
		userAgent:    constants.DefaultUserAgent,
		retryMax:     constants.DefaultRetryMax,
		retryWaitMin: constants.DefaultRetryWaitMin,
		retryWaitMax: constants.DefaultRetryWaitMax,
		timeout:      constants.DefaultHTTPTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = client.retryMax
	retryClient.RetryWaitMin = client.retryWaitMin
	retryClient.RetryWaitMax = client.retryWaitMax
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	retryClient.Backoff = Backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = client.timeout
	retryClient.Logger = nil

	if client.logger != nil {
		retryClient.Logger = logging.NewLeveled(client.logger)
	}

	client.httpClient = retryClient

	return client
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request is one API call. Body is JSON-encoded; RawBody is sent as is with
// ContentType.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        interface{}
	RawBody     []byte
	ContentType string
	Headers     map[string]string
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do sends req. A non-2xx status returns both the response and a
// *strapi.APIError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.do(ctx, req)

	var apiErr *strapi.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		refreshErr := c.tokenManager.RefreshToken(ctx)
		if refreshErr == nil {
			return c.do(ctx, req)
		}
	}

	return resp, err
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	err = c.wait(ctx)
	if err != nil {
		return nil, err
	}

	fullURL := c.resolve(req.Path)
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	err = c.authorize(ctx, httpReq.Request)
	if err != nil {
		return nil, err
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     req.Method,
			"url":        fullURL,
			"request_id": requestID,
		})
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveHTTP(req.Method, 0, time.Since(start))

		return nil, classifyTransportError(ctx, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	metrics.ObserveHTTP(req.Method, httpResp.StatusCode, time.Since(start))

	if err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("failed to read response body: %w", err))
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":      httpResp.StatusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  requestID,
			"body":        preview(respBody),
		})
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return resp, responseError(httpResp.StatusCode, httpResp.Header, respBody)
	}

	return resp, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	err := c.limiter.Wait(ctx)
	if err != nil {
		return classifyTransportError(ctx, fmt.Errorf("rate limit wait: %w", err))
	}

	return nil
}

func encodeBody(req *Request) (interface{}, string, error) {
	switch {
	case req.RawBody != nil:
		return req.RawBody, req.ContentType, nil
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}

		return data, "application/json", nil
	default:
		return nil, "", nil
	}
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokenManager == nil {
		return nil
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return nil
}

// resolve joins a relative path with the base URL and leaves absolute URLs
// untouched.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

func (c *Client) sameOrigin(rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}

	return target.Host == base.Host
}

func responseError(status int, headers http.Header, body []byte) *strapi.APIError {
	apiErr := strapi.ParseAPIError(status, body)

	if retryAfter, ok := parseRetryAfter(headers.Get("Retry-After")); ok {
		apiErr.RetryAfter = retryAfter
	}

	return apiErr
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", strapi.ErrTimeout, err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", strapi.ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", strapi.ErrConnection, err)
}

func preview(body []byte) string {
	if len(body) > constants.BodyPreviewLength {
		return string(body[:constants.BodyPreviewLength]) + "..."
	}

	return string(body)
}

// Backoff computes the wait before retry attempt n. Retry-After on 429 and
// 503 wins over the exponential schedule.
func Backoff(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return retryAfter
		}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = minWait
	exp.Multiplier = constants.RetryBackoffMultiplier
	exp.MaxInterval = maxWait
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	delay := exp.NextBackOff()
	for range attempt {
		delay = exp.NextBackOff()
	}

	return delay
}

// parseRetryAfter accepts delta-seconds and HTTP dates.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}

	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0), true
	}

	return 0, false
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Reader      io.Reader
}

// Upload sends a multipart/form-data request with the given form fields and
// files. The body is buffered so that it can be replayed on retry.
func (c *Client) Upload(ctx context.Context, method, path string, query url.Values, fields map[string]string, files []FilePart) (*Response, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	for _, file := range files {
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.FieldName, file.FileName))
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}

		_, err = io.Copy(part, file.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.FileName, err)
		}
	}

	for key, value := range fields {
		err := writer.WriteField(key, value)
		if err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return c.Do(ctx, &Request{
		Method:      method,
		Path:        path,
		Query:       query,
		RawBody:     buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	})
}

// Download streams the resource at rawURL into dst and returns the number of
// bytes written. Relative URLs are resolved against the base URL; the bearer
// token is only sent to the Strapi host itself.
func (c *Client) Download(ctx context.Context, rawURL string, dst io.Writer) (int64, error) {
	fullURL := c.resolve(rawURL)

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)

	err = c.wait(ctx)
	if err != nil {
		return 0, err
	}

	if c.sameOrigin(fullURL) {
		err = c.authorize(ctx, httpReq.Request)
		if err != nil {
			return 0, err
		}
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveHTTP(http.MethodGet, 0, time.Since(start))

		return 0, classifyTransportError(ctx, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	metrics.ObserveHTTP(http.MethodGet, httpResp.StatusCode, time.Since(start))

	if httpResp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, constants.BodyPreviewLength))

		return 0, responseError(httpResp.StatusCode, httpResp.Header, body)
	}

	written, err := io.Copy(dst, httpResp.Body)
	if err != nil {
		return written, classifyTransportError(ctx, fmt.Errorf("failed to stream %s: %w", fullURL, err))
	}

	return written, nil
}

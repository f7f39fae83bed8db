package strapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds. An *APIError unwraps to exactly one of these, so callers can
// test with errors.Is(err, strapi.ErrNotFound).
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrAuthorization  = errors.New("authorization error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrServer         = errors.New("server error")
	ErrConnection     = errors.New("connection error")
	ErrTimeout        = errors.New("request timed out")
	ErrUnexpected     = errors.New("unexpected response")
)

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired  = errors.New("base URL is required")
	ErrConfigRequired   = errors.New("config is required")
	ErrInvalidPageSize  = fmt.Errorf("%w: page size must be at least 1", ErrValidation)
	ErrNoMoreItems      = errors.New("no more items")
	ErrMissingDocument  = errors.New("v5 entity is missing documentId")
	ErrMissingID        = errors.New("entity is missing id")
	ErrNotAnObject      = errors.New("value is not a JSON object")
	ErrEmptyData        = errors.New("response has no data")
	ErrInvalidLocalPath = errors.New("invalid local path")
	ErrCacheMiss        = errors.New("cache miss")
)

// APIError is a non-2xx response from Strapi.
type APIError struct {
	StatusCode int                    `json:"status"            yaml:"status"`
	Name       string                 `json:"name"              yaml:"name"`
	Message    string                 `json:"message"           yaml:"message"`
	Details    map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	RetryAfter time.Duration          `json:"-"                 yaml:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (status: %d)", e.Name, e.Message, e.StatusCode)
	}

	return fmt.Sprintf("%s (status: %d)", e.Message, e.StatusCode)
}

// Unwrap returns the error kind for the status code.
func (e *APIError) Unwrap() error {
	return KindForStatus(e.StatusCode)
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return ErrValidation
	case status == http.StatusUnauthorized:
		return ErrAuthentication
	case status == http.StatusForbidden:
		return ErrAuthorization
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrUnexpected
	}
}

// errorEnvelope is the Strapi error body: {"data": null, "error": {...}}.
type errorEnvelope struct {
	Error *struct {
		Status  int                    `json:"status"`
		Name    string                 `json:"name"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

// ParseAPIError builds an APIError from a response status and body. Bodies that
// are not Strapi error envelopes fall back to the HTTP status text.
func ParseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	var envelope errorEnvelope

	err := json.Unmarshal(body, &envelope)
	if err != nil || envelope.Error == nil {
		return apiErr
	}

	apiErr.Name = envelope.Error.Name
	apiErr.Details = envelope.Error.Details

	if envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
	}

	return apiErr
}

// FormatError reports malformed input: a bad JSONL line, an invalid export
// path, or a response body that is not JSON.
type FormatError struct {
	Line    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if e.Line > 0 {
		return fmt.Sprintf("format error at line %d: %s", e.Line, msg)
	}

	return "format error: " + msg
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// ImportExportError wraps a fatal failure of an export or import run.
type ImportExportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ImportExportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ImportExportError) Unwrap() error {
	return e.Err
}

// MediaError reports a failed upload, download or media library call.
type MediaError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *MediaError) Error() string {
	return fmt.Sprintf("media %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MediaError) Unwrap() error {
	return e.Err
}

// SchemaError reports a schema that could not be fetched or parsed.
type SchemaError struct {
	UID string
	Err error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.UID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized checks if the error is an authentication error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsRateLimited checks if the error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// StatusCode extracts the HTTP status from an error chain, or 0.
func StatusCode(err error) int {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}

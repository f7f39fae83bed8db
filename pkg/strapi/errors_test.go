package strapi_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, strapi.ErrValidation},
		{http.StatusUnauthorized, strapi.ErrAuthentication},
		{http.StatusForbidden, strapi.ErrAuthorization},
		{http.StatusNotFound, strapi.ErrNotFound},
		{http.StatusConflict, strapi.ErrConflict},
		{http.StatusTooManyRequests, strapi.ErrRateLimit},
		{http.StatusInternalServerError, strapi.ErrServer},
		{http.StatusBadGateway, strapi.ErrServer},
		{http.StatusTeapot, strapi.ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			apiErr := &strapi.APIError{StatusCode: tt.status}
			assert.ErrorIs(t, apiErr, tt.kind)
			assert.Equal(t, tt.status, strapi.StatusCode(fmt.Errorf("wrapped: %w", apiErr)))
		})
	}
}

func TestParseAPIError(t *testing.T) {
	t.Parallel()

	body := []byte(`{"data":null,"error":{"status":400,"name":"ValidationError","message":"title must be defined","details":{"errors":[]}}}`)

	apiErr := strapi.ParseAPIError(http.StatusBadRequest, body)
	assert.Equal(t, "ValidationError", apiErr.Name)
	assert.Equal(t, "title must be defined", apiErr.Message)
	assert.Contains(t, apiErr.Details, "errors")
	assert.True(t, strapi.IsValidation(apiErr))
	assert.Contains(t, apiErr.Error(), "status: 400")

	plain := strapi.ParseAPIError(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	assert.Equal(t, "Bad Gateway", plain.Message)
	assert.Empty(t, plain.Name)
	require.ErrorIs(t, plain, strapi.ErrServer)
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	err := &strapi.FormatError{Line: 3, Message: "invalid JSON", Err: errors.New("unexpected EOF")}
	assert.Equal(t, "format error at line 3: invalid JSON: unexpected EOF", err.Error())

	noLine := &strapi.FormatError{Message: "local path", Err: strapi.ErrInvalidLocalPath}
	require.ErrorIs(t, noLine, strapi.ErrInvalidLocalPath)
	assert.Equal(t, "format error: local path: invalid local path", noLine.Error())
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	notFound := fmt.Errorf("get: %w", &strapi.APIError{StatusCode: http.StatusNotFound})
	assert.True(t, strapi.IsNotFound(notFound))
	assert.False(t, strapi.IsRateLimited(notFound))
	assert.True(t, strapi.IsRateLimited(&strapi.APIError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, strapi.IsUnauthorized(&strapi.APIError{StatusCode: http.StatusUnauthorized}))
	assert.Equal(t, 0, strapi.StatusCode(errors.New("plain")))

	mediaErr := &strapi.MediaError{Op: "upload", Err: strapi.ErrTimeout}
	require.ErrorIs(t, mediaErr, strapi.ErrTimeout)
	assert.Equal(t, "media upload failed: request timed out", mediaErr.Error())
}

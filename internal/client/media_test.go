package client_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestMedia(t *testing.T) {
	t.Parallel()

	for _, version := range []strapi.APIVersion{strapi.VersionV4, strapi.VersionV5} {
		t.Run(string(version), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			server := newArticleServer(t, version)
			client := newTestClient(t, server)
			content := []byte("fake png bytes")

			uploaded, err := client.UploadFile(ctx, writeTempFile(t, "cover.png", content), strapi.UploadOptions{
				AlternativeText: "A cover",
				Caption:         "Cover caption",
			})
			require.NoError(t, err)
			assert.Equal(t, "cover.png", uploaded.Name)
			assert.Equal(t, "image/png", uploaded.Mime)
			assert.Equal(t, "A cover", uploaded.AlternativeText)
			assert.Equal(t, "Cover caption", uploaded.Caption)

			files, err := client.ListMedia(ctx, nil)
			require.NoError(t, err)
			require.Len(t, files, 1)

			fetched, err := client.GetMedia(ctx, uploaded.ID)
			require.NoError(t, err)
			assert.Equal(t, uploaded.URL, fetched.URL)

			if version == strapi.VersionV5 {
				assert.NotEmpty(t, fetched.DocumentID)
			}

			var buffer bytes.Buffer

			written, err := client.DownloadFile(ctx, fetched.URL, &buffer)
			require.NoError(t, err)
			assert.Equal(t, int64(len(content)), written)
			assert.Equal(t, content, buffer.Bytes())

			caption := "New caption"

			updated, err := client.UpdateMedia(ctx, uploaded.ID, strapi.MediaUpdate{Caption: &caption})
			require.NoError(t, err)
			assert.Equal(t, "New caption", updated.Caption)
			assert.Equal(t, "A cover", updated.AlternativeText)

			if version == strapi.VersionV4 {
				assert.Equal(t, 1, server.CountRequests(http.MethodPut, "/api/upload/files/1"))
			} else {
				assert.Equal(t, 2, server.CountRequests(http.MethodPost, "/api/upload"))
			}

			require.NoError(t, client.DeleteMedia(ctx, uploaded.ID))
			assert.Equal(t, 0, server.MediaCount())

			_, err = client.GetMedia(ctx, uploaded.ID)
			require.Error(t, err)

			var mediaErr *strapi.MediaError
			require.ErrorAs(t, err, &mediaErr)
			assert.True(t, strapi.IsNotFound(err))
		})
	}
}

func TestUploadFiles(t *testing.T) {
	t.Parallel()

	server := newArticleServer(t, strapi.VersionV5)
	client := newTestClient(t, server)

	files, err := client.UploadFiles(context.Background(), []string{
		writeTempFile(t, "a.txt", []byte("a")),
		writeTempFile(t, "b.pdf", []byte("b")),
	}, strapi.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "application/pdf", files[1].Mime)
	assert.Equal(t, 2, server.MediaCount())
}

func TestUploadMissingFile(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newArticleServer(t, strapi.VersionV5))

	_, err := client.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), strapi.UploadOptions{})
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpdateMediaUsesDetectedVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := newArticleServer(t, strapi.VersionV4)
	mediaID := server.AddMedia("logo.svg", "image/svg+xml", []byte("<svg/>"))

	client := newTestClient(t, server, func(config *strapi.Config) { config.APIVersion = strapi.VersionV4 })

	name := "renamed.svg"

	updated, err := client.UpdateMedia(ctx, mediaID, strapi.MediaUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed.svg", updated.Name)
	assert.Equal(t, 0, server.CountRequests(http.MethodGet, "/api/upload/files/1"))
}

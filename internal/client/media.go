package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	strapihttp "github.com/fivetwenty-io/strapi-client/internal/http"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// UploadFile uploads one file to the media library.
func (c *Client) UploadFile(ctx context.Context, path string, opts strapi.UploadOptions) (*strapi.MediaFile, error) {
	files, err := c.UploadFiles(ctx, []string{path}, opts)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, &strapi.MediaError{Op: "upload", Err: strapi.ErrEmptyData}
	}

	return &files[0], nil
}

// UploadFiles uploads several files in one multipart request. opts applies
// to all of them.
func (c *Client) UploadFiles(ctx context.Context, paths []string, opts strapi.UploadOptions) ([]strapi.MediaFile, error) {
	parts := make([]strapihttp.FilePart, 0, len(paths))

	for _, path := range paths {
		file, err := os.Open(path) //nolint:gosec // path supplied by the caller
		if err != nil {
			return nil, &strapi.MediaError{Op: "upload", Err: err}
		}

		defer func() { _ = file.Close() }()

		parts = append(parts, strapihttp.FilePart{
			FieldName:   "files",
			FileName:    filepath.Base(path),
			ContentType: contentTypeFor(path),
			Reader:      file,
		})
	}

	fields, err := uploadFields(opts)
	if err != nil {
		return nil, &strapi.MediaError{Op: "upload", Err: err}
	}

	resp, err := c.httpClient.Upload(ctx, http.MethodPost, apiPath(constants.UploadPath), nil, fields, parts)
	if err != nil {
		return nil, &strapi.MediaError{Op: "upload", Err: err}
	}

	files, err := decodeMediaList(resp.Body)
	if err != nil {
		return nil, &strapi.MediaError{Op: "upload", Err: err}
	}

	c.logger.Debug("uploaded media", map[string]interface{}{"count": len(files)})

	return files, nil
}

func contentTypeFor(path string) string {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}

func uploadFields(opts strapi.UploadOptions) (map[string]string, error) {
	fields := map[string]string{}

	fileInfo := map[string]string{}
	if opts.AlternativeText != "" {
		fileInfo["alternativeText"] = opts.AlternativeText
	}

	if opts.Caption != "" {
		fileInfo["caption"] = opts.Caption
	}

	if len(fileInfo) > 0 {
		encoded, err := json.Marshal(fileInfo)
		if err != nil {
			return nil, fmt.Errorf("encoding fileInfo: %w", err)
		}

		fields["fileInfo"] = string(encoded)
	}

	optional := map[string]string{
		"ref":    opts.Ref,
		"refId":  opts.RefID,
		"field":  opts.Field,
		"folder": opts.Folder,
	}

	for key, value := range optional {
		if value != "" {
			fields[key] = value
		}
	}

	return fields, nil
}

// DownloadFile streams the file at mediaURL into dst. Relative URLs such as
// "/uploads/x.jpg" are resolved against the base URL.
func (c *Client) DownloadFile(ctx context.Context, mediaURL string, dst io.Writer) (int64, error) {
	written, err := c.httpClient.Download(ctx, mediaURL, dst)
	if err != nil {
		return written, &strapi.MediaError{Op: "download", Err: err}
	}

	return written, nil
}

// ListMedia lists files in the media library.
func (c *Client) ListMedia(ctx context.Context, query *strapi.QueryParams) ([]strapi.MediaFile, error) {
	resp, err := c.httpClient.Get(ctx, apiPath(constants.UploadFilesPath), query.ToValues())
	if err != nil {
		return nil, &strapi.MediaError{Op: "list", Err: err}
	}

	files, err := decodeMediaList(resp.Body)
	if err != nil {
		return nil, &strapi.MediaError{Op: "list", Err: err}
	}

	return files, nil
}

// GetMedia fetches one media file.
func (c *Client) GetMedia(ctx context.Context, id int) (*strapi.MediaFile, error) {
	resp, err := c.httpClient.Get(ctx, mediaPath(id), nil)
	if err != nil {
		return nil, &strapi.MediaError{Op: "get", Err: err}
	}

	file, err := decodeMedia(resp.Body)
	if err != nil {
		return nil, &strapi.MediaError{Op: "get", Err: err}
	}

	return file, nil
}

// DeleteMedia removes a media file.
func (c *Client) DeleteMedia(ctx context.Context, id int) error {
	_, err := c.httpClient.Delete(ctx, mediaPath(id))
	if err != nil {
		return &strapi.MediaError{Op: "delete", Err: err}
	}

	return nil
}

// UpdateMedia changes file metadata. Strapi v4 takes PUT upload/files/:id with
// a JSON body; v5 takes POST upload?id= with a fileInfo form field. With no
// version known yet, the file is fetched first: a documentId means v5.
func (c *Client) UpdateMedia(ctx context.Context, id int, update strapi.MediaUpdate) (*strapi.MediaFile, error) {
	version := c.versions.Current()
	if version == strapi.VersionUnknown {
		current, err := c.GetMedia(ctx, id)
		if err != nil {
			return nil, err
		}

		version = strapi.VersionV4
		if current.DocumentID != "" {
			version = strapi.VersionV5
		}
	}

	fileInfo := map[string]string{}
	if update.AlternativeText != nil {
		fileInfo["alternativeText"] = *update.AlternativeText
	}

	if update.Caption != nil {
		fileInfo["caption"] = *update.Caption
	}

	if update.Name != nil {
		fileInfo["name"] = *update.Name
	}

	var (
		resp *strapihttp.Response
		err  error
	)

	if version == strapi.VersionV4 {
		resp, err = c.httpClient.Put(ctx, mediaPath(id), map[string]interface{}{"fileInfo": fileInfo})
	} else {
		encoded, encodeErr := json.Marshal(fileInfo)
		if encodeErr != nil {
			return nil, &strapi.MediaError{Op: "update", Err: encodeErr}
		}

		resp, err = c.httpClient.Upload(ctx, http.MethodPost, apiPath(constants.UploadPath),
			url.Values{"id": {strconv.Itoa(id)}}, map[string]string{"fileInfo": string(encoded)}, nil)
	}

	if err != nil {
		return nil, &strapi.MediaError{Op: "update", Err: err}
	}

	file, err := decodeMedia(resp.Body)
	if err != nil {
		return nil, &strapi.MediaError{Op: "update", Err: err}
	}

	return file, nil
}

func mediaPath(id int) string {
	return apiPath(constants.UploadFilesPath + "/" + strconv.Itoa(id))
}

// decodeMedia accepts a single media object or a one-element list, as the
// v5 upload endpoint returns when updating.
func decodeMedia(body []byte) (*strapi.MediaFile, error) {
	var decoded interface{}

	err := json.Unmarshal(body, &decoded)
	if err != nil {
		return nil, &strapi.FormatError{Message: "media response", Err: err}
	}

	if list, ok := strapi.AsSlice(decoded); ok {
		files, err := strapi.ParseMediaList(list)
		if err != nil {
			return nil, err
		}

		if len(files) == 0 {
			return nil, strapi.ErrEmptyData
		}

		return &files[0], nil
	}

	object, ok := strapi.AsMap(decoded)
	if !ok {
		return nil, &strapi.FormatError{Message: "media response", Err: strapi.ErrNotAnObject}
	}

	return strapi.ParseMediaFile(object)
}

// decodeMediaList accepts a bare list or a {"data": [...]} envelope.
func decodeMediaList(body []byte) ([]strapi.MediaFile, error) {
	var decoded interface{}

	err := json.Unmarshal(body, &decoded)
	if err != nil {
		return nil, &strapi.FormatError{Message: "media response", Err: err}
	}

	if object, ok := strapi.AsMap(decoded); ok {
		decoded = object["data"]
	}

	if object, ok := strapi.AsMap(decoded); ok {
		file, err := strapi.ParseMediaFile(object)
		if err != nil {
			return nil, err
		}

		return []strapi.MediaFile{*file}, nil
	}

	list, ok := strapi.AsSlice(decoded)
	if !ok {
		return []strapi.MediaFile{}, nil
	}

	return strapi.ParseMediaList(list)
}

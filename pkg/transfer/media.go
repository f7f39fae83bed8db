package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// MediaDownloader fetches media files. strapi.Client implements it.
type MediaDownloader interface {
	DownloadFile(ctx context.Context, mediaURL string, dst io.Writer) (int64, error)
}

// MediaUploader uploads media files. strapi.Client implements it.
type MediaUploader interface {
	UploadFile(ctx context.Context, path string, opts strapi.UploadOptions) (*strapi.MediaFile, error)
}

// mediaObjectID returns the ID of a media object: flat {id, mime} or v4
// {id, attributes: {mime}}.
func mediaObjectID(value interface{}) (int, bool) {
	object, ok := strapi.AsMap(value)
	if !ok || !hasMime(object) {
		return 0, false
	}

	return strapi.AsID(object[keyID])
}

// mediaField reads a media reference field. many reports a multiple-media
// field. ok is false when value is not a media reference.
func mediaField(value interface{}) (ids []int, many bool, ok bool) {
	inner := value

	if object, isObject := strapi.AsMap(value); isObject {
		if data, wrapped := object[keyData]; wrapped {
			inner = data
		}
	}

	if id, isMedia := mediaObjectID(inner); isMedia {
		return []int{id}, false, true
	}

	items, isList := strapi.AsSlice(inner)
	if !isList || len(items) == 0 {
		return nil, false, false
	}

	for _, item := range items {
		id, isMedia := mediaObjectID(item)
		if !isMedia {
			return nil, false, false
		}

		ids = append(ids, id)
	}

	return ids, true, true
}

func sortedKeys(data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// ExtractMediaReferences returns the media IDs referenced by the top-level
// fields of data, in field-name order. Only objects carrying mime count.
func ExtractMediaReferences(data map[string]interface{}) []int {
	ids := []int{}

	for _, field := range sortedKeys(data) {
		if found, _, ok := mediaField(data[field]); ok {
			ids = append(ids, found...)
		}
	}

	return ids
}

// UpdateMediaReferences returns a copy of data with media IDs replaced
// through mapping. Unmapped IDs are kept and an empty mapping leaves data
// unchanged. Imports use MediaPayload instead, since source IDs do not exist
// on the target.
func UpdateMediaReferences(data map[string]interface{}, mapping map[int]int) map[string]interface{} {
	updated := strapi.CloneMap(data)
	if updated == nil {
		return map[string]interface{}{}
	}

	if len(mapping) == 0 {
		return updated
	}

	for _, value := range updated {
		inner := value

		if object, ok := strapi.AsMap(value); ok {
			if data, wrapped := object[keyData]; wrapped {
				inner = data
			}
		}

		if object, ok := strapi.AsMap(inner); ok {
			remapMediaObject(object, mapping)

			continue
		}

		if items, ok := strapi.AsSlice(inner); ok {
			for _, item := range items {
				if object, isObject := strapi.AsMap(item); isObject {
					remapMediaObject(object, mapping)
				}
			}
		}
	}

	return updated
}

func remapMediaObject(object map[string]interface{}, mapping map[int]int) {
	id, ok := mediaObjectID(object)
	if !ok {
		return
	}

	if newID, mapped := mapping[id]; mapped {
		object[keyID] = newID
	}
}

// MediaPayload returns a copy of data with media reference fields flattened
// to target IDs, as Strapi expects on create. IDs missing from mapping are
// dropped, and a field left without IDs is omitted, so an empty mapping
// removes every media reference.
func MediaPayload(data map[string]interface{}, mapping map[int]int) map[string]interface{} {
	payload := make(map[string]interface{}, len(data))

	for field, value := range data {
		ids, many, ok := mediaField(value)
		if !ok {
			payload[field] = strapi.CloneValue(value)

			continue
		}

		mapped := make([]int, 0, len(ids))

		for _, id := range ids {
			if newID, found := mapping[id]; found {
				mapped = append(mapped, newID)
			}
		}

		switch {
		case len(mapped) == 0:
			continue
		case many:
			payload[field] = mapped
		default:
			payload[field] = mapped[0]
		}
	}

	return payload
}

// MediaFields returns the media reference fields of data flattened to target
// IDs. Fields without a mapped ID are left out.
func MediaFields(data map[string]interface{}, mapping map[int]int) map[string]interface{} {
	fields := map[string]interface{}{}

	for field, value := range MediaPayload(data, mapping) {
		if IsMediaField(data[field]) {
			fields[field] = value
		}
	}

	return fields
}

// IsMediaField reports whether value is a media reference.
func IsMediaField(value interface{}) bool {
	_, _, ok := mediaField(value)

	return ok
}

// SanitizeFilename makes name safe to use as a file name: control
// characters and the characters <>:"|?*'& are removed, slashes become
// underscores, ".." runs collapse, and leading dots and spaces are trimmed.
// The extension is kept while the stem is shortened to fit maxLength.
func SanitizeFilename(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = constants.MaxFilenameLength
	}

	var builder strings.Builder

	for _, char := range name {
		switch {
		case char == 0 || unicode.IsControl(char):
		case char == '/' || char == '\\':
			builder.WriteRune('_')
		case strings.ContainsRune(`<>:"|?*'&`, char):
		default:
			builder.WriteRune(char)
		}
	}

	clean := builder.String()
	for strings.Contains(clean, "..") {
		clean = strings.ReplaceAll(clean, "..", ".")
	}

	clean = strings.TrimLeft(clean, ". ")
	clean = strings.TrimSpace(clean)

	if clean == "" {
		return constants.UnnamedFile
	}

	if len(clean) <= maxLength {
		return clean
	}

	ext := filepath.Ext(clean)
	if len(ext) >= maxLength {
		ext = ""
	}

	stem := strings.TrimSuffix(clean, ext)
	stem = truncateUTF8(stem, maxLength-len(ext))

	return stem + ext
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}

// DownloadMediaFile downloads media into dir as "{id}_{sanitized name}" and
// returns that file name, relative to dir.
func DownloadMediaFile(ctx context.Context, client MediaDownloader, media *strapi.MediaFile, dir string) (string, error) {
	err := os.MkdirAll(dir, constants.ExportDirPerm)
	if err != nil {
		return "", &strapi.MediaError{Op: "download", Err: err}
	}

	prefix := fmt.Sprintf("%d_", media.ID)
	name := prefix + SanitizeFilename(media.Name, constants.MaxFilenameLength-len(prefix))
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.ExportFilePerm) //nolint:gosec // name is sanitized
	if err != nil {
		return "", &strapi.MediaError{Op: "download", Err: err}
	}

	_, err = client.DownloadFile(ctx, media.URL, file)

	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return "", err
	}

	return name, nil
}

// CreateMediaExport builds the manifest entry for a downloaded file. Strapi
// reports sizes in KB; the manifest stores bytes.
func CreateMediaExport(media *strapi.MediaFile, localPath string) (*ExportedMediaFile, error) {
	return NewExportedMediaFile(
		media.ID,
		media.URL,
		media.Name,
		media.Mime,
		int64(media.Size*constants.BytesPerKB),
		media.Hash,
		localPath,
	)
}

// UploadMediaFile uploads the file of an exported media entry from mediaDir.
func UploadMediaFile(ctx context.Context, client MediaUploader, exported *ExportedMediaFile, mediaDir string) (*strapi.MediaFile, error) {
	err := ValidateLocalPath(exported.LocalPath)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(mediaDir, exported.LocalPath)

	_, err = os.Stat(path)
	if err != nil {
		return nil, &strapi.MediaError{Op: "upload", Err: err}
	}

	return client.UploadFile(ctx, path, strapi.UploadOptions{
		AlternativeText: exported.Name,
		Caption:         exported.Name,
	})
}

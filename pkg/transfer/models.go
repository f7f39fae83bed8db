package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Static errors for err113 compliance.
var (
	ErrPathTraversal   = errors.New("local path must stay inside the media directory")
	ErrMediaDirMissing = fmt.Errorf("%w: a media directory is required to include media", strapi.ErrValidation)
	ErrNoContentTypes  = fmt.Errorf("%w: no content types given", strapi.ErrValidation)
)

// ProgressFunc receives coarse progress notifications.
type ProgressFunc func(current, total int, message string)

// ExportedEntity is one entity in an export. Data holds the attributes with
// relation fields removed; Relations holds the referenced source IDs per
// field path.
type ExportedEntity struct {
	ID          int                    `json:"id"                    yaml:"id"`
	DocumentID  *string                `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	ContentType string                 `json:"content_type"          yaml:"content_type"`
	Data        map[string]interface{} `json:"data"                  yaml:"data"`
	Relations   map[string][]int       `json:"relations"             yaml:"relations"`
}

// ExportedMediaFile describes a downloaded media file. LocalPath is relative
// to the export's media directory.
type ExportedMediaFile struct {
	ID        int    `json:"id"         yaml:"id"`
	URL       string `json:"url"        yaml:"url"`
	Name      string `json:"name"       yaml:"name"`
	Mime      string `json:"mime"       yaml:"mime"`
	Size      int64  `json:"size"       yaml:"size"`
	Hash      string `json:"hash"       yaml:"hash"`
	LocalPath string `json:"local_path" yaml:"local_path"`
}

// NewExportedMediaFile validates localPath and builds the manifest entry.
func NewExportedMediaFile(id int, url, name, mime string, size int64, hash, localPath string) (*ExportedMediaFile, error) {
	err := ValidateLocalPath(localPath)
	if err != nil {
		return nil, err
	}

	return &ExportedMediaFile{
		ID:        id,
		URL:       url,
		Name:      name,
		Mime:      mime,
		Size:      size,
		Hash:      hash,
		LocalPath: localPath,
	}, nil
}

// UnmarshalJSON applies the same path validation as NewExportedMediaFile.
func (m *ExportedMediaFile) UnmarshalJSON(data []byte) error {
	type plain ExportedMediaFile

	var decoded plain

	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return err
	}

	err = ValidateLocalPath(decoded.LocalPath)
	if err != nil {
		return err
	}

	*m = ExportedMediaFile(decoded)

	return nil
}

// ValidateLocalPath rejects paths that could escape the media directory:
// any "..", a leading slash or backslash, or a drive letter.
func ValidateLocalPath(path string) error {
	switch {
	case strings.Contains(path, ".."),
		strings.HasPrefix(path, "/"),
		strings.HasPrefix(path, `\`),
		hasDrivePrefix(path):
		return &strapi.FormatError{Message: fmt.Sprintf("invalid local_path %q", path), Err: ErrPathTraversal}
	default:
		return nil
	}
}

func hasDrivePrefix(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}

	letter := path[0] | 0x20

	return letter >= 'a' && letter <= 'z'
}

// ExportMetadata describes an export. Schemas is captured once at export time
// and holds content-type and component schemas keyed by UID.
type ExportMetadata struct {
	Version       string                               `json:"version"          yaml:"version"`
	ExportID      string                               `json:"export_id"        yaml:"export_id"`
	ExportedAt    time.Time                            `json:"exported_at"      yaml:"exported_at"`
	SourceURL     string                               `json:"source_url"       yaml:"source_url"`
	StrapiVersion string                               `json:"strapi_version"   yaml:"strapi_version"`
	ContentTypes  []string                             `json:"content_types"    yaml:"content_types"`
	TotalEntities int                                  `json:"total_entities"   yaml:"total_entities"`
	TotalMedia    int                                  `json:"total_media"      yaml:"total_media"`
	Schemas       map[string]*strapi.ContentTypeSchema `json:"schemas"          yaml:"schemas"`
}

// NewExportMetadata creates metadata with a fresh export ID.
func NewExportMetadata(sourceURL string, version strapi.APIVersion, contentTypes []string) ExportMetadata {
	return ExportMetadata{
		Version:       constants.ExportFormatVersion,
		ExportID:      uuid.NewString(),
		ExportedAt:    time.Now().UTC(),
		SourceURL:     sourceURL,
		StrapiVersion: version.String(),
		ContentTypes:  slices.Clone(contentTypes),
		Schemas:       map[string]*strapi.ContentTypeSchema{},
	}
}

// IsCompatible reports whether the format version is one this package reads.
func (m *ExportMetadata) IsCompatible() bool {
	return strings.HasPrefix(m.Version, constants.ExportFormatMajorPrefix)
}

// ExportData is a complete in-memory export.
type ExportData struct {
	Metadata ExportMetadata              `json:"metadata" yaml:"metadata"`
	Entities map[string][]ExportedEntity `json:"entities" yaml:"entities"`
	Media    []ExportedMediaFile         `json:"media"    yaml:"media"`
}

// NewExportData creates an empty export.
func NewExportData(metadata ExportMetadata) *ExportData {
	return &ExportData{
		Metadata: metadata,
		Entities: map[string][]ExportedEntity{},
		Media:    []ExportedMediaFile{},
	}
}

// EntityCount returns the number of entities across all content types.
func (d *ExportData) EntityCount() int {
	return lo.SumBy(lo.Values(d.Entities), func(entities []ExportedEntity) int {
		return len(entities)
	})
}

// ContentTypeOrder returns the content types in the order they were
// exported, followed by any others in lexical order.
func (d *ExportData) ContentTypeOrder() []string {
	order := lo.Filter(d.Metadata.ContentTypes, func(uid string, _ int) bool {
		_, ok := d.Entities[uid]

		return ok
	})
	order = lo.Uniq(order)

	rest := lo.Without(lo.Keys(d.Entities), order...)
	slices.Sort(rest)

	return append(order, rest...)
}

// SaveToFile writes the export as one indented JSON document.
func (d *ExportData) SaveToFile(path string) error {
	err := os.MkdirAll(filepath.Dir(path), constants.ExportDirPerm)
	if err != nil {
		return &strapi.ImportExportError{Op: "save export", Err: err}
	}

	encoded, err := json.MarshalIndent(d, "", strings.Repeat(" ", constants.JSONIndentSize))
	if err != nil {
		return &strapi.ImportExportError{Op: "save export", Err: err}
	}

	err = os.WriteFile(path, append(encoded, '\n'), constants.ExportFilePerm)
	if err != nil {
		return &strapi.ImportExportError{Op: "save export", Err: err}
	}

	return nil
}

// LoadFromFile reads an export written by SaveToFile.
func LoadFromFile(path string) (*ExportData, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path supplied by the caller
	if err != nil {
		return nil, &strapi.ImportExportError{Op: "load export", Err: err}
	}

	data := &ExportData{}

	err = json.Unmarshal(raw, data)
	if err != nil {
		formatErr := &strapi.FormatError{}
		if !errors.As(err, &formatErr) {
			err = &strapi.FormatError{Message: "export file is not valid JSON", Err: err}
		}

		return nil, &strapi.ImportExportError{Op: "load export", Err: err}
	}

	if data.Entities == nil {
		data.Entities = map[string][]ExportedEntity{}
	}

	if data.Metadata.Schemas == nil {
		data.Metadata.Schemas = map[string]*strapi.ContentTypeSchema{}
	}

	return data, nil
}

// ImportOptions controls an import run.
type ImportOptions struct {
	// DryRun counts what would be imported without any write.
	DryRun bool

	// SkipRelations skips the relation pass.
	SkipRelations bool

	// ContentTypes restricts the import. Empty imports everything.
	ContentTypes []string

	// ImportMedia uploads the media manifest and rewrites media references.
	ImportMedia bool

	Progress ProgressFunc
}

// ExportOptions controls an export run.
type ExportOptions struct {
	IncludeMedia bool

	// MediaDir receives downloaded files. Required with IncludeMedia.
	MediaDir string

	Progress ProgressFunc
}

// ImportResult accumulates the outcome of an import.
type ImportResult struct {
	EntitiesImported int                    `json:"entities_imported" yaml:"entities_imported"`
	EntitiesFailed   int                    `json:"entities_failed"   yaml:"entities_failed"`
	EntitiesSkipped  int                    `json:"entities_skipped"  yaml:"entities_skipped"`
	MediaImported    int                    `json:"media_imported"    yaml:"media_imported"`
	MediaSkipped     int                    `json:"media_skipped"     yaml:"media_skipped"`
	IDMapping        map[string]map[int]int `json:"id_mapping"        yaml:"id_mapping"`
	MediaIDMapping   map[int]int            `json:"media_id_mapping"  yaml:"media_id_mapping"`
	Errors           []string               `json:"errors"            yaml:"errors"`
	Warnings         []string               `json:"warnings"          yaml:"warnings"`
	Success          bool                   `json:"success"           yaml:"success"`
	DryRun           bool                   `json:"dry_run"           yaml:"dry_run"`
}

// NewImportResult creates an empty result.
func NewImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		IDMapping:      map[string]map[int]int{},
		MediaIDMapping: map[int]int{},
		Errors:         []string{},
		Warnings:       []string{},
		DryRun:         dryRun,
	}
}

// AddError records an error message.
func (r *ImportResult) AddError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a warning message.
func (r *ImportResult) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// MapID records that oldID of contentType was created as newID.
func (r *ImportResult) MapID(contentType string, oldID, newID int) {
	if r.IDMapping[contentType] == nil {
		r.IDMapping[contentType] = map[int]int{}
	}

	r.IDMapping[contentType][oldID] = newID
}

// NewID looks up the target ID of a source entity.
func (r *ImportResult) NewID(contentType string, oldID int) (int, bool) {
	newID, ok := r.IDMapping[contentType][oldID]

	return newID, ok
}

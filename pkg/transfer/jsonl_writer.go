package transfer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// JSONL record types.
const (
	RecordMetadata      = "metadata"
	RecordEntity        = "entity"
	RecordMediaManifest = "media_manifest"

	recordTypeKey = "_type"
)

// Static errors for err113 compliance.
var (
	ErrWriteOrder = errors.New("JSONL records must be written as metadata, entities, media manifest")
	ErrNotObject  = errors.New("value does not encode as a JSON object")
)

type writerState int

const (
	writerEmpty writerState = iota
	writerEntities
	writerFinished
)

// JSONLWriter writes the streaming export format: one metadata line, one
// line per entity and a trailing media manifest line.
type JSONLWriter struct {
	out    *bufio.Writer
	closer io.Closer
	state  writerState
	counts map[string]int
	total  int
}

// NewJSONLWriter writes to w. Close flushes but leaves w open.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		out:    bufio.NewWriter(w),
		counts: map[string]int{},
	}
}

// CreateJSONL creates or truncates path, creating parent directories.
func CreateJSONL(path string) (*JSONLWriter, error) {
	err := os.MkdirAll(filepath.Dir(path), constants.ExportDirPerm)
	if err != nil {
		return nil, &strapi.ImportExportError{Op: "create export", Err: err}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.ExportFilePerm) //nolint:gosec // path supplied by the caller
	if err != nil {
		return nil, &strapi.ImportExportError{Op: "create export", Err: err}
	}

	writer := NewJSONLWriter(file)
	writer.closer = file

	return writer, nil
}

// WriteMetadata writes the first line.
func (w *JSONLWriter) WriteMetadata(metadata *ExportMetadata) error {
	if w.state != writerEmpty {
		return fmt.Errorf("%w: metadata written twice", ErrWriteOrder)
	}

	err := w.writeRecord(RecordMetadata, metadata)
	if err != nil {
		return err
	}

	w.state = writerEntities

	return nil
}

// WriteEntity appends an entity line.
func (w *JSONLWriter) WriteEntity(entity *ExportedEntity) error {
	switch w.state {
	case writerEmpty:
		return fmt.Errorf("%w: entity before metadata", ErrWriteOrder)
	case writerFinished:
		return fmt.Errorf("%w: entity after media manifest", ErrWriteOrder)
	case writerEntities:
	}

	err := w.writeRecord(RecordEntity, entity)
	if err != nil {
		return err
	}

	w.total++
	w.counts[entity.ContentType]++

	return nil
}

// WriteMediaManifest writes the last line.
func (w *JSONLWriter) WriteMediaManifest(files []ExportedMediaFile) error {
	switch w.state {
	case writerEmpty:
		return fmt.Errorf("%w: media manifest before metadata", ErrWriteOrder)
	case writerFinished:
		return fmt.Errorf("%w: media manifest written twice", ErrWriteOrder)
	case writerEntities:
	}

	if files == nil {
		files = []ExportedMediaFile{}
	}

	err := w.writeRecord(RecordMediaManifest, struct {
		Files []ExportedMediaFile `json:"files"`
	}{Files: files})
	if err != nil {
		return err
	}

	w.state = writerFinished

	return nil
}

func (w *JSONLWriter) writeRecord(recordType string, value interface{}) error {
	line, err := typedLine(recordType, value)
	if err != nil {
		return err
	}

	_, err = w.out.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("writing %s record: %w", recordType, err)
	}

	return nil
}

// typedLine encodes value as a JSON object with "_type" as first key.
func typedLine(recordType string, value interface{}) ([]byte, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", recordType, err)
	}

	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encoding %s record: %w", recordType, ErrNotObject)
	}

	typeJSON, err := json.Marshal(recordType)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", recordType, err)
	}

	line := make([]byte, 0, len(body)+len(typeJSON)+12)
	line = append(line, `{"`+recordTypeKey+`":`...)
	line = append(line, typeJSON...)

	if len(body) > 2 {
		line = append(line, ',')
	}

	return append(line, body[1:]...), nil
}

// EntityCounts returns the number of entities written per content type.
func (w *JSONLWriter) EntityCounts() map[string]int {
	return maps.Clone(w.counts)
}

// EntitiesWritten returns the total number of entities written.
func (w *JSONLWriter) EntitiesWritten() int {
	return w.total
}

// Flush writes buffered lines.
func (w *JSONLWriter) Flush() error {
	err := w.out.Flush()
	if err != nil {
		return fmt.Errorf("flushing JSONL: %w", err)
	}

	return nil
}

// Close flushes and closes the file opened by CreateJSONL.
func (w *JSONLWriter) Close() error {
	err := w.Flush()

	if w.closer != nil {
		closeErr := w.closer.Close()
		w.closer = nil

		if err == nil && closeErr != nil {
			err = fmt.Errorf("closing JSONL: %w", closeErr)
		}
	}

	return err
}

package transfer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

const initialLineBuffer = 64 * 1024

// JSONLReader reads the streaming export format. Entities are decoded one at
// a time; the media manifest is cached once reached.
type JSONLReader struct {
	scanner  *bufio.Scanner
	closer   io.Closer
	logger   strapi.Logger
	line     int
	metadata *ExportMetadata
	manifest []ExportedMediaFile
	done     bool
}

// NewJSONLReader reads from r. A nil logger discards warnings about unknown
// record types.
func NewJSONLReader(r io.Reader, logger strapi.Logger) *JSONLReader {
	if logger == nil {
		logger = logging.Nop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialLineBuffer), constants.MaxJSONLLineSize)

	return &JSONLReader{scanner: scanner, logger: logger}
}

// OpenJSONL opens an export file for reading.
func OpenJSONL(path string, logger strapi.Logger) (*JSONLReader, error) {
	file, err := os.Open(path) //nolint:gosec // path supplied by the caller
	if err != nil {
		return nil, &strapi.ImportExportError{Op: "open export", Err: err}
	}

	reader := NewJSONLReader(file, logger)
	reader.closer = file

	return reader, nil
}

// CountJSONLEntities counts the entity records of the export at path. Lines
// are checked for valid JSON but entities are not decoded.
func CountJSONLEntities(path string, logger strapi.Logger) (int, error) {
	reader, err := OpenJSONL(path, logger)
	if err != nil {
		return 0, err
	}

	defer func() { _ = reader.Close() }()

	count := 0

	for {
		recordType, _, err := reader.nextRecord()
		if errors.Is(err, io.EOF) {
			return count, nil
		}

		if err != nil {
			return count, err
		}

		if recordType == RecordEntity {
			count++
		}
	}
}

// Close closes the file opened by OpenJSONL.
func (r *JSONLReader) Close() error {
	if r.closer == nil {
		return nil
	}

	err := r.closer.Close()
	r.closer = nil

	return err
}

// nextRecord returns the next non-empty line with its record type. io.EOF
// marks the end of input.
func (r *JSONLReader) nextRecord() (string, []byte, error) {
	for r.scanner.Scan() {
		r.line++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if !json.Valid(line) {
			return "", nil, &strapi.FormatError{Line: r.line, Message: "invalid JSON"}
		}

		var fields map[string]json.RawMessage

		err := json.Unmarshal(line, &fields)
		if err != nil || fields == nil {
			return "", nil, &strapi.FormatError{Line: r.line, Message: "expected a JSON object", Err: err}
		}

		var recordType string

		if raw, ok := fields[recordTypeKey]; ok {
			_ = json.Unmarshal(raw, &recordType)
		}

		return recordType, bytes.Clone(line), nil
	}

	err := r.scanner.Err()
	if err != nil {
		return "", nil, &strapi.FormatError{Line: r.line + 1, Message: "reading line", Err: err}
	}

	return "", nil, io.EOF
}

// ReadMetadata reads the metadata line. It is idempotent.
func (r *JSONLReader) ReadMetadata() (*ExportMetadata, error) {
	if r.metadata != nil {
		return r.metadata, nil
	}

	recordType, line, err := r.nextRecord()
	if errors.Is(err, io.EOF) {
		return nil, &strapi.FormatError{Message: "empty JSONL file"}
	}

	if err != nil {
		return nil, err
	}

	if recordType != RecordMetadata {
		return nil, &strapi.FormatError{Line: r.line, Message: fmt.Sprintf("expected metadata record, got %q", recordType)}
	}

	metadata := &ExportMetadata{}

	err = json.Unmarshal(line, metadata)
	if err != nil {
		return nil, &strapi.FormatError{Line: r.line, Message: "decoding metadata", Err: err}
	}

	if metadata.Schemas == nil {
		metadata.Schemas = map[string]*strapi.ContentTypeSchema{}
	}

	r.metadata = metadata

	return metadata, nil
}

// NextEntity returns the next entity, reading the metadata first if needed.
// It returns io.EOF once the media manifest or the end of input is reached.
func (r *JSONLReader) NextEntity() (*ExportedEntity, error) {
	if _, err := r.ReadMetadata(); err != nil {
		return nil, err
	}

	for !r.done {
		recordType, line, err := r.nextRecord()
		if errors.Is(err, io.EOF) {
			r.done = true

			break
		}

		if err != nil {
			return nil, err
		}

		switch recordType {
		case RecordEntity:
			entity := &ExportedEntity{}

			err = json.Unmarshal(line, entity)
			if err != nil {
				return nil, &strapi.FormatError{Line: r.line, Message: "decoding entity", Err: err}
			}

			return entity, nil

		case RecordMediaManifest:
			var manifest struct {
				Files []ExportedMediaFile `json:"files"`
			}

			err = json.Unmarshal(line, &manifest)
			if err != nil {
				return nil, &strapi.FormatError{Line: r.line, Message: "decoding media manifest", Err: err}
			}

			r.manifest = manifest.Files
			r.done = true

		default:
			r.logger.Warn("skipping unknown JSONL record", map[string]interface{}{
				"line": r.line,
				"type": recordType,
			})
		}
	}

	return nil, io.EOF
}

// ForEachEntity calls fn for every remaining entity.
func (r *JSONLReader) ForEachEntity(fn func(*ExportedEntity) error) error {
	for {
		entity, err := r.NextEntity()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(entity)
		if err != nil {
			return err
		}
	}
}

// ReadMediaManifest returns the media manifest. Entities not consumed yet
// are read and discarded. A file without manifest yields an empty list.
func (r *JSONLReader) ReadMediaManifest() ([]ExportedMediaFile, error) {
	for !r.done {
		_, err := r.NextEntity()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	if r.manifest == nil {
		return []ExportedMediaFile{}, nil
	}

	return r.manifest, nil
}

// Line returns the number of the last line read.
func (r *JSONLReader) Line() int {
	return r.line
}

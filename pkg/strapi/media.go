package strapi

import (
	"encoding/json"
)

// ParseMediaFile converts a decoded media object into a MediaFile. It accepts
// the flat shape of the upload API and v5 relations, the v4 relation shape
// {"id": 1, "attributes": {...}}, and either wrapped in {"data": ...}.
func ParseMediaFile(raw map[string]interface{}) (*MediaFile, error) {
	if data, ok := AsMap(raw[fieldData]); ok {
		raw = data
	}

	flat := raw

	if attributes, ok := AsMap(raw[fieldAttributes]); ok {
		flat = CloneMap(attributes)
		flat[fieldID] = raw[fieldID]
	}

	encoded, err := json.Marshal(flat)
	if err != nil {
		return nil, &FormatError{Message: "media object", Err: err}
	}

	var file MediaFile

	err = json.Unmarshal(encoded, &file)
	if err != nil {
		return nil, &FormatError{Message: "media object", Err: err}
	}

	if file.ID == 0 {
		return nil, &FormatError{Message: "media object", Err: ErrMissingID}
	}

	return &file, nil
}

// ParseMediaList converts a list of decoded media objects.
func ParseMediaList(items []interface{}) ([]MediaFile, error) {
	files := make([]MediaFile, 0, len(items))

	for _, item := range items {
		raw, ok := AsMap(item)
		if !ok {
			return nil, &FormatError{Message: "media list item", Err: ErrNotAnObject}
		}

		file, err := ParseMediaFile(raw)
		if err != nil {
			return nil, err
		}

		files = append(files, *file)
	}

	return files, nil
}

// SizeBytes converts the kilobyte size reported by Strapi to bytes.
func (m *MediaFile) SizeBytes() int64 {
	return int64(m.Size * 1024)
}

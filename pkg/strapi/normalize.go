package strapi

import (
	"time"
)

// System fields are lifted out of the attribute map during normalization.
const (
	fieldID          = "id"
	fieldDocumentID  = "documentId"
	fieldAttributes  = "attributes"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
	fieldPublishedAt = "publishedAt"
	fieldLocale      = "locale"
	fieldData        = "data"
	fieldMeta        = "meta"
	fieldPagination  = "pagination"
)

var systemFields = map[string]struct{}{
	fieldID:          {},
	fieldDocumentID:  {},
	fieldCreatedAt:   {},
	fieldUpdatedAt:   {},
	fieldPublishedAt: {},
	fieldLocale:      {},
}

// DetectVersion inspects a response body and reports its wire format.
// VersionUnknown means the body was ambiguous: no "attributes" and no
// "documentId" on the first data element.
func DetectVersion(body map[string]interface{}) APIVersion {
	first, ok := firstDataElement(body)
	if !ok {
		return VersionUnknown
	}

	if _, has := first[fieldAttributes]; has {
		return VersionV4
	}

	if _, has := first[fieldDocumentID]; has {
		return VersionV5
	}

	return VersionUnknown
}

func firstDataElement(body map[string]interface{}) (map[string]interface{}, bool) {
	data, ok := body[fieldData]
	if !ok || data == nil {
		return nil, false
	}

	if object, isObject := AsMap(data); isObject {
		return object, true
	}

	list, isList := AsSlice(data)
	if !isList || len(list) == 0 {
		return nil, false
	}

	return AsMap(list[0])
}

// NormalizeEntity converts one wire entity to a NormalizedEntity. An unknown
// version is treated as v4.
func NormalizeEntity(raw map[string]interface{}, version APIVersion) (*NormalizedEntity, error) {
	if raw == nil {
		return nil, &FormatError{Message: "entity", Err: ErrNotAnObject}
	}

	id, ok := AsID(raw[fieldID])
	if !ok {
		return nil, &FormatError{Message: "entity", Err: ErrMissingID}
	}

	if version == VersionV5 {
		return normalizeV5(id, raw)
	}

	return normalizeV4(id, raw), nil
}

func normalizeV4(id int, raw map[string]interface{}) *NormalizedEntity {
	source, nested := AsMap(raw[fieldAttributes])
	if !nested {
		source = raw
	}

	entity := newEntity(id, source)

	if !nested {
		delete(entity.Attributes, fieldAttributes)
	}

	return entity
}

func normalizeV5(id int, raw map[string]interface{}) (*NormalizedEntity, error) {
	documentID, ok := AsString(raw[fieldDocumentID])
	if !ok || documentID == "" {
		return nil, &FormatError{Message: "entity", Err: ErrMissingDocument}
	}

	entity := newEntity(id, raw)
	entity.DocumentID = &documentID

	return entity, nil
}

func newEntity(id int, source map[string]interface{}) *NormalizedEntity {
	entity := &NormalizedEntity{
		ID:          id,
		CreatedAt:   parseTime(source[fieldCreatedAt]),
		UpdatedAt:   parseTime(source[fieldUpdatedAt]),
		PublishedAt: parseTime(source[fieldPublishedAt]),
		Attributes:  make(map[string]interface{}, len(source)),
	}

	if locale, ok := AsString(source[fieldLocale]); ok {
		entity.Locale = &locale
	}

	for key, value := range source {
		if _, system := systemFields[key]; system {
			continue
		}

		entity.Attributes[key] = value
	}

	return entity
}

func parseTime(value interface{}) *time.Time {
	text, ok := AsString(value)
	if !ok || text == "" {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return nil
	}

	return &parsed
}

// NormalizeSingle converts a single-entity response body.
func NormalizeSingle(body map[string]interface{}, version APIVersion) (*NormalizedSingleResponse, error) {
	response := &NormalizedSingleResponse{Meta: parseMeta(body)}

	data, ok := AsMap(body[fieldData])
	if !ok {
		return response, nil
	}

	entity, err := NormalizeEntity(data, version)
	if err != nil {
		return nil, err
	}

	response.Data = entity

	return response, nil
}

// NormalizeCollection converts a collection response body.
func NormalizeCollection(body map[string]interface{}, version APIVersion) (*NormalizedCollectionResponse, error) {
	response := &NormalizedCollectionResponse{
		Data: []NormalizedEntity{},
		Meta: parseMeta(body),
	}

	items, ok := AsSlice(body[fieldData])
	if !ok {
		// Single types answer collection-style requests with an object.
		if object, isObject := AsMap(body[fieldData]); isObject {
			items = []interface{}{object}
		}
	}

	for _, item := range items {
		raw, isObject := AsMap(item)
		if !isObject {
			return nil, &FormatError{Message: "collection item", Err: ErrNotAnObject}
		}

		entity, err := NormalizeEntity(raw, version)
		if err != nil {
			return nil, err
		}

		response.Data = append(response.Data, *entity)
	}

	return response, nil
}

func parseMeta(body map[string]interface{}) ResponseMeta {
	meta := ResponseMeta{}

	rawMeta, ok := AsMap(body[fieldMeta])
	if !ok {
		return meta
	}

	meta.Extra = make(map[string]interface{}, len(rawMeta))

	for key, value := range rawMeta {
		if key != fieldPagination {
			meta.Extra[key] = value
		}
	}

	rawPagination, ok := AsMap(rawMeta[fieldPagination])
	if !ok {
		return meta
	}

	pagination := &Pagination{}
	pagination.Page, _ = AsID(rawPagination["page"])
	pagination.PageSize, _ = AsID(rawPagination["pageSize"])
	pagination.PageCount, _ = AsID(rawPagination["pageCount"])
	pagination.Start, _ = AsID(rawPagination["start"])
	pagination.Limit, _ = AsID(rawPagination["limit"])
	pagination.Total, _ = AsID(rawPagination["total"])

	if pagination.PageCount == 0 && pagination.Limit > 0 {
		pagination.PageCount = (pagination.Total + pagination.Limit - 1) / pagination.Limit
	}

	meta.Pagination = pagination

	return meta
}

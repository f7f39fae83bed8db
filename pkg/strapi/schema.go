package strapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the type of a content-type attribute.
type FieldType string

// Field types known to Strapi v4 and v5. Anything else parses to FieldTypeString.
const (
	FieldTypeString      FieldType = "string"
	FieldTypeText        FieldType = "text"
	FieldTypeRichText    FieldType = "richtext"
	FieldTypeBlocks      FieldType = "blocks"
	FieldTypeEmail       FieldType = "email"
	FieldTypePassword    FieldType = "password"
	FieldTypeUID         FieldType = "uid"
	FieldTypeInteger     FieldType = "integer"
	FieldTypeBigInteger  FieldType = "biginteger"
	FieldTypeFloat       FieldType = "float"
	FieldTypeDecimal     FieldType = "decimal"
	FieldTypeDate        FieldType = "date"
	FieldTypeTime        FieldType = "time"
	FieldTypeDateTime    FieldType = "datetime"
	FieldTypeTimestamp   FieldType = "timestamp"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeJSON        FieldType = "json"
	FieldTypeEnumeration FieldType = "enumeration"
	FieldTypeMedia       FieldType = "media"
	FieldTypeRelation    FieldType = "relation"
	FieldTypeComponent   FieldType = "component"
	FieldTypeDynamicZone FieldType = "dynamiczone"
)

var knownFieldTypes = map[FieldType]struct{}{
	FieldTypeString: {}, FieldTypeText: {}, FieldTypeRichText: {}, FieldTypeBlocks: {},
	FieldTypeEmail: {}, FieldTypePassword: {}, FieldTypeUID: {}, FieldTypeInteger: {},
	FieldTypeBigInteger: {}, FieldTypeFloat: {}, FieldTypeDecimal: {}, FieldTypeDate: {},
	FieldTypeTime: {}, FieldTypeDateTime: {}, FieldTypeTimestamp: {}, FieldTypeBoolean: {},
	FieldTypeJSON: {}, FieldTypeEnumeration: {}, FieldTypeMedia: {}, FieldTypeRelation: {},
	FieldTypeComponent: {}, FieldTypeDynamicZone: {},
}

// ParseFieldType maps a wire type string to a FieldType.
func ParseFieldType(raw string) FieldType {
	fieldType := FieldType(strings.ToLower(raw))
	if _, ok := knownFieldTypes[fieldType]; ok {
		return fieldType
	}

	return FieldTypeString
}

// Content type kinds.
const (
	KindCollectionType = "collectionType"
	KindSingleType     = "singleType"
)

// RelationType is the cardinality of a relation field.
type RelationType string

// Relation cardinalities.
const (
	RelationOneToOne    RelationType = "oneToOne"
	RelationOneToMany   RelationType = "oneToMany"
	RelationManyToOne   RelationType = "manyToOne"
	RelationManyToMany  RelationType = "manyToMany"
	RelationOneWay      RelationType = "oneWay"
	RelationManyWay     RelationType = "manyWay"
	RelationMorphToOne  RelationType = "morphToOne"
	RelationMorphToMany RelationType = "morphToMany"
)

// IsToMany reports whether the relation holds a list of targets.
func (r RelationType) IsToMany() bool {
	switch r {
	case RelationOneToMany, RelationManyToMany, RelationManyWay, RelationMorphToMany:
		return true
	case RelationOneToOne, RelationManyToOne, RelationOneWay, RelationMorphToOne:
		return false
	default:
		return false
	}
}

// FieldSchema describes one attribute.
type FieldSchema struct {
	Type       FieldType    `json:"type"                 yaml:"type"`
	Relation   RelationType `json:"relation,omitempty"   yaml:"relation,omitempty"`
	Target     string       `json:"target,omitempty"     yaml:"target,omitempty"`
	Component  string       `json:"component,omitempty"  yaml:"component,omitempty"`
	Components []string     `json:"components,omitempty" yaml:"components,omitempty"`
	Repeatable bool         `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`
	Required   bool         `json:"required,omitempty"   yaml:"required,omitempty"`
	Unique     bool         `json:"unique,omitempty"     yaml:"unique,omitempty"`
	Multiple   bool         `json:"multiple,omitempty"   yaml:"multiple,omitempty"`
}

// ContentTypeSchema describes a content type or component.
type ContentTypeSchema struct {
	UID          string                 `json:"uid"                    yaml:"uid"`
	DisplayName  string                 `json:"displayName"            yaml:"displayName"`
	SingularName string                 `json:"singularName,omitempty" yaml:"singularName,omitempty"`
	PluralName   string                 `json:"pluralName,omitempty"   yaml:"pluralName,omitempty"`
	Kind         string                 `json:"kind,omitempty"         yaml:"kind,omitempty"`
	Category     string                 `json:"category,omitempty"     yaml:"category,omitempty"`
	Fields       map[string]FieldSchema `json:"fields"                 yaml:"fields"`
}

// Field returns the schema of a field.
func (s *ContentTypeSchema) Field(name string) (FieldSchema, bool) {
	if s == nil {
		return FieldSchema{}, false
	}

	field, ok := s.Fields[name]

	return field, ok
}

// IsRelationField reports whether name is a relation field.
func (s *ContentTypeSchema) IsRelationField(name string) bool {
	field, ok := s.Field(name)

	return ok && field.Type == FieldTypeRelation
}

// RelationTarget returns the target UID of a relation field.
func (s *ContentTypeSchema) RelationTarget(name string) (string, bool) {
	field, ok := s.Field(name)
	if !ok || field.Type != FieldTypeRelation || field.Target == "" {
		return "", false
	}

	return field.Target, true
}

// RelationFields returns the names of all relation fields.
func (s *ContentTypeSchema) RelationFields() []string {
	var names []string

	for name, field := range s.Fields {
		if field.Type == FieldTypeRelation {
			names = append(names, name)
		}
	}

	return names
}

// IsSingleType reports whether the schema is a single type.
func (s *ContentTypeSchema) IsSingleType() bool {
	return s.Kind == KindSingleType
}

type rawSchemaInfo struct {
	DisplayName  string `json:"displayName"`
	SingularName string `json:"singularName"`
	PluralName   string `json:"pluralName"`
}

type rawSchemaBody struct {
	rawSchemaInfo

	UID        string                     `json:"uid"`
	Kind       string                     `json:"kind"`
	Category   string                     `json:"category"`
	Info       *rawSchemaInfo             `json:"info"`
	Attributes map[string]json.RawMessage `json:"attributes"`
	Schema     *rawSchemaBody             `json:"schema"`
}

type rawField struct {
	Type       string   `json:"type"`
	Relation   string   `json:"relation"`
	Target     string   `json:"target"`
	Component  string   `json:"component"`
	Components []string `json:"components"`
	Repeatable bool     `json:"repeatable"`
	Required   bool     `json:"required"`
	Unique     bool     `json:"unique"`
	Multiple   bool     `json:"multiple"`
}

// ParseContentTypeSchema parses a Content-Type Builder response for one
// content type or component. The body may be wrapped in "data" and the
// schema may sit under "schema". Display names are read from the flat
// fields first and from "info" when the flat fields are empty.
func ParseContentTypeSchema(uid string, body []byte) (*ContentTypeSchema, error) {
	var envelope struct {
		Data *rawSchemaBody `json:"data"`
	}

	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, &FormatError{Message: "schema response", Err: err}
	}

	outer := envelope.Data
	if outer == nil {
		outer = &rawSchemaBody{}

		err = json.Unmarshal(body, outer)
		if err != nil {
			return nil, &FormatError{Message: "schema response", Err: err}
		}
	}

	return schemaFromRaw(uid, outer)
}

func schemaFromRaw(uid string, outer *rawSchemaBody) (*ContentTypeSchema, error) {
	root := outer
	if outer.Schema != nil {
		root = outer.Schema
	}

	if uid == "" {
		uid = outer.UID
	}

	schema := &ContentTypeSchema{
		UID:      uid,
		Kind:     firstNonEmpty(root.Kind, outer.Kind),
		Category: firstNonEmpty(root.Category, outer.Category),
		Fields:   make(map[string]FieldSchema, len(root.Attributes)),
	}

	info := root.rawSchemaInfo
	if info.DisplayName == "" && info.SingularName == "" && info.PluralName == "" {
		switch {
		case root.Info != nil:
			info = *root.Info
		case outer.Info != nil:
			info = *outer.Info
		}
	}

	schema.DisplayName = info.DisplayName
	schema.SingularName = info.SingularName
	schema.PluralName = info.PluralName

	for name, rawAttr := range root.Attributes {
		var attr rawField

		err := json.Unmarshal(rawAttr, &attr)
		if err != nil {
			return nil, &FormatError{Message: fmt.Sprintf("schema field %q", name), Err: err}
		}

		schema.Fields[name] = FieldSchema{
			Type:       ParseFieldType(attr.Type),
			Relation:   RelationType(attr.Relation),
			Target:     attr.Target,
			Component:  attr.Component,
			Components: attr.Components,
			Repeatable: attr.Repeatable,
			Required:   attr.Required,
			Unique:     attr.Unique,
			Multiple:   attr.Multiple,
		}
	}

	return schema, nil
}

// ParseContentTypeList parses the Content-Type Builder listing into schemas.
func ParseContentTypeList(body []byte) ([]*ContentTypeSchema, error) {
	var envelope struct {
		Data []*rawSchemaBody `json:"data"`
	}

	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, &FormatError{Message: "schema listing", Err: err}
	}

	schemas := make([]*ContentTypeSchema, 0, len(envelope.Data))

	for _, item := range envelope.Data {
		if item == nil {
			continue
		}

		schema, err := schemaFromRaw(item.UID, item)
		if err != nil {
			return nil, err
		}

		schemas = append(schemas, schema)
	}

	return schemas, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

package transfer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

const (
	keyData      = "data"
	keyID        = "id"
	keyMime      = "mime"
	keyAttrs     = "attributes"
	keyComponent = "__component"
)

// ComponentSchemaSource resolves component schemas while descending into
// components and dynamic zones. *schema.Cache and SchemaMap implement it.
type ComponentSchemaSource interface {
	GetComponentSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error)
}

// SchemaMap serves schemas captured in export metadata.
type SchemaMap map[string]*strapi.ContentTypeSchema

// GetComponentSchema implements ComponentSchemaSource.
func (m SchemaMap) GetComponentSchema(_ context.Context, uid string) (*strapi.ContentTypeSchema, error) {
	schema, ok := m[uid]
	if !ok || schema == nil {
		return nil, &strapi.SchemaError{UID: uid, Err: strapi.ErrNotFound}
	}

	return schema, nil
}

// Resolver extracts, strips and re-resolves relations. Component schema
// failures are logged and the affected subtree is skipped.
type Resolver struct {
	logger strapi.Logger
}

// NewResolver creates a resolver. A nil logger discards output.
func NewResolver(logger strapi.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Resolver{logger: logger}
}

// hasMime reports whether a relation-shaped object is actually a media file.
func hasMime(object map[string]interface{}) bool {
	if _, ok := object[keyMime]; ok {
		return true
	}

	if attributes, ok := strapi.AsMap(object[keyAttrs]); ok {
		_, found := attributes[keyMime]

		return found
	}

	return false
}

// wrappedRelationIDs reads the {data: ...} shape. ok is false when the value
// is not a relation: no data key, or a data payload carrying mime.
func wrappedRelationIDs(value interface{}) ([]int, bool) {
	object, ok := strapi.AsMap(value)
	if !ok {
		return nil, false
	}

	data, ok := object[keyData]
	if !ok {
		return nil, false
	}

	if data == nil {
		return []int{}, true
	}

	if item, isObject := strapi.AsMap(data); isObject {
		if hasMime(item) {
			return nil, false
		}

		id, hasID := strapi.AsID(item[keyID])
		if !hasID {
			return nil, false
		}

		return []int{id}, true
	}

	items, isList := strapi.AsSlice(data)
	if !isList {
		return nil, false
	}

	ids := make([]int, 0, len(items))

	for _, raw := range items {
		item, isObject := strapi.AsMap(raw)
		if !isObject || hasMime(item) {
			return nil, false
		}

		if id, hasID := strapi.AsID(item[keyID]); hasID {
			ids = append(ids, id)
		}
	}

	return ids, true
}

// ExtractRelations finds relation fields without a schema. A top-level field
// is a relation when its value is {data: null}, {data: {id}} or
// {data: [{id}, ...]} and the referenced objects carry no mime.
func ExtractRelations(data map[string]interface{}) map[string][]int {
	relations := map[string][]int{}

	for field, value := range data {
		if ids, ok := wrappedRelationIDs(value); ok {
			relations[field] = ids
		}
	}

	return relations
}

// StripRelations returns a copy of data without the fields ExtractRelations
// would report.
func StripRelations(data map[string]interface{}) map[string]interface{} {
	stripped := make(map[string]interface{}, len(data))

	for field, value := range data {
		if _, ok := wrappedRelationIDs(value); ok {
			continue
		}

		stripped[field] = strapi.CloneValue(value)
	}

	return stripped
}

// schemaRelationIDs reads a relation field in any wire shape: v4 wrapped,
// v5 populated objects, or bare IDs. ok is false for values that cannot be
// a relation.
func schemaRelationIDs(value interface{}) ([]int, bool) {
	if value == nil {
		return []int{}, true
	}

	if ids, ok := wrappedRelationIDs(value); ok {
		return ids, true
	}

	if object, ok := strapi.AsMap(value); ok {
		if id, hasID := strapi.AsID(object[keyID]); hasID {
			return []int{id}, true
		}

		return nil, false
	}

	if items, ok := strapi.AsSlice(value); ok {
		ids := make([]int, 0, len(items))

		for _, item := range items {
			if object, isObject := strapi.AsMap(item); isObject {
				item = object[keyID]
			}

			if id, hasID := strapi.AsID(item); hasID {
				ids = append(ids, id)
			}
		}

		return ids, true
	}

	if id, ok := strapi.AsID(value); ok {
		return []int{id}, true
	}

	return nil, false
}

// relationVisitor is called for every relation field found by walk.
type relationVisitor func(path string, field strapi.FieldSchema, value interface{})

// walk visits relation fields of data, descending into components and
// dynamic zones. Nested paths look like "seo.related" or "blocks[1].link".
func (r *Resolver) walk(
	ctx context.Context,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
	prefix string,
	visit relationVisitor,
) {
	for name, value := range data {
		if name == keyComponent {
			continue
		}

		field, ok := schema.Field(name)
		if !ok {
			continue
		}

		path := prefix + name

		switch field.Type {
		case strapi.FieldTypeRelation:
			visit(path, field, value)

		case strapi.FieldTypeComponent:
			if components == nil || field.Component == "" || value == nil {
				continue
			}

			if items, isList := strapi.AsSlice(value); isList {
				for i, item := range items {
					if object, isObject := strapi.AsMap(item); isObject {
						r.walkComponent(ctx, object, field.Component, components, indexed(path, i), visit)
					}
				}

				continue
			}

			if object, isObject := strapi.AsMap(value); isObject {
				r.walkComponent(ctx, object, field.Component, components, path+".", visit)
			}

		case strapi.FieldTypeDynamicZone:
			items, isList := strapi.AsSlice(value)
			if components == nil || !isList {
				continue
			}

			for i, item := range items {
				object, isObject := strapi.AsMap(item)
				if !isObject {
					continue
				}

				uid, hasUID := strapi.AsString(object[keyComponent])
				if !hasUID || uid == "" {
					continue
				}

				r.walkComponent(ctx, object, uid, components, indexed(path, i), visit)
			}
		}
	}
}

func (r *Resolver) walkComponent(
	ctx context.Context,
	data map[string]interface{},
	uid string,
	components ComponentSchemaSource,
	prefix string,
	visit relationVisitor,
) {
	componentSchema, err := components.GetComponentSchema(ctx, uid)
	if err != nil {
		r.logger.Warn("skipping component without schema", map[string]interface{}{
			"component": uid,
			"path":      strings.TrimSuffix(prefix, "."),
			"error":     err.Error(),
		})

		return
	}

	r.walk(ctx, data, componentSchema, components, prefix, visit)
}

func indexed(path string, index int) string {
	return path + "[" + strconv.Itoa(index) + "]."
}

// ExtractRelationsWithSchema reports only fields the schema marks as
// relations, including those nested in components and dynamic zones. A nil
// components source disables the descent.
func (r *Resolver) ExtractRelationsWithSchema(
	ctx context.Context,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
) map[string][]int {
	relations := map[string][]int{}

	r.walk(ctx, data, schema, components, "", func(path string, _ strapi.FieldSchema, value interface{}) {
		if ids, ok := schemaRelationIDs(value); ok {
			relations[path] = ids
		}
	})

	return relations
}

// RelationTargets maps every relation path in data to its target UID.
func (r *Resolver) RelationTargets(
	ctx context.Context,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
) map[string]string {
	targets := map[string]string{}

	r.walk(ctx, data, schema, components, "", func(path string, field strapi.FieldSchema, _ interface{}) {
		if field.Target != "" {
			targets[path] = field.Target
		}
	})

	return targets
}

// TargetForPath returns the target UID of the relation at path. data is
// consulted for the component type of dynamic zone entries, so the relation
// value itself may already have been stripped.
func (r *Resolver) TargetForPath(
	ctx context.Context,
	path string,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
) (string, bool) {
	segments, err := parsePath(path)
	if err != nil {
		return "", false
	}

	current := schema
	var value interface{} = data

	for i, segment := range segments {
		field, ok := current.Field(segment.name)
		if !ok {
			return "", false
		}

		if i == len(segments)-1 {
			if field.Type != strapi.FieldTypeRelation || field.Target == "" {
				return "", false
			}

			return field.Target, true
		}

		if components == nil {
			return "", false
		}

		object, _ := strapi.AsMap(value)
		value = object[segment.name]

		if segment.index >= 0 {
			items, _ := strapi.AsSlice(value)
			if segment.index >= len(items) {
				value = nil
			} else {
				value = items[segment.index]
			}
		}

		componentUID := field.Component
		if field.Type == strapi.FieldTypeDynamicZone {
			entry, _ := strapi.AsMap(value)
			componentUID, _ = strapi.AsString(entry[keyComponent])
		}

		if componentUID == "" {
			return "", false
		}

		current, err = components.GetComponentSchema(ctx, componentUID)
		if err != nil {
			r.logger.Warn("no schema for relation path", map[string]interface{}{
				"path":      path,
				"component": componentUID,
				"error":     err.Error(),
			})

			return "", false
		}
	}

	return "", false
}

// StripRelationsWithSchema returns a copy of data without relation fields.
// Relation fields nested in components and dynamic zones are removed as
// well. Other fields are kept even when shaped like {data: ...}.
func (r *Resolver) StripRelationsWithSchema(
	ctx context.Context,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
) map[string]interface{} {
	stripped := strapi.CloneMap(data)
	if stripped == nil {
		stripped = map[string]interface{}{}
	}

	r.strip(ctx, stripped, schema, components)

	return stripped
}

func (r *Resolver) strip(ctx context.Context, data map[string]interface{}, schema *strapi.ContentTypeSchema, components ComponentSchemaSource) {
	for name, value := range data {
		field, ok := schema.Field(name)
		if !ok {
			continue
		}

		switch field.Type {
		case strapi.FieldTypeRelation:
			delete(data, name)

		case strapi.FieldTypeComponent:
			if components == nil || field.Component == "" {
				continue
			}

			for _, object := range componentObjects(value) {
				r.stripComponent(ctx, object, field.Component, components)
			}

		case strapi.FieldTypeDynamicZone:
			if components == nil {
				continue
			}

			for _, object := range componentObjects(value) {
				if uid, hasUID := strapi.AsString(object[keyComponent]); hasUID && uid != "" {
					r.stripComponent(ctx, object, uid, components)
				}
			}
		}
	}
}

func (r *Resolver) stripComponent(ctx context.Context, data map[string]interface{}, uid string, components ComponentSchemaSource) {
	componentSchema, err := components.GetComponentSchema(ctx, uid)
	if err != nil {
		r.logger.Warn("keeping component without schema", map[string]interface{}{"component": uid, "error": err.Error()})

		return
	}

	r.strip(ctx, data, componentSchema, components)
}

// componentObjects returns the objects of a single or repeatable component
// value.
func componentObjects(value interface{}) []map[string]interface{} {
	if object, ok := strapi.AsMap(value); ok {
		return []map[string]interface{}{object}
	}

	items, ok := strapi.AsSlice(value)
	if !ok {
		return nil
	}

	objects := make([]map[string]interface{}, 0, len(items))

	for _, item := range items {
		if object, isObject := strapi.AsMap(item); isObject {
			objects = append(objects, object)
		}
	}

	return objects
}

// ResolveRelations maps old IDs to new ones using the mapping of targetUID.
// Unresolvable IDs are dropped with a warning. Fields left without IDs are
// omitted.
func (r *Resolver) ResolveRelations(relations map[string][]int, idMapping map[string]map[int]int, targetUID string) map[string][]int {
	targets := make(map[string]string, len(relations))
	for field := range relations {
		targets[field] = targetUID
	}

	return r.ResolveRelationsWithSchema(relations, idMapping, targets)
}

// ResolveRelationsWithSchema is ResolveRelations with a target UID per field
// path.
func (r *Resolver) ResolveRelationsWithSchema(relations map[string][]int, idMapping map[string]map[int]int, targets map[string]string) map[string][]int {
	resolved := map[string][]int{}

	for field, oldIDs := range relations {
		target := targets[field]
		mapping := idMapping[target]
		newIDs := make([]int, 0, len(oldIDs))

		for _, oldID := range oldIDs {
			newID, ok := mapping[oldID]
			if !ok {
				r.logger.Warn("could not resolve relation", map[string]interface{}{
					"field":  field,
					"target": target,
					"id":     oldID,
				})

				continue
			}

			newIDs = append(newIDs, newID)
		}

		if len(newIDs) > 0 {
			resolved[field] = newIDs
		}
	}

	return resolved
}

// BuildRelationPayload renders resolved relations for an update request:
// no IDs clears the relation, one ID is sent as a scalar, more as a list.
func BuildRelationPayload(relations map[string][]int) map[string]interface{} {
	payload := make(map[string]interface{}, len(relations))

	for field, ids := range relations {
		switch len(ids) {
		case 0:
			payload[field] = []int{}
		case 1:
			payload[field] = ids[0]
		default:
			payload[field] = append([]int(nil), ids...)
		}
	}

	return payload
}

// IsNestedPath reports whether a relation path points inside a component.
func IsNestedPath(path string) bool {
	return strings.ContainsAny(path, ".[")
}

// ApplyNestedRelations writes nested relation values from payload into
// copies of their top-level component fields taken from data. Top-level
// entries of payload are copied unchanged. Paths that no longer match the
// data are skipped.
func ApplyNestedRelations(payload, data map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}

	paths := make([]string, 0, len(payload))
	for path := range payload {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	for _, path := range paths {
		value := payload[path]

		if !IsNestedPath(path) {
			out[path] = value

			continue
		}

		segments, err := parsePath(path)
		if err != nil {
			return nil, err
		}

		root := segments[0].name
		if _, ok := out[root]; !ok {
			source, exists := data[root]
			if !exists {
				continue
			}

			out[root] = strapi.CloneValue(source)
		}

		out[root] = setPath(out[root], segments, value)
	}

	return out, nil
}

type pathSegment struct {
	name  string
	index int
}

// parsePath splits "blocks[1].link" into {blocks 1} {link -1}.
func parsePath(path string) ([]pathSegment, error) {
	parts := strings.Split(path, ".")
	segments := make([]pathSegment, 0, len(parts))

	for _, part := range parts {
		segment := pathSegment{name: part, index: -1}

		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, &strapi.FormatError{Message: fmt.Sprintf("invalid relation path %q", path)}
			}

			index, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				return nil, &strapi.FormatError{Message: fmt.Sprintf("invalid relation path %q", path), Err: err}
			}

			segment.name = part[:open]
			segment.index = index
		}

		segments = append(segments, segment)
	}

	return segments, nil
}

// setPath sets value at segments[1:] inside container, which is the value of
// segments[0]. The updated container is returned.
func setPath(container interface{}, segments []pathSegment, value interface{}) interface{} {
	current := container

	if segments[0].index >= 0 {
		items, ok := strapi.AsSlice(current)
		if !ok || segments[0].index >= len(items) {
			return container
		}

		current = items[segments[0].index]
	}

	object, ok := strapi.AsMap(current)
	if !ok {
		return container
	}

	rest := segments[1:]
	if len(rest) == 0 {
		return container
	}

	if len(rest) == 1 && rest[0].index < 0 {
		object[rest[0].name] = value

		return container
	}

	child, exists := object[rest[0].name]
	if !exists {
		return container
	}

	object[rest[0].name] = setPath(child, rest, value)

	return container
}

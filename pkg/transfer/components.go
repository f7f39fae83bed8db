package transfer

import (
	"context"
	"maps"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// PrepareComponents returns a copy of data ready to be written to another
// instance. Every component and dynamic zone entry loses its id, and its
// media fields are flattened to target IDs through mapping, at any depth the
// schemas describe.
func (r *Resolver) PrepareComponents(
	ctx context.Context,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
	mapping map[int]int,
) map[string]interface{} {
	prepared := strapi.CloneMap(data)
	if prepared == nil {
		return map[string]interface{}{}
	}

	r.prepare(ctx, prepared, schema, components, mapping)

	return prepared
}

func (r *Resolver) prepare(
	ctx context.Context,
	data map[string]interface{},
	schema *strapi.ContentTypeSchema,
	components ComponentSchemaSource,
	mapping map[int]int,
) {
	for name, value := range data {
		field, ok := schema.Field(name)
		if !ok {
			continue
		}

		switch field.Type {
		case strapi.FieldTypeComponent:
			for _, object := range componentObjects(value) {
				r.prepareComponent(ctx, object, field.Component, components, mapping)
			}

		case strapi.FieldTypeDynamicZone:
			for _, object := range componentObjects(value) {
				uid, _ := strapi.AsString(object[keyComponent])
				r.prepareComponent(ctx, object, uid, components, mapping)
			}
		}
	}
}

func (r *Resolver) prepareComponent(
	ctx context.Context,
	object map[string]interface{},
	uid string,
	components ComponentSchemaSource,
	mapping map[int]int,
) {
	delete(object, keyID)

	flattened := MediaPayload(object, mapping)
	clear(object)
	maps.Copy(object, flattened)

	if components == nil || uid == "" {
		return
	}

	componentSchema, err := components.GetComponentSchema(ctx, uid)
	if err != nil {
		r.logger.Debug("component schema unavailable, nested components keep their ids", map[string]interface{}{
			"component": uid,
			"error":     err.Error(),
		})

		return
	}

	r.prepare(ctx, object, componentSchema, components, mapping)
}

// StripComponentIDs is the schema-less counterpart of PrepareComponents. It
// returns a copy of data where list entries carrying __component lose their
// id. Single components cannot be told apart from JSON values without a
// schema and are left unchanged.
func StripComponentIDs(data map[string]interface{}) map[string]interface{} {
	stripped := strapi.CloneMap(data)
	if stripped == nil {
		return map[string]interface{}{}
	}

	for _, value := range stripped {
		items, ok := strapi.AsSlice(value)
		if !ok {
			continue
		}

		for _, item := range items {
			object, isObject := strapi.AsMap(item)
			if !isObject {
				continue
			}

			if _, isComponent := object[keyComponent]; isComponent {
				delete(object, keyID)
			}
		}
	}

	return stripped
}

package client

import (
	"context"

	"github.com/samber/lo"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// GetContentTypes lists content types. Plugin and admin types are dropped
// unless includePlugins is set.
func (c *Client) GetContentTypes(ctx context.Context, includePlugins bool) ([]*strapi.ContentTypeSchema, error) {
	resp, err := c.httpClient.Get(ctx, apiPath(constants.ContentTypesPath), nil)
	if err != nil {
		return nil, err
	}

	schemas, err := strapi.ParseContentTypeList(resp.Body)
	if err != nil {
		return nil, err
	}

	if includePlugins {
		return schemas, nil
	}

	return lo.Filter(schemas, func(schema *strapi.ContentTypeSchema, _ int) bool {
		return strapi.IsAPIContentType(schema.UID)
	}), nil
}

// GetComponents lists component schemas.
func (c *Client) GetComponents(ctx context.Context) ([]*strapi.ContentTypeSchema, error) {
	resp, err := c.httpClient.Get(ctx, apiPath(constants.ComponentsPath), nil)
	if err != nil {
		return nil, err
	}

	return strapi.ParseContentTypeList(resp.Body)
}

// GetContentTypeSchema fetches the schema of one content type.
func (c *Client) GetContentTypeSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error) {
	return c.fetchSchema(ctx, constants.ContentTypesPath, uid)
}

// GetComponentSchema fetches the schema of one component.
func (c *Client) GetComponentSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error) {
	return c.fetchSchema(ctx, constants.ComponentsPath, uid)
}

func (c *Client) fetchSchema(ctx context.Context, base, uid string) (*strapi.ContentTypeSchema, error) {
	resp, err := c.httpClient.Get(ctx, apiPath(base+"/"+uid), nil)
	if err != nil {
		return nil, &strapi.SchemaError{UID: uid, Err: err}
	}

	schema, err := strapi.ParseContentTypeSchema(uid, resp.Body)
	if err != nil {
		return nil, &strapi.SchemaError{UID: uid, Err: err}
	}

	return schema, nil
}

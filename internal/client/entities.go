package client

import (
	"context"
	"net/http"

	strapihttp "github.com/fivetwenty-io/strapi-client/internal/http"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// GetMany fetches one page of a collection. The first unambiguous response
// fixes the API version for the session.
func (c *Client) GetMany(ctx context.Context, endpoint string, query *strapi.QueryParams) (*strapi.NormalizedCollectionResponse, error) {
	resp, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	body, err := decodeObject(resp)
	if err != nil {
		return nil, err
	}

	c.observe(body)

	return strapi.NormalizeCollection(body, c.versions.Effective())
}

// GetOne fetches a single entity or a single type.
func (c *Client) GetOne(ctx context.Context, endpoint string, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error) {
	resp, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	return c.single(resp)
}

// Create posts {"data": data} to endpoint.
func (c *Client) Create(ctx context.Context, endpoint string, data map[string]interface{}, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error) {
	return c.write(ctx, http.MethodPost, endpoint, data, query)
}

// Update puts {"data": data} to endpoint, which must address the entity
// ("articles/abc123") or a single type ("homepage").
func (c *Client) Update(ctx context.Context, endpoint string, data map[string]interface{}, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error) {
	return c.write(ctx, http.MethodPut, endpoint, data, query)
}

// Remove deletes the entity at endpoint. Strapi v5 answers 204 with no body,
// in which case the returned response has no data.
func (c *Client) Remove(ctx context.Context, endpoint string) (*strapi.NormalizedSingleResponse, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	resp, err := c.httpClient.Delete(ctx, apiPath(endpoint))
	if err != nil {
		return nil, err
	}

	return c.single(resp)
}

func (c *Client) write(ctx context.Context, method, endpoint string, data map[string]interface{}, query *strapi.QueryParams) (*strapi.NormalizedSingleResponse, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	if data == nil {
		data = map[string]interface{}{}
	}

	resp, err := c.httpClient.Do(ctx, &strapihttp.Request{
		Method: method,
		Path:   apiPath(endpoint),
		Query:  query.ToValues(),
		Body:   map[string]interface{}{"data": data},
	})
	if err != nil {
		return nil, err
	}

	return c.single(resp)
}

func (c *Client) single(resp *strapihttp.Response) (*strapi.NormalizedSingleResponse, error) {
	body, err := decodeObject(resp)
	if err != nil {
		return nil, err
	}

	c.observe(body)

	return strapi.NormalizeSingle(body, c.versions.Effective())
}

func (c *Client) observe(body map[string]interface{}) {
	before := c.versions.Current()

	detected := c.versions.Observe(body)
	if before == strapi.VersionUnknown && detected != strapi.VersionUnknown {
		c.logger.Debug("detected Strapi API version", map[string]interface{}{"version": string(detected)})
	}
}

package client

import (
	"context"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

func newBulkExecutor(opts strapi.BulkOptions) *strapi.BulkExecutor {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	concurrency := opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultMaxConcurrency
	}

	return strapi.NewBulkExecutor(batchSize, concurrency)
}

// BulkCreate creates items in waves of opts.BatchSize. Individual failures are
// collected in the result; the error return is reserved for invalid input.
func (c *Client) BulkCreate(ctx context.Context, endpoint string, items []map[string]interface{}, opts strapi.BulkOptions) (*strapi.BulkResult, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	result := newBulkExecutor(opts).Execute(ctx, len(items),
		func(index int) interface{} { return items[index] },
		func(ctx context.Context, index int) (*strapi.NormalizedEntity, error) {
			resp, err := c.Create(ctx, endpoint, items[index], opts.Query)
			if err != nil {
				return nil, err
			}

			return resp.Data, nil
		},
		opts.Progress)

	c.logBulk("create", endpoint, result)

	return result, nil
}

// BulkUpdate updates items addressed by their ID.
func (c *Client) BulkUpdate(ctx context.Context, endpoint string, items []strapi.BulkUpdateItem, opts strapi.BulkOptions) (*strapi.BulkResult, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	result := newBulkExecutor(opts).Execute(ctx, len(items),
		func(index int) interface{} { return items[index] },
		func(ctx context.Context, index int) (*strapi.NormalizedEntity, error) {
			resp, err := c.Update(ctx, endpoint+"/"+items[index].ID, items[index].Data, opts.Query)
			if err != nil {
				return nil, err
			}

			return resp.Data, nil
		},
		opts.Progress)

	c.logBulk("update", endpoint, result)

	return result, nil
}

// BulkDelete removes the entities with the given IDs.
func (c *Client) BulkDelete(ctx context.Context, endpoint string, ids []string, opts strapi.BulkOptions) (*strapi.BulkResult, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	result := newBulkExecutor(opts).Execute(ctx, len(ids),
		func(index int) interface{} { return ids[index] },
		func(ctx context.Context, index int) (*strapi.NormalizedEntity, error) {
			resp, err := c.Remove(ctx, endpoint+"/"+ids[index])
			if err != nil {
				return nil, err
			}

			return resp.Data, nil
		},
		opts.Progress)

	c.logBulk("delete", endpoint, result)

	return result, nil
}

func (c *Client) logBulk(operation, endpoint string, result *strapi.BulkResult) {
	fields := map[string]interface{}{
		"operation": operation,
		"endpoint":  endpoint,
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}

	if result.Failed > 0 {
		c.logger.Warn("bulk operation finished with failures", fields)

		return
	}

	c.logger.Debug("bulk operation finished", fields)
}

package strapi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errListerBoom = errors.New("boom")

// pagedLister serves total entities in pages and records every request.
type pagedLister struct {
	total        int
	noPagination bool
	failOnPage   int
	requests     []*strapi.QueryParams
}

func (l *pagedLister) GetMany(ctx context.Context, endpoint string, query *strapi.QueryParams) (*strapi.NormalizedCollectionResponse, error) {
	l.requests = append(l.requests, query)

	if l.failOnPage > 0 && query.Page == l.failOnPage {
		return nil, errListerBoom
	}

	response := &strapi.NormalizedCollectionResponse{Data: []strapi.NormalizedEntity{}}

	start := (query.Page - 1) * query.PageSize
	for i := start; i < start+query.PageSize && i < l.total; i++ {
		response.Data = append(response.Data, strapi.NormalizedEntity{ID: i + 1, Attributes: map[string]interface{}{}})
	}

	if !l.noPagination {
		pageCount := (l.total + query.PageSize - 1) / query.PageSize
		response.Meta.Pagination = &strapi.Pagination{
			Page:      query.Page,
			PageSize:  query.PageSize,
			PageCount: pageCount,
			Total:     l.total,
		}
	}

	return response, nil
}

func TestEntityStream_InvalidPageSize(t *testing.T) {
	t.Parallel()

	_, err := strapi.NewEntityStream(context.Background(), &pagedLister{}, "articles", nil, 0)
	require.ErrorIs(t, err, strapi.ErrInvalidPageSize)
	assert.ErrorIs(t, err, strapi.ErrValidation)
}

func TestEntityStream_PagesThroughCollection(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{total: 5}

	stream, err := strapi.NewEntityStream(context.Background(), lister, "articles", strapi.NewQueryParams().WithSort("id"), 2)
	require.NoError(t, err)

	entities, err := stream.All()
	require.NoError(t, err)

	require.Len(t, entities, 5)
	assert.Equal(t, 1, entities[0].ID)
	assert.Equal(t, 5, entities[4].ID)
	assert.Equal(t, 3, stream.PagesFetched())

	for i, request := range lister.requests {
		assert.Equal(t, i+1, request.Page)
		assert.Equal(t, 2, request.PageSize)
		assert.Equal(t, []string{"id"}, request.Sort)
	}
}

func TestEntityStream_NoFetchAhead(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{total: 4}

	stream, err := strapi.NewEntityStream(context.Background(), lister, "articles", nil, 2)
	require.NoError(t, err)

	assert.True(t, stream.HasNext())
	assert.Empty(t, lister.requests)

	_, err = stream.Next()
	require.NoError(t, err)
	_, err = stream.Next()
	require.NoError(t, err)
	assert.Len(t, lister.requests, 1)

	assert.True(t, stream.HasNext())
	assert.Len(t, lister.requests, 1)

	_, err = stream.Next()
	require.NoError(t, err)
	assert.Len(t, lister.requests, 2)
}

func TestEntityStream_EmptyCollection(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{total: 0}

	stream, err := strapi.NewEntityStream(context.Background(), lister, "articles", nil, 10)
	require.NoError(t, err)

	_, err = stream.Next()
	require.ErrorIs(t, err, strapi.ErrNoMoreItems)
	assert.False(t, stream.HasNext())
	assert.Equal(t, 1, stream.PagesFetched())
}

func TestEntityStream_NoPaginationMetadata(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{total: 3, noPagination: true}

	stream, err := strapi.NewEntityStream(context.Background(), lister, "articles", nil, 2)
	require.NoError(t, err)

	entities, err := stream.All()
	require.NoError(t, err)
	assert.Len(t, entities, 2)
	assert.Equal(t, 1, stream.PagesFetched())
}

func TestEntityStream_FetchError(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{total: 10, failOnPage: 2}

	stream, err := strapi.NewEntityStream(context.Background(), lister, "articles", nil, 3)
	require.NoError(t, err)

	seen := 0
	err = stream.ForEach(func(*strapi.NormalizedEntity) error {
		seen++

		return nil
	})
	require.ErrorIs(t, err, errListerBoom)
	assert.Equal(t, 3, seen)
	assert.False(t, stream.HasNext())
}

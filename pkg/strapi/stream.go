package strapi

import (
	"context"
	"errors"
	"fmt"
)

// EntityStream lazily pages through a collection. A page is fetched only
// when the previous one has been consumed, so at most one page is held in
// memory. A stream cannot be restarted.
type EntityStream struct {
	ctx      context.Context
	lister   EntityLister
	endpoint string
	query    *QueryParams
	pageSize int

	buffer    []NormalizedEntity
	position  int
	page      int
	pageCount int
	done      bool
	fetched   int
}

// NewEntityStream creates a stream over endpoint. pageSize must be at least 1.
func NewEntityStream(ctx context.Context, lister EntityLister, endpoint string, query *QueryParams, pageSize int) (*EntityStream, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, pageSize)
	}

	return &EntityStream{
		ctx:      ctx,
		lister:   lister,
		endpoint: endpoint,
		query:    query.Clone(),
		pageSize: pageSize,
	}, nil
}

// HasNext reports whether Next may return another entity. It never fetches;
// a page that turns out empty makes the following Next return ErrNoMoreItems.
func (s *EntityStream) HasNext() bool {
	if s.position < len(s.buffer) {
		return true
	}

	return !s.done
}

// Next returns the next entity, or ErrNoMoreItems once the collection is
// exhausted.
func (s *EntityStream) Next() (*NormalizedEntity, error) {
	for s.position >= len(s.buffer) {
		if s.done {
			return nil, ErrNoMoreItems
		}

		err := s.fetchPage()
		if err != nil {
			s.done = true

			return nil, err
		}
	}

	entity := s.buffer[s.position]
	s.position++

	return &entity, nil
}

// PagesFetched returns how many pages have been requested so far.
func (s *EntityStream) PagesFetched() int {
	return s.fetched
}

func (s *EntityStream) fetchPage() error {
	s.page++

	query := s.query.Clone()
	query.Page = s.page
	query.PageSize = s.pageSize
	query.Start = 0
	query.Limit = 0

	response, err := s.lister.GetMany(s.ctx, s.endpoint, query)
	s.fetched++

	if err != nil {
		return fmt.Errorf("fetching page %d of %s: %w", s.page, s.endpoint, err)
	}

	s.buffer = response.Data
	s.position = 0

	pagination := response.Meta.Pagination
	if pagination == nil {
		// No pagination metadata: the endpoint is a single page.
		s.done = true

		return nil
	}

	s.pageCount = pagination.PageCount
	if s.page >= s.pageCount || len(response.Data) == 0 {
		s.done = true
	}

	return nil
}

// ForEach calls fn for every remaining entity. Iteration stops at the first
// error from fn or from a page fetch.
func (s *EntityStream) ForEach(fn func(*NormalizedEntity) error) error {
	for {
		entity, err := s.Next()
		if errors.Is(err, ErrNoMoreItems) {
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

// All drains the stream into a slice.
func (s *EntityStream) All() ([]NormalizedEntity, error) {
	var entities []NormalizedEntity

	err := s.ForEach(func(entity *NormalizedEntity) error {
		entities = append(entities, *entity)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entities, nil
}

// Package schema memoizes Strapi content-type and component schemas for the
// lifetime of an exporter or importer. Schemas can additionally be persisted
// to a shared strapi.Cache so repeated CLI runs skip the introspection calls.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

const (
	contentTypeKeyPrefix = "content-type:"
	componentKeyPrefix   = "component:"
	defaultStoreTTL      = time.Hour
)

// Fetcher loads schemas from the Content-Type Builder API. strapi.Client
// implements it.
type Fetcher interface {
	GetContentTypeSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error)
	GetComponentSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore persists schemas to store. Store failures are logged and ignored.
func WithStore(store strapi.Cache) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithStoreTTL sets how long persisted schemas stay valid.
func WithStoreTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.storeTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger strapi.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache memoizes schemas by UID. A failed fetch is never cached.
type Cache struct {
	fetcher  Fetcher
	store    strapi.Cache
	storeTTL time.Duration
	logger   strapi.Logger

	mutex      sync.Mutex
	types      map[string]*strapi.ContentTypeSchema
	components map[string]*strapi.ContentTypeSchema
	fetches    int
}

// New creates a schema cache that loads misses through fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	cache := &Cache{
		fetcher:    fetcher,
		storeTTL:   defaultStoreTTL,
		logger:     logging.Nop(),
		types:      map[string]*strapi.ContentTypeSchema{},
		components: map[string]*strapi.ContentTypeSchema{},
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// GetSchema returns the schema of a content type, fetching it on a miss.
func (c *Cache) GetSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error) {
	return c.get(ctx, uid, c.types, contentTypeKeyPrefix, c.fetcher.GetContentTypeSchema)
}

// GetComponentSchema returns the schema of a component, fetching it on a miss.
func (c *Cache) GetComponentSchema(ctx context.Context, uid string) (*strapi.ContentTypeSchema, error) {
	return c.get(ctx, uid, c.components, componentKeyPrefix, c.fetcher.GetComponentSchema)
}

func (c *Cache) get(
	ctx context.Context,
	uid string,
	memo map[string]*strapi.ContentTypeSchema,
	prefix string,
	fetch func(context.Context, string) (*strapi.ContentTypeSchema, error),
) (*strapi.ContentTypeSchema, error) {
	c.mutex.Lock()
	cached, ok := memo[uid]
	c.mutex.Unlock()

	if ok {
		return cached, nil
	}

	if stored := c.loadStored(ctx, prefix+uid); stored != nil {
		c.remember(memo, uid, stored)

		return stored, nil
	}

	if c.fetcher == nil {
		return nil, &strapi.SchemaError{UID: uid, Err: strapi.ErrNotFound}
	}

	c.mutex.Lock()
	c.fetches++
	c.mutex.Unlock()

	fetched, err := fetch(ctx, uid)
	if err != nil {
		schemaErr := &strapi.SchemaError{}
		if errors.As(err, &schemaErr) {
			return nil, err
		}

		return nil, &strapi.SchemaError{UID: uid, Err: err}
	}

	c.remember(memo, uid, fetched)
	c.saveStored(ctx, prefix+uid, fetched)

	return fetched, nil
}

func (c *Cache) remember(memo map[string]*strapi.ContentTypeSchema, uid string, schema *strapi.ContentTypeSchema) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	memo[uid] = schema
}

func (c *Cache) loadStored(ctx context.Context, key string) *strapi.ContentTypeSchema {
	if c.store == nil {
		return nil
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, strapi.ErrCacheMiss) {
			c.logger.Warn("schema store read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}

		return nil
	}

	var schema strapi.ContentTypeSchema

	err = json.Unmarshal(entry.Data, &schema)
	if err != nil {
		c.logger.Warn("discarding unreadable stored schema", map[string]interface{}{"key": key, "error": err.Error()})

		return nil
	}

	return &schema
}

func (c *Cache) saveStored(ctx context.Context, key string, schema *strapi.ContentTypeSchema) {
	if c.store == nil {
		return
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return
	}

	err = c.store.Set(ctx, key, &strapi.CacheEntry{Data: data, ExpiresAt: time.Now().Add(c.storeTTL)})
	if err != nil {
		c.logger.Warn("schema store write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// HasSchema reports whether a content-type schema is held in memory.
func (c *Cache) HasSchema(uid string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, ok := c.types[uid]

	return ok
}

// CacheSchema inserts a content-type schema without fetching it.
func (c *Cache) CacheSchema(uid string, schema *strapi.ContentTypeSchema) {
	c.remember(c.types, uid, schema)
}

// CacheComponentSchema inserts a component schema without fetching it.
func (c *Cache) CacheComponentSchema(uid string, schema *strapi.ContentTypeSchema) {
	c.remember(c.components, uid, schema)
}

// ClearCache drops every schema held in memory. The backing store is left
// alone.
func (c *Cache) ClearCache() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.types = map[string]*strapi.ContentTypeSchema{}
	c.components = map[string]*strapi.ContentTypeSchema{}
}

// Size returns the number of schemas held in memory, components included.
func (c *Cache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.types) + len(c.components)
}

// FetchCount returns how many schemas were fetched from the server.
func (c *Cache) FetchCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.fetches
}

// Snapshot returns every cached schema keyed by UID, components included.
func (c *Cache) Snapshot() map[string]*strapi.ContentTypeSchema {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	out := make(map[string]*strapi.ContentTypeSchema, len(c.types)+len(c.components))
	maps.Copy(out, c.components)
	maps.Copy(out, c.types)

	return out
}

package transfer

import (
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/fivetwenty-io/strapi-client/pkg/schema"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Option configures an Exporter or an Importer.
type Option func(*settings)

type settings struct {
	logger   strapi.Logger
	schemas  *schema.Cache
	pageSize int
}

// WithLogger sets the logger. Warnings are logged as well as collected.
func WithLogger(logger strapi.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchemaCache shares a schema cache, for example one backed by NATS KV.
// By default each exporter and importer owns an in-memory cache.
func WithSchemaCache(cache *schema.Cache) Option {
	return func(s *settings) {
		s.schemas = cache
	}
}

// WithPageSize sets the page size used to stream entities during export.
func WithPageSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func newSettings(fetcher schema.Fetcher, opts []Option) *settings {
	s := &settings{
		logger:   logging.Nop(),
		pageSize: constants.ExportPageSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.schemas == nil {
		s.schemas = schema.New(fetcher, schema.WithLogger(s.logger))
	}

	return s
}

func report(progress ProgressFunc, current, total int, message string) {
	if progress != nil {
		progress(current, total, message)
	}
}

// Package strapi provides types, interfaces, and helpers for working with the
// Strapi REST API across the v4 and v5 wire formats.
//
// # Overview
//
// Strapi v4 nests every field of an entry under "attributes" and identifies it
// by a numeric id. Strapi v5 returns flat objects identified by a string
// documentId. This package normalizes both into NormalizedEntity so callers
// never branch on the server version. A concrete client is provided by the
// strapiclient package, which wires configuration, transport, and
// authentication:
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/strapi-client/pkg/strapi"
//	  "github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := strapiclient.New(&strapi.Config{
//	    BaseURL:  "http://localhost:1337",
//	    APIToken: "token",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  articles, err := cli.GetMany(ctx, "articles", strapi.NewQueryParams().WithPage(1, 25))
//	  if err != nil { log.Fatal(err) }
//	  _ = articles
//	}
//
// # Version detection
//
// With APIVersion "auto" the version is inferred from the first collection
// response that carries an unambiguous entry and is then kept for the rest of
// the session. Ambiguous responses are parsed as v4 and not remembered.
//
// # Streaming
//
// EntityStream pages through a collection lazily, holding one page at a time:
//
//	stream, err := strapi.NewEntityStream(ctx, cli, "articles", nil, 100)
//	if err != nil { /* handle error */ }
//	for stream.HasNext() {
//	  entity, err := stream.Next()
//	  if errors.Is(err, strapi.ErrNoMoreItems) { break }
//	  _ = entity
//	}
//
// # Errors
//
// Non-2xx responses become *APIError. Its Unwrap returns the kind sentinel for
// the status (ErrNotFound, ErrRateLimit, ...), so errors.Is works on either.
//
// # Caching
//
// Cache is implemented by MemoryCache, NATSKVCache (JetStream key-value),
// NoOpCache and CacheChain. The schema package uses it to share fetched
// content-type schemas between processes.
package strapi

// Package strapiclient is the entry point for constructing a Strapi REST
// client that implements the strapi.Client interface.
//
// Quick start
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
//
//	  cli, err := strapiclient.New(&strapi.Config{
//	    BaseURL:  "http://localhost:1337",
//	    APIToken: "token",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  articles, err := cli.GetMany(ctx, "articles", strapi.NewQueryParams().WithPopulate("*"))
//	  if err != nil { log.Fatal(err) }
//	  _ = articles
//	}
//
// Environment
//
// NewFromEnv reads STRAPI_URL, STRAPI_API_TOKEN, STRAPI_ADMIN_EMAIL,
// STRAPI_ADMIN_PASSWORD, STRAPI_API_VERSION, STRAPI_TIMEOUT,
// STRAPI_RETRY_MAX, STRAPI_RETRY_WAIT_MIN, STRAPI_RETRY_WAIT_MAX,
// STRAPI_DEBUG and STRAPI_USER_AGENT.
//
// Migrations
//
// The transfer package builds on the client to export content types with
// their relations and media and to import them into another instance. Pair
// it with NewSchemaCache to share schemas through NATS KV between runs.
package strapiclient

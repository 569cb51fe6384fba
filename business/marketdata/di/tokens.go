// Package di contains dependency injection tokens for the marketdata context.
package di

import (
	"github.com/fd1az/book-aggregator/business/marketdata/app"
	"github.com/fd1az/book-aggregator/internal/di"
)

// Public service tokens - exposed to other modules
var (
	AdapterFactory = di.NewToken[app.AdapterFactory]("marketdata.AdapterFactory")
)

// Helper functions for type-safe access
func GetAdapterFactory(c di.ServiceRegistry) app.AdapterFactory {
	return di.GetToken(c, AdapterFactory)
}

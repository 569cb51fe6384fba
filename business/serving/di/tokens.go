// Package di contains dependency injection tokens for the serving context.
package di

import (
	"github.com/fd1az/book-aggregator/business/serving/app"
	"github.com/fd1az/book-aggregator/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BookService = di.NewToken[*app.Service]("serving.BookService")
)

// Helper functions for type-safe access
func GetBookService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, BookService)
}

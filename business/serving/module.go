// Package serving implements the RPC subscription bounded context.
package serving

import (
	"context"

	mdDI "github.com/fd1az/book-aggregator/business/marketdata/di"
	"github.com/fd1az/book-aggregator/business/serving/app"
	servingDI "github.com/fd1az/book-aggregator/business/serving/di"
	"github.com/fd1az/book-aggregator/internal/config"
	"github.com/fd1az/book-aggregator/internal/di"
	"github.com/fd1az/book-aggregator/internal/logger"
	"github.com/fd1az/book-aggregator/internal/monolith"
)

// Module implements the serving bounded context.
type Module struct{}

// RegisterServices registers the subscription service with the DI
// container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, servingDI.BookService, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		adapters := mdDI.GetAdapterFactory(sr)

		svc, err := app.NewService(app.Config{
			Symbol: cfg.Book.Symbol,
			Depth:  cfg.Book.MaxDepth,
		}, adapters, log)
		if err != nil {
			panic("failed to create book service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup resolves the service eagerly so wiring errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	servingDI.GetBookService(mono.Services())

	mono.Logger().Info(ctx, "serving module started",
		"symbol", mono.Config().Book.Symbol,
		"depth", mono.Config().Book.MaxDepth)
	return nil
}

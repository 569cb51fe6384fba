// Package marketdata implements the venue feed bounded context.
package marketdata

import (
	"context"

	"github.com/fd1az/book-aggregator/business/marketdata/app"
	mdDI "github.com/fd1az/book-aggregator/business/marketdata/di"
	"github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/business/marketdata/infra/binance"
	"github.com/fd1az/book-aggregator/business/marketdata/infra/bitstamp"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/config"
	"github.com/fd1az/book-aggregator/internal/di"
	"github.com/fd1az/book-aggregator/internal/logger"
	"github.com/fd1az/book-aggregator/internal/monolith"
)

// Module implements the marketdata bounded context.
type Module struct{}

// RegisterServices registers the adapter factory with the DI container.
// The factory builds fresh adapters per call so every consumer owns its
// own feeds.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, mdDI.AdapterFactory, func(sr di.ServiceRegistry) app.AdapterFactory {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return func() ([]app.FeedAdapter, error) {
			venues, err := domain.ParseVenues(cfg.Book.Exchanges)
			if err != nil {
				return nil, err
			}

			adapters := make([]app.FeedAdapter, 0, len(venues))
			for _, venue := range venues {
				var (
					adapter app.FeedAdapter
					err     error
				)
				switch venue {
				case domain.VenueBinance:
					adapter, err = binance.NewAdapter(binance.Config{
						BaseURL:        cfg.Venues.BinanceWSURL,
						ConnectTimeout: cfg.Venues.ConnectTimeout,
					}, log)
				case domain.VenueBitstamp:
					adapter, err = bitstamp.NewAdapter(bitstamp.Config{
						BaseURL:        cfg.Venues.BitstampWSURL,
						ConnectTimeout: cfg.Venues.ConnectTimeout,
					}, log)
				default:
					err = apperror.New(apperror.CodeUnknownVenue,
						apperror.WithContext(venue.String()))
				}
				if err != nil {
					return nil, err
				}
				adapters = append(adapters, adapter)
			}
			return adapters, nil
		}
	})

	return nil
}

// Startup validates the configured venues so a bad exchange list fails
// at boot rather than on the first subscription.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	venues, err := domain.ParseVenues(mono.Config().Book.Exchanges)
	if err != nil {
		return err
	}

	mono.Logger().Info(ctx, "marketdata module started", "venues", len(venues))
	return nil
}

// Package app contains the application services for the serving context.
package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	marketdataapp "github.com/fd1az/book-aggregator/business/marketdata/app"
	orderbookapp "github.com/fd1az/book-aggregator/business/orderbook/app"
	"github.com/fd1az/book-aggregator/business/orderbook/domain"
	"github.com/fd1az/book-aggregator/internal/apm"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/bookrpc"
	"github.com/fd1az/book-aggregator/internal/logger"
)

const meterName = "serving"

// Messages surfaced on the RPC boundary.
const (
	msgBuildFailed = "could not create orderbook"
	msgUpdateLost  = "could not retrieve update from orderbook"
)

// Config holds the per-service aggregation settings.
type Config struct {
	Symbol string
	Depth  int
}

// serviceMetrics holds OTEL metric instruments.
type serviceMetrics struct {
	subscriptions  metric.Int64UpDownCounter
	summariesSent  metric.Int64Counter
	updatesDropped metric.Int64Counter
	feedErrors     metric.Int64Counter
}

// Service implements the OrderbookAggregator RPC surface.
type Service struct {
	bookrpc.UnimplementedOrderbookAggregatorServer

	config   Config
	logger   logger.LoggerInterface
	adapters marketdataapp.AdapterFactory

	tracer  apm.Tracer
	metrics *serviceMetrics
}

// NewService creates the subscription service. Each subscription gets a
// fresh adapter set from the factory; nothing is shared between clients.
func NewService(cfg Config, adapters marketdataapp.AdapterFactory, log logger.LoggerInterface) (*Service, error) {
	s := &Service{
		config:   cfg,
		logger:   log,
		adapters: adapters,
		tracer:   apm.NewTracer(meterName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Service) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.subscriptions, err = meter.Int64UpDownCounter(
		"book_subscriptions",
		metric.WithDescription("Active BookSummary subscriptions"),
	)
	if err != nil {
		return err
	}

	s.metrics.summariesSent, err = meter.Int64Counter(
		"book_summaries_sent_total",
		metric.WithDescription("Summaries pushed to subscribers"),
	)
	if err != nil {
		return err
	}

	s.metrics.updatesDropped, err = meter.Int64Counter(
		"book_updates_dropped_total",
		metric.WithDescription("Merged views dropped for slow subscribers"),
	)
	if err != nil {
		return err
	}

	s.metrics.feedErrors, err = meter.Int64Counter(
		"book_feed_errors_total",
		metric.WithDescription("Per-frame feed errors observed on subscriptions"),
	)
	if err != nil {
		return err
	}

	return nil
}

// BookSummary builds a fresh aggregator for the subscription and streams
// every merged view until the client goes away or all feeds die.
func (s *Service) BookSummary(_ *bookrpc.Empty, stream bookrpc.OrderbookAggregator_BookSummaryServer) error {
	ctx, span := s.tracer.StartSpanFromContext(stream.Context(), "book.subscribe")
	defer span.End()
	span.SetAttributes(
		attribute.String("book.symbol", s.config.Symbol),
		attribute.Int("book.depth", s.config.Depth),
	)

	s.metrics.subscriptions.Add(ctx, 1)
	defer s.metrics.subscriptions.Add(ctx, -1)

	adapters, err := s.adapters()
	if err != nil {
		s.logger.Error(ctx, "adapter setup failed", "error", err)
		span.NoticeError(err)
		return status.Error(codes.Aborted, msgBuildFailed)
	}

	aggregator, err := orderbookapp.NewBuilder(s.logger).
		WithDepth(s.config.Depth).
		WithSymbol(s.config.Symbol).
		WithAdapters(adapters...).
		Build(ctx)
	if err != nil {
		s.logger.Error(ctx, "orderbook build failed", "error", err)
		span.NoticeError(err)
		return status.Error(codes.Aborted, msgBuildFailed)
	}
	defer aggregator.Close()

	s.logger.Info(ctx, "subscription started",
		"symbol", s.config.Symbol, "depth", s.config.Depth)

	updates := s.pump(ctx, aggregator.Updates())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "subscription cancelled by client")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return status.Error(codes.DataLoss, msgUpdateLost)
			}
			if update.Err != nil {
				if apperror.HasCode(update.Err, apperror.CodeStreamCancelled) {
					return status.Error(codes.DataLoss, msgUpdateLost)
				}
				// Per-frame feed errors are not fatal to the subscription;
				// terminating the RPC would throw away the healthy venues.
				s.metrics.feedErrors.Add(ctx, 1)
				s.logger.Warn(ctx, "feed error on subscription", "error", update.Err)
				continue
			}
			if err := stream.Send(toSummary(update.View)); err != nil {
				return err
			}
			s.metrics.summariesSent.Add(ctx, 1)
		}
	}
}

// pump decouples the merge engine from the subscriber through a bounded
// buffer. When the subscriber lags, the oldest pending view is dropped
// in favor of the newest: top-of-book data values liveness over
// completeness.
func (s *Service) pump(ctx context.Context, in <-chan orderbookapp.Update) <-chan orderbookapp.Update {
	out := make(chan orderbookapp.Update, 1)

	go func() {
		defer close(out)
		for update := range in {
			select {
			case out <- update:
				continue
			case <-ctx.Done():
				return
			default:
			}

			select {
			case <-out:
				s.metrics.updatesDropped.Add(ctx, 1)
			default:
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// toSummary converts a merged view to its wire form. Exchange names are
// TitleCase on the wire.
func toSummary(view *domain.MergedView) *bookrpc.Summary {
	summary := &bookrpc.Summary{
		Bids: make([]*bookrpc.Level, len(view.Bids)),
		Asks: make([]*bookrpc.Level, len(view.Asks)),
	}
	for i, l := range view.Bids {
		summary.Bids[i] = &bookrpc.Level{Price: l.Price, Amount: l.Amount, Exchange: l.Venue.String()}
	}
	for i, l := range view.Asks {
		summary.Asks[i] = &bookrpc.Level{Price: l.Price, Amount: l.Amount, Exchange: l.Venue.String()}
	}
	if spread, ok := view.Spread(); ok {
		summary.Spread = spread
	}
	return summary
}

package app

import (
	"context"
	"sync"
	"time"

	marketdataapp "github.com/fd1az/book-aggregator/business/marketdata/app"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/circuitbreaker"
	"github.com/fd1az/book-aggregator/internal/logger"
)

// Aggregator is a running merged-book pipeline: connected feeds, the
// fan-in multiplexer, and the merge engine.
type Aggregator struct {
	updates  <-chan Update
	adapters []marketdataapp.FeedAdapter
	cancel   context.CancelFunc

	closeOnce sync.Once
}

// Updates returns the merged stream. It closes after the terminal
// StreamCancelled update.
func (a *Aggregator) Updates() <-chan Update {
	return a.updates
}

// Close tears down every feed websocket and stops the pipeline.
func (a *Aggregator) Close() error {
	a.closeOnce.Do(func() {
		for _, adapter := range a.adapters {
			_ = adapter.Close()
		}
		a.cancel()
	})
	return nil
}

// Builder assembles an Aggregator from (symbol, depth, venue adapters).
// Configuration is validated at Build, the sole point of error emission.
type Builder struct {
	logger logger.LoggerInterface

	depth    int
	symbol   string
	adapters []marketdataapp.FeedAdapter
}

// NewBuilder creates an empty builder.
func NewBuilder(log logger.LoggerInterface) *Builder {
	return &Builder{logger: log}
}

// WithDepth sets the per-side cap of the merged view.
func (b *Builder) WithDepth(depth int) *Builder {
	b.depth = depth
	return b
}

// WithSymbol sets the trading pair in venue-accepted lowercase form.
func (b *Builder) WithSymbol(symbol string) *Builder {
	b.symbol = symbol
	return b
}

// WithAdapters sets the venue feeds to aggregate.
func (b *Builder) WithAdapters(adapters ...marketdataapp.FeedAdapter) *Builder {
	b.adapters = append(b.adapters, adapters...)
	return b
}

func (b *Builder) validate() error {
	if b.depth <= 0 {
		return apperror.New(apperror.CodeDepthNotPositive)
	}
	if b.symbol == "" {
		return apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("symbol"))
	}
	if len(b.adapters) == 0 {
		return apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("adapters"))
	}
	return nil
}

// Build connects every adapter concurrently, so total connect time is
// bounded by the slowest venue rather than their sum, and wires the
// pipeline. Any connect failure tears down the feeds that did come up
// and fails the build.
func (b *Builder) Build(ctx context.Context) (*Aggregator, error) {
	if err := b.validate(); err != nil {
		return nil, apperror.New(apperror.CodeOrderbookBuildFailed,
			apperror.WithCause(err))
	}

	runCtx, cancel := context.WithCancel(ctx)

	type connectResult struct {
		feed <-chan marketdataapp.FeedEvent
		err  error
	}
	results := make([]connectResult, len(b.adapters))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(len(b.adapters))
	for i, adapter := range b.adapters {
		go func(i int, adapter marketdataapp.FeedAdapter) {
			defer wg.Done()
			breaker := circuitbreaker.New[<-chan marketdataapp.FeedEvent](
				circuitbreaker.DefaultConfig(adapter.Venue().String()))
			feed, err := breaker.Execute(func() (<-chan marketdataapp.FeedEvent, error) {
				return adapter.Connect(runCtx, b.symbol, b.depth)
			})
			results[i] = connectResult{feed: feed, err: err}
		}(i, adapter)
	}
	wg.Wait()

	feeds := make([]<-chan marketdataapp.FeedEvent, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			for _, adapter := range b.adapters {
				_ = adapter.Close()
			}
			cancel()
			return nil, apperror.New(apperror.CodeOrderbookBuildFailed,
				apperror.WithCause(res.err),
				apperror.WithContext(b.adapters[i].Venue().String()))
		}
		feeds = append(feeds, res.feed)
	}

	b.logger.Info(ctx, "orderbook feeds connected",
		"symbol", b.symbol,
		"depth", b.depth,
		"venues", len(feeds),
		"elapsed", time.Since(start).String())

	merged := marketdataapp.Merge(runCtx, feeds...)
	updates := Stream(runCtx, b.depth, merged)

	return &Aggregator{
		updates:  updates,
		adapters: b.adapters,
		cancel:   cancel,
	}, nil
}

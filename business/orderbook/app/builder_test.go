package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	marketdataapp "github.com/fd1az/book-aggregator/business/marketdata/app"
	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

// fakeAdapter is an in-memory FeedAdapter for builder tests.
type fakeAdapter struct {
	venue      marketdata.Venue
	snapshots  []*marketdata.Snapshot
	connectErr error

	connected bool
	closed    bool
	symbol    string
	depth     int
}

func (f *fakeAdapter) Venue() marketdata.Venue { return f.venue }

func (f *fakeAdapter) Connect(ctx context.Context, symbol string, depth int) (<-chan marketdataapp.FeedEvent, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connected = true
	f.symbol = symbol
	f.depth = depth

	events := make(chan marketdataapp.FeedEvent, len(f.snapshots))
	for _, snap := range f.snapshots {
		events <- marketdataapp.FeedEvent{Venue: f.venue, Snapshot: snap}
	}
	close(events)
	return events, nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func TestBuilderValidation(t *testing.T) {
	adapter := &fakeAdapter{venue: marketdata.VenueBinance}

	tests := []struct {
		name  string
		build func() *Builder
		cause apperror.Code
	}{
		{
			name: "zero depth",
			build: func() *Builder {
				return NewBuilder(testLogger()).WithDepth(0).WithSymbol("ethbtc").WithAdapters(adapter)
			},
			cause: apperror.CodeDepthNotPositive,
		},
		{
			name: "missing symbol",
			build: func() *Builder {
				return NewBuilder(testLogger()).WithDepth(2).WithAdapters(adapter)
			},
			cause: apperror.CodeRequiredField,
		},
		{
			name: "no adapters",
			build: func() *Builder {
				return NewBuilder(testLogger()).WithDepth(2).WithSymbol("ethbtc")
			},
			cause: apperror.CodeRequiredField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build(context.Background())
			if err == nil {
				t.Fatal("Build succeeded, want error")
			}
			if apperror.GetCode(err) != apperror.CodeOrderbookBuildFailed {
				t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeOrderbookBuildFailed)
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatal("not an AppError")
			}
			if apperror.GetCode(appErr.Unwrap()) != tt.cause {
				t.Errorf("cause = %s, want %s", apperror.GetCode(appErr.Unwrap()), tt.cause)
			}
		})
	}
}

func TestBuilderConnectsAllAdapters(t *testing.T) {
	binance := &fakeAdapter{
		venue: marketdata.VenueBinance,
		snapshots: []*marketdata.Snapshot{
			{Bids: levels([2]float64{10, 1}), Asks: levels([2]float64{11, 1})},
		},
	}
	bitstamp := &fakeAdapter{venue: marketdata.VenueBitstamp}

	agg, err := NewBuilder(testLogger()).
		WithDepth(2).
		WithSymbol("ethbtc").
		WithAdapters(binance, bitstamp).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer agg.Close()

	if !binance.connected || !bitstamp.connected {
		t.Error("not all adapters connected")
	}
	if binance.symbol != "ethbtc" || binance.depth != 2 {
		t.Errorf("adapter got (%q, %d), want (ethbtc, 2)", binance.symbol, binance.depth)
	}

	select {
	case update := <-agg.Updates():
		if update.Err != nil {
			t.Fatalf("first update error: %v", update.Err)
		}
		if update.View.Bids[0].Price != 10 {
			t.Errorf("first view = %+v", update.View)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update from built aggregator")
	}
}

func TestBuilderFailsWhenAnyAdapterFails(t *testing.T) {
	healthy := &fakeAdapter{venue: marketdata.VenueBinance}
	broken := &fakeAdapter{
		venue:      marketdata.VenueBitstamp,
		connectErr: apperror.New(apperror.CodeHandshakeFailed),
	}

	_, err := NewBuilder(testLogger()).
		WithDepth(2).
		WithSymbol("ethbtc").
		WithAdapters(healthy, broken).
		Build(context.Background())
	if err == nil {
		t.Fatal("Build succeeded despite failing adapter")
	}
	if apperror.GetCode(err) != apperror.CodeOrderbookBuildFailed {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeOrderbookBuildFailed)
	}
	if !healthy.closed {
		t.Error("surviving adapter not closed after failed build")
	}
}

func TestAggregatorCloseClosesAdapters(t *testing.T) {
	adapter := &fakeAdapter{venue: marketdata.VenueBinance}

	agg, err := NewBuilder(testLogger()).
		WithDepth(1).
		WithSymbol("ethbtc").
		WithAdapters(adapter).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := agg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !adapter.closed {
		t.Error("adapter not closed")
	}
}

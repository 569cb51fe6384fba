package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/book-aggregator/business/marketdata/app"
	"github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/logger"
	"github.com/fd1az/book-aggregator/internal/wsconn"
)

const (
	meterName = "binance"

	// BaseWSURL is the production websocket endpoint. The depth stream is
	// addressed per symbol, no subscribe frame is needed.
	BaseWSURL = "wss://stream.binance.com:9443/ws"
)

// Config holds configuration for the Binance feed adapter.
type Config struct {
	BaseURL        string // defaults to BaseWSURL
	ConnectTimeout time.Duration
}

// feedMetrics holds OTEL metric instruments.
type feedMetrics struct {
	framesReceived metric.Int64Counter
	decodeErrors   metric.Int64Counter
}

// Adapter streams book snapshots for one symbol from Binance.
type Adapter struct {
	config Config
	logger logger.LoggerInterface

	connMu sync.Mutex
	conn   *wsconn.Client

	metrics *feedMetrics
}

// NewAdapter creates a Binance feed adapter. Connect must be called
// before events flow.
func NewAdapter(cfg Config, log logger.LoggerInterface) (*Adapter, error) {
	a := &Adapter{
		config: cfg,
		logger: log,
	}
	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return a, nil
}

func (a *Adapter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &feedMetrics{}

	a.metrics.framesReceived, err = meter.Int64Counter(
		"binance_frames_total",
		metric.WithDescription("Total websocket frames received"),
	)
	if err != nil {
		return err
	}

	a.metrics.decodeErrors, err = meter.Int64Counter(
		"binance_decode_errors_total",
		metric.WithDescription("Frames that failed to decode"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Venue identifies the adapter's exchange.
func (a *Adapter) Venue() domain.Venue {
	return domain.VenueBinance
}

// Connect dials the per-symbol depth stream and returns the event
// channel. Every inbound frame is a complete snapshot; there is no
// subscription handshake.
func (a *Adapter) Connect(ctx context.Context, symbol string, depth int) (<-chan app.FeedEvent, error) {
	baseURL := a.config.BaseURL
	if baseURL == "" {
		baseURL = BaseWSURL
	}
	streamURL := fmt.Sprintf("%s/%s@depth%d@100ms",
		strings.TrimRight(baseURL, "/"), strings.ToLower(symbol), depth)

	wsCfg := wsconn.DefaultConfig(streamURL, "binance")
	if a.config.ConnectTimeout > 0 {
		wsCfg.ConnectTimeout = a.config.ConnectTimeout
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()

	a.logger.Info(ctx, "binance feed connected", "url", streamURL)

	events := make(chan app.FeedEvent, 1)
	go a.readLoop(ctx, conn, events)
	return events, nil
}

// readLoop decodes frames into events. A decode failure is emitted as a
// per-frame error and reading continues; a transport failure is emitted
// as the terminal event before the channel closes.
func (a *Adapter) readLoop(ctx context.Context, conn *wsconn.Client, events chan<- app.FeedEvent) {
	defer close(events)

	for raw := range conn.Messages() {
		a.metrics.framesReceived.Add(ctx, 1)

		event := app.FeedEvent{Venue: domain.VenueBinance}
		snapshot, err := Decode(raw)
		if err != nil {
			a.metrics.decodeErrors.Add(ctx, 1)
			event.Err = err
		} else {
			event.Snapshot = snapshot
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}

	if err := conn.Err(); err != nil {
		select {
		case events <- app.FeedEvent{
			Venue: domain.VenueBinance,
			Err: apperror.New(apperror.CodeFeedDisconnected,
				apperror.WithCause(err),
				apperror.WithContext("binance")),
		}:
		case <-ctx.Done():
		}
	}
}

// Close tears down the websocket; the event channel closes shortly after.
func (a *Adapter) Close() error {
	a.connMu.Lock()
	conn := a.conn
	a.connMu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

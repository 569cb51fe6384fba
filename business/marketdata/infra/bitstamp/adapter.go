package bitstamp

import (
	"context"
	"encoding/json"
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
	meterName = "bitstamp"

	// BaseWSURL is the production websocket endpoint. Channels are joined
	// with an explicit subscribe frame after connecting.
	BaseWSURL = "wss://ws.bitstamp.net"

	eventSubscribe  = "bts:subscribe"
	eventSubscribed = "bts:subscription_succeeded"
)

// subscribeRequest is the channel subscription frame.
type subscribeRequest struct {
	Event string        `json:"event"`
	Data  subscribeData `json:"data"`
}

type subscribeData struct {
	Channel string `json:"channel"`
}

// subscribeReply is the confirmation frame; only the event matters.
type subscribeReply struct {
	Event string `json:"event"`
}

// Config holds configuration for the Bitstamp feed adapter.
type Config struct {
	BaseURL          string // defaults to BaseWSURL
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
}

// feedMetrics holds OTEL metric instruments.
type feedMetrics struct {
	framesReceived metric.Int64Counter
	decodeErrors   metric.Int64Counter
}

// Adapter streams book snapshots for one symbol from Bitstamp.
type Adapter struct {
	config Config
	logger logger.LoggerInterface

	connMu sync.Mutex
	conn   *wsconn.Client

	metrics *feedMetrics
}

// NewAdapter creates a Bitstamp feed adapter. Connect must be called
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
		"bitstamp_frames_total",
		metric.WithDescription("Total websocket frames received"),
	)
	if err != nil {
		return err
	}

	a.metrics.decodeErrors, err = meter.Int64Counter(
		"bitstamp_decode_errors_total",
		metric.WithDescription("Frames that failed to decode"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Venue identifies the adapter's exchange.
func (a *Adapter) Venue() domain.Venue {
	return domain.VenueBitstamp
}

// Connect dials the endpoint, subscribes to the symbol's order book
// channel, and waits for the confirmation frame before events flow.
// Depth is accepted for interface symmetry; Bitstamp's channel always
// carries its fixed top-of-book depth.
func (a *Adapter) Connect(ctx context.Context, symbol string, depth int) (<-chan app.FeedEvent, error) {
	baseURL := a.config.BaseURL
	if baseURL == "" {
		baseURL = BaseWSURL
	}

	wsCfg := wsconn.DefaultConfig(baseURL, "bitstamp")
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

	if err := a.handshake(ctx, conn, symbol); err != nil {
		_ = conn.Close()
		return nil, err
	}

	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()

	a.logger.Info(ctx, "bitstamp feed connected",
		"url", baseURL, "symbol", symbol)

	events := make(chan app.FeedEvent, 1)
	go a.readLoop(ctx, conn, events)
	return events, nil
}

// handshake sends the subscribe frame and requires the confirmation
// event on the first inbound frame.
func (a *Adapter) handshake(ctx context.Context, conn *wsconn.Client, symbol string) error {
	channel := "order_book_" + strings.ToLower(symbol)

	request, err := json.Marshal(subscribeRequest{
		Event: eventSubscribe,
		Data:  subscribeData{Channel: channel},
	})
	if err != nil {
		return apperror.New(apperror.CodeHandshakeFailed,
			apperror.WithCause(err),
			apperror.WithContext("bitstamp: encode subscribe"))
	}
	if err := conn.Send(ctx, request); err != nil {
		return apperror.New(apperror.CodeHandshakeFailed,
			apperror.WithCause(err),
			apperror.WithContext("bitstamp: send subscribe"))
	}

	timeout := a.config.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	select {
	case raw, ok := <-conn.Messages():
		if !ok {
			return apperror.New(apperror.CodeHandshakeFailed,
				apperror.WithCause(conn.Err()),
				apperror.WithContext("bitstamp: feed closed during handshake"))
		}
		var reply subscribeReply
		if err := json.Unmarshal(raw, &reply); err != nil {
			return apperror.New(apperror.CodeHandshakeFailed,
				apperror.WithCause(err),
				apperror.WithContext("bitstamp: decode confirmation"))
		}
		if reply.Event != eventSubscribed {
			return apperror.New(apperror.CodeHandshakeFailed,
				apperror.WithContext("bitstamp: unexpected event "+reply.Event))
		}
		return nil
	case <-time.After(timeout):
		return apperror.New(apperror.CodeHandshakeFailed,
			apperror.WithContext("bitstamp: confirmation timeout"))
	case <-ctx.Done():
		return apperror.New(apperror.CodeHandshakeFailed,
			apperror.WithCause(ctx.Err()),
			apperror.WithContext("bitstamp: handshake cancelled"))
	}
}

// readLoop decodes frames into events. Same error policy as the other
// adapters: decode failures are per-frame, transport failures terminal.
func (a *Adapter) readLoop(ctx context.Context, conn *wsconn.Client, events chan<- app.FeedEvent) {
	defer close(events)

	for raw := range conn.Messages() {
		a.metrics.framesReceived.Add(ctx, 1)

		event := app.FeedEvent{Venue: domain.VenueBitstamp}
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
			Venue: domain.VenueBitstamp,
			Err: apperror.New(apperror.CodeFeedDisconnected,
				apperror.WithCause(err),
				apperror.WithContext("bitstamp")),
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

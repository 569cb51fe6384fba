// Package wsconn provides a thin WebSocket client built on coder/websocket.
//
// The client deliberately does not reconnect: consumers own the failure
// policy, and a terminated feed must be observable as such.
package wsconn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/ratelimit"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

// Most venues cap control messages (subscribe frames, pings) per
// connection; Binance documents 5/s. One frame per 250ms satisfies the
// strictest of the supported venues.
const controlFrameInterval = 250 * time.Millisecond

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // identifies the connection in errors
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64 // max inbound frame size in bytes
	MessageBuffer  int   // capacity of the Messages channel
}

// DefaultConfig returns sensible defaults. The message buffer is 1 so a
// slow consumer naturally slows socket reads instead of growing a queue.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadLimit:      512 * 1024,
		MessageBuffer:  1,
	}
}

// Client is a single-use WebSocket connection with a pumped read loop.
type Client struct {
	config Config

	conn   *websocket.Conn
	cancel context.CancelFunc

	messages chan []byte
	readDone chan struct{}

	stateMu sync.RWMutex
	state   State
	err     error

	sendLimiter *ratelimit.Limiter
}

// New creates a client; Connect must be called before use.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("websocket url"))
	}
	buffer := cfg.MessageBuffer
	if buffer < 1 {
		buffer = 1
	}
	return &Client{
		config:      cfg,
		state:       StateDisconnected,
		messages:    make(chan []byte, buffer),
		readDone:    make(chan struct{}),
		sendLimiter: ratelimit.PerInterval(controlFrameInterval),
	}, nil
}

// Connect dials the endpoint and starts the read loop. The connection
// lives until Close is called, ctx is cancelled, or the peer goes away.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancelDial := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name+" dial "+c.config.URL))
	}
	if c.config.ReadLimit > 0 {
		conn.SetReadLimit(c.config.ReadLimit)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.stateMu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.state = StateConnected
	c.stateMu.Unlock()

	go c.readLoop(runCtx, conn)

	return nil
}

// readLoop pumps frames into the messages channel. The send into the
// channel blocks, which is the backpressure point: the socket is not
// read faster than the consumer drains it.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(c.readDone)
	defer close(c.messages)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.recordTermination(ctx, err)
			return
		}
		select {
		case c.messages <- data:
		case <-ctx.Done():
			c.recordTermination(ctx, ctx.Err())
			return
		}
	}
}

func (c *Client) recordTermination(ctx context.Context, err error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.state == StateClosed {
		return // deliberate Close, not a failure
	}
	c.state = StateDisconnected
	switch {
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		c.err = apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext(c.config.Name))
	default:
		c.err = apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name+" read"))
	}
}

// Messages returns the inbound frame channel. It is closed when the
// connection terminates; Err then reports why.
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// Err returns the terminal error after Messages is closed, nil if the
// client was closed deliberately.
func (c *Client) Err() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.err
}

// Send writes a text frame, throttled to the venue control-frame budget.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.stateMu.RLock()
	conn := c.conn
	c.stateMu.RUnlock()

	if conn == nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(c.config.Name + " not connected"))
	}

	if err := c.sendLimiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name+" rate limit wait"))
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close tears the connection down and waits for the read loop to exit.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if c.state == StateClosed {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateClosed
	conn := c.conn
	cancel := c.cancel
	c.stateMu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}
	if cancel != nil {
		cancel()
		<-c.readDone
	}
	return nil
}

func (c *Client) setState(state State) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

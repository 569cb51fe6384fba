// Package app contains the application services for the marketdata context.
package app

import (
	"context"

	"github.com/fd1az/book-aggregator/business/marketdata/domain"
)

// FeedEvent is one item on a feed stream: either a decoded snapshot or an
// error. Decode errors are per-frame and non-terminal; transport errors
// are the last event before the stream closes.
type FeedEvent struct {
	Venue    domain.Venue
	Snapshot *domain.Snapshot
	Err      error
}

// FeedAdapter is one venue's websocket feed. Connect dials the venue,
// performs any subscription handshake, and returns the event stream. The
// returned channel is closed when the feed terminates; adapters do not
// reconnect.
type FeedAdapter interface {
	Venue() domain.Venue
	Connect(ctx context.Context, symbol string, depth int) (<-chan FeedEvent, error)
	Close() error
}

// AdapterFactory creates a fresh set of venue adapters. Consumers that
// must not share feeds (one aggregator per RPC subscription) call it per
// use.
type AdapterFactory func() ([]FeedAdapter, error)

// Package ui provides the Bubble Tea TUI for the orderbook viewer.
package ui

import (
	"time"

	"github.com/fd1az/book-aggregator/internal/bookrpc"
)

// SummaryMsg carries a fresh merged book summary from the stream.
type SummaryMsg struct {
	Summary *bookrpc.Summary
}

// ConnStateMsg signals a change in the stream connection state.
type ConnStateMsg struct {
	Connected bool
	Addr      string
}

// ErrorMsg carries a stream error to display.
type ErrorMsg struct {
	Err error
}

// TickMsg drives periodic UI refreshes.
type TickMsg time.Time

package app

import (
	"context"

	marketdataapp "github.com/fd1az/book-aggregator/business/marketdata/app"
	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/business/orderbook/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
)

// Book maintains the merged top-N view across venues. It retains each
// venue's latest snapshot in full and rebuilds the bounded best-N
// structures on every input, so a venue's fresh snapshot fully displaces
// its previous levels and levels squeezed out by capacity reappear when
// a competitor retreats.
//
// Book is not safe for concurrent use; one driver task owns it.
type Book struct {
	depth  int
	latest map[marketdata.Venue]*marketdata.Snapshot
}

// NewBook creates a merge engine with the given per-side depth.
func NewBook(depth int) *Book {
	return &Book{
		depth:  depth,
		latest: make(map[marketdata.Venue]*marketdata.Snapshot),
	}
}

// Apply accepts one venue snapshot and returns the resulting merged
// view. Exactly one view per accepted snapshot; no coalescing.
func (b *Book) Apply(venue marketdata.Venue, snapshot *marketdata.Snapshot) *domain.MergedView {
	b.latest[venue] = snapshot

	bids := newHashHeap(b.depth,
		func(a, o domain.BidLevel) bool { return a.Better(o) },
		func(l domain.BidLevel) levelKey { return levelKey{venue: l.Venue, price: l.Price} },
	)
	asks := newHashHeap(b.depth,
		func(a, o domain.AskLevel) bool { return a.Better(o) },
		func(l domain.AskLevel) levelKey { return levelKey{venue: l.Venue, price: l.Price} },
	)

	for v, snap := range b.latest {
		for _, level := range snap.Bids {
			bids.Insert(domain.BidLevel{Price: level.Price, Amount: level.Amount, Venue: v})
		}
		for _, level := range snap.Asks {
			asks.Insert(domain.AskLevel{Price: level.Price, Amount: level.Amount, Venue: v})
		}
	}

	return &domain.MergedView{
		Bids: bids.SortedBestFirst(),
		Asks: asks.SortedBestFirst(),
	}
}

// Update is one item on the merged stream: a view or a passed-through
// feed error. The stream's final item before closing is always a
// StreamCancelled error.
type Update struct {
	View *domain.MergedView
	Err  error
}

// Stream drives a Book from the fan-in event stream. Snapshots produce
// merged views; feed errors are forwarded without touching book state.
// When the event stream ends, a terminal StreamCancelled update is
// emitted and the output closes.
func Stream(ctx context.Context, depth int, events <-chan marketdataapp.FeedEvent) <-chan Update {
	out := make(chan Update, 1)

	go func() {
		defer close(out)

		book := NewBook(depth)
		for event := range events {
			var update Update
			if event.Err != nil {
				update.Err = event.Err
			} else {
				update.View = book.Apply(event.Venue, event.Snapshot)
			}

			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- Update{Err: apperror.New(apperror.CodeStreamCancelled)}:
		case <-ctx.Done():
		}
	}()

	return out
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
)

func snapshotEvent(venue domain.Venue, bidPrice float64) FeedEvent {
	return FeedEvent{
		Venue: venue,
		Snapshot: &domain.Snapshot{
			Bids: []domain.PriceLevel{{Price: bidPrice, Amount: 1}},
		},
	}
}

func collect(t *testing.T, out <-chan FeedEvent, n int) []FeedEvent {
	t.Helper()
	events := make([]FeedEvent, 0, n)
	deadline := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-out:
			if !ok {
				t.Fatalf("stream closed after %d events, want %d", len(events), n)
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out after %d events, want %d", len(events), n)
		}
	}
	return events
}

func TestMergePreservesPerSourceOrder(t *testing.T) {
	binance := make(chan FeedEvent, 3)
	for _, p := range []float64{10, 11, 12} {
		binance <- snapshotEvent(domain.VenueBinance, p)
	}
	close(binance)

	out := Merge(context.Background(), (<-chan FeedEvent)(binance))

	events := collect(t, out, 3)
	for i, want := range []float64{10, 11, 12} {
		if got := events[i].Snapshot.Bids[0].Price; got != want {
			t.Errorf("event %d price = %v, want %v", i, got, want)
		}
	}
	if _, ok := <-out; ok {
		t.Error("stream still open after sole source closed")
	}
}

func TestMergeDeliversFromAllSources(t *testing.T) {
	binance := make(chan FeedEvent, 1)
	bitstamp := make(chan FeedEvent, 1)
	binance <- snapshotEvent(domain.VenueBinance, 10)
	bitstamp <- snapshotEvent(domain.VenueBitstamp, 10.5)
	close(binance)
	close(bitstamp)

	out := Merge(context.Background(), (<-chan FeedEvent)(binance), (<-chan FeedEvent)(bitstamp))

	seen := map[domain.Venue]bool{}
	for _, ev := range collect(t, out, 2) {
		seen[ev.Venue] = true
	}
	if !seen[domain.VenueBinance] || !seen[domain.VenueBitstamp] {
		t.Errorf("venues seen = %v, want both", seen)
	}
}

// A dead source must not stall the survivors.
func TestMergeSurvivesSourceTermination(t *testing.T) {
	binance := make(chan FeedEvent, 2)
	bitstamp := make(chan FeedEvent)

	binance <- snapshotEvent(domain.VenueBinance, 10)
	binance <- FeedEvent{
		Venue: domain.VenueBinance,
		Err:   apperror.New(apperror.CodeFeedDisconnected),
	}
	close(binance)

	out := Merge(context.Background(), (<-chan FeedEvent)(binance), (<-chan FeedEvent)(bitstamp))

	events := collect(t, out, 2)
	if events[0].Err != nil {
		t.Errorf("event 0 unexpected error: %v", events[0].Err)
	}
	if apperror.GetCode(events[1].Err) != apperror.CodeFeedDisconnected {
		t.Errorf("event 1 code = %s, want %s", apperror.GetCode(events[1].Err), apperror.CodeFeedDisconnected)
	}

	// The survivor still delivers after the other source died.
	go func() {
		bitstamp <- snapshotEvent(domain.VenueBitstamp, 11)
		close(bitstamp)
	}()
	survivors := collect(t, out, 1)
	if survivors[0].Venue != domain.VenueBitstamp {
		t.Errorf("survivor event venue = %v, want %v", survivors[0].Venue, domain.VenueBitstamp)
	}
}

func TestMergeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := make(chan FeedEvent)

	out := Merge(ctx, (<-chan FeedEvent)(feed))
	cancel()

	// The forwarder exits on cancel even though its source never closes;
	// the pending source send is abandoned.
	select {
	case feed <- snapshotEvent(domain.VenueBinance, 10):
	default:
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("merged stream never closed after cancel")
		}
	}
}

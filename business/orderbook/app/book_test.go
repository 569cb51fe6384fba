package app

import (
	"context"
	"testing"
	"time"

	marketdataapp "github.com/fd1az/book-aggregator/business/marketdata/app"
	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/business/orderbook/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
)

func levels(pairs ...[2]float64) []marketdata.PriceLevel {
	out := make([]marketdata.PriceLevel, len(pairs))
	for i, p := range pairs {
		out[i] = marketdata.PriceLevel{Price: p[0], Amount: p[1]}
	}
	return out
}

func bidPrices(view *domain.MergedView) []float64 {
	out := make([]float64, len(view.Bids))
	for i, l := range view.Bids {
		out[i] = l.Price
	}
	return out
}

func askPrices(view *domain.MergedView) []float64 {
	out := make([]float64, len(view.Asks))
	for i, l := range view.Asks {
		out[i] = l.Price
	}
	return out
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBookSingleVenueSnapshot(t *testing.T) {
	book := NewBook(2)

	view := book.Apply(marketdata.VenueBinance, &marketdata.Snapshot{
		Bids: levels([2]float64{10.0, 1}, [2]float64{9.5, 1}, [2]float64{9.0, 1}),
		Asks: levels([2]float64{11.0, 1}, [2]float64{11.5, 1}, [2]float64{12.0, 1}),
	})

	if !equalFloats(bidPrices(view), []float64{10.0, 9.5}) {
		t.Errorf("bids = %v, want [10 9.5]", bidPrices(view))
	}
	if !equalFloats(askPrices(view), []float64{11.0, 11.5}) {
		t.Errorf("asks = %v, want [11 11.5]", askPrices(view))
	}
	if spread, _ := view.Spread(); spread != 1.0 {
		t.Errorf("spread = %v, want 1.0", spread)
	}
	for _, l := range view.Bids {
		if l.Venue != marketdata.VenueBinance {
			t.Errorf("bid venue = %v, want Binance", l.Venue)
		}
	}
}

func TestBookInterleavesVenues(t *testing.T) {
	book := NewBook(3)

	book.Apply(marketdata.VenueBinance, &marketdata.Snapshot{
		Bids: levels([2]float64{10, 1}, [2]float64{9, 1}),
	})
	view := book.Apply(marketdata.VenueBitstamp, &marketdata.Snapshot{
		Bids: levels([2]float64{10.5, 2}, [2]float64{8.5, 1}),
	})

	if !equalFloats(bidPrices(view), []float64{10.5, 10, 9}) {
		t.Fatalf("bids = %v, want [10.5 10 9]", bidPrices(view))
	}
	wantVenues := []marketdata.Venue{marketdata.VenueBitstamp, marketdata.VenueBinance, marketdata.VenueBinance}
	for i, l := range view.Bids {
		if l.Venue != wantVenues[i] {
			t.Errorf("bids[%d].Venue = %v, want %v", i, l.Venue, wantVenues[i])
		}
	}
}

// A fresh snapshot fully displaces that venue's previous levels, even
// when the stale prices would still be competitive.
func TestBookVenueRefreshDisplacesStale(t *testing.T) {
	book := NewBook(2)

	book.Apply(marketdata.VenueBitstamp, &marketdata.Snapshot{
		Asks: levels([2]float64{11, 1}, [2]float64{11.5, 1}),
	})
	view := book.Apply(marketdata.VenueBitstamp, &marketdata.Snapshot{
		Asks: levels([2]float64{12, 1}, [2]float64{12.5, 1}),
	})

	if !equalFloats(askPrices(view), []float64{12, 12.5}) {
		t.Errorf("asks = %v, want [12 12.5] with no stale 11/11.5", askPrices(view))
	}
}

// Levels squeezed out by capacity must reappear when the venue that
// crowded them out retreats.
func TestBookDisplacedLevelsResurface(t *testing.T) {
	book := NewBook(2)

	book.Apply(marketdata.VenueBinance, &marketdata.Snapshot{
		Bids: levels([2]float64{9, 1}, [2]float64{8, 1}),
	})
	crowded := book.Apply(marketdata.VenueBitstamp, &marketdata.Snapshot{
		Bids: levels([2]float64{10, 1}, [2]float64{9.5, 1}),
	})
	if !equalFloats(bidPrices(crowded), []float64{10, 9.5}) {
		t.Fatalf("crowded bids = %v, want [10 9.5]", bidPrices(crowded))
	}

	// Bitstamp retreats below Binance; Binance's levels must come back.
	view := book.Apply(marketdata.VenueBitstamp, &marketdata.Snapshot{
		Bids: levels([2]float64{7, 1}),
	})
	if !equalFloats(bidPrices(view), []float64{9, 8}) {
		t.Errorf("bids = %v, want [9 8] after competitor retreat", bidPrices(view))
	}
}

func TestBookAmountChangeIsUpdate(t *testing.T) {
	book := NewBook(3)

	book.Apply(marketdata.VenueBinance, &marketdata.Snapshot{
		Bids: levels([2]float64{10, 1}),
	})
	view := book.Apply(marketdata.VenueBinance, &marketdata.Snapshot{
		Bids: levels([2]float64{10, 4}),
	})

	if len(view.Bids) != 1 {
		t.Fatalf("bids = %v, want single updated level", view.Bids)
	}
	if view.Bids[0].Amount != 4 {
		t.Errorf("Amount = %v, want 4", view.Bids[0].Amount)
	}
}

func TestBookCapsBothSides(t *testing.T) {
	book := NewBook(2)

	view := book.Apply(marketdata.VenueBinance, &marketdata.Snapshot{
		Bids: levels([2]float64{10, 1}, [2]float64{9, 1}, [2]float64{8, 1}, [2]float64{7, 1}),
		Asks: levels([2]float64{11, 1}, [2]float64{12, 1}, [2]float64{13, 1}),
	})

	if len(view.Bids) != 2 || len(view.Asks) != 2 {
		t.Errorf("sides = %d/%d, want 2/2", len(view.Bids), len(view.Asks))
	}
}

func collectUpdates(t *testing.T, out <-chan Update, n int) []Update {
	t.Helper()
	updates := make([]Update, 0, n)
	deadline := time.After(2 * time.Second)
	for len(updates) < n {
		select {
		case u, ok := <-out:
			if !ok {
				t.Fatalf("stream closed after %d updates, want %d", len(updates), n)
			}
			updates = append(updates, u)
		case <-deadline:
			t.Fatalf("timed out after %d updates, want %d", len(updates), n)
		}
	}
	return updates
}

// One emission per accepted snapshot, feed errors forwarded in place,
// terminal StreamCancelled when the feeds end.
func TestStreamForwardsErrorsAndTerminates(t *testing.T) {
	events := make(chan marketdataapp.FeedEvent, 3)
	events <- marketdataapp.FeedEvent{
		Venue:    marketdata.VenueBinance,
		Snapshot: &marketdata.Snapshot{Bids: levels([2]float64{10, 1})},
	}
	events <- marketdataapp.FeedEvent{
		Venue: marketdata.VenueBinance,
		Err:   apperror.New(apperror.CodeBadFrame),
	}
	events <- marketdataapp.FeedEvent{
		Venue:    marketdata.VenueBinance,
		Snapshot: &marketdata.Snapshot{Bids: levels([2]float64{10.5, 1})},
	}
	close(events)

	out := Stream(context.Background(), 2, events)
	updates := collectUpdates(t, out, 4)

	if updates[0].Err != nil || updates[0].View.Bids[0].Price != 10 {
		t.Errorf("update 0 = %+v", updates[0])
	}
	if apperror.GetCode(updates[1].Err) != apperror.CodeBadFrame {
		t.Errorf("update 1 code = %s, want %s", apperror.GetCode(updates[1].Err), apperror.CodeBadFrame)
	}
	if updates[2].Err != nil || updates[2].View.Bids[0].Price != 10.5 {
		t.Errorf("update 2 = %+v", updates[2])
	}
	if apperror.GetCode(updates[3].Err) != apperror.CodeStreamCancelled {
		t.Errorf("terminal code = %s, want %s", apperror.GetCode(updates[3].Err), apperror.CodeStreamCancelled)
	}
	if _, ok := <-out; ok {
		t.Error("stream still open after terminal update")
	}
}

// A venue disconnect mid-stream must not disturb the surviving venue's
// contribution to subsequent views.
func TestStreamSurvivesVenueDisconnect(t *testing.T) {
	events := make(chan marketdataapp.FeedEvent, 4)
	events <- marketdataapp.FeedEvent{
		Venue:    marketdata.VenueBinance,
		Snapshot: &marketdata.Snapshot{Bids: levels([2]float64{10, 1})},
	}
	events <- marketdataapp.FeedEvent{
		Venue: marketdata.VenueBinance,
		Err:   apperror.New(apperror.CodeFeedDisconnected),
	}
	events <- marketdataapp.FeedEvent{
		Venue:    marketdata.VenueBitstamp,
		Snapshot: &marketdata.Snapshot{Bids: levels([2]float64{9, 1})},
	}
	close(events)

	out := Stream(context.Background(), 3, events)
	updates := collectUpdates(t, out, 3)

	if apperror.GetCode(updates[1].Err) != apperror.CodeFeedDisconnected {
		t.Errorf("update 1 code = %s, want %s", apperror.GetCode(updates[1].Err), apperror.CodeFeedDisconnected)
	}
	// Binance's last snapshot still participates after its disconnect.
	if !equalFloats(bidPrices(updates[2].View), []float64{10, 9}) {
		t.Errorf("bids = %v, want [10 9]", bidPrices(updates[2].View))
	}
}

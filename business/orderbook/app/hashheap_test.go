package app

import (
	"testing"

	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/business/orderbook/domain"
)

func newBidHeap(capacity int) *hashHeap[domain.BidLevel] {
	return newHashHeap(capacity,
		func(a, o domain.BidLevel) bool { return a.Better(o) },
		func(l domain.BidLevel) levelKey { return levelKey{venue: l.Venue, price: l.Price} },
	)
}

func bid(price, amount float64, venue marketdata.Venue) domain.BidLevel {
	return domain.BidLevel{Price: price, Amount: amount, Venue: venue}
}

func TestHashHeapKeepsBestWithinCapacity(t *testing.T) {
	h := newBidHeap(2)
	h.Insert(bid(9.0, 1, marketdata.VenueBinance))
	h.Insert(bid(10.0, 1, marketdata.VenueBinance))
	h.Insert(bid(9.5, 1, marketdata.VenueBinance))

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	got := h.SortedBestFirst()
	if got[0].Price != 10.0 || got[1].Price != 9.5 {
		t.Errorf("retained prices = [%v %v], want [10 9.5]", got[0].Price, got[1].Price)
	}
}

func TestHashHeapEvictsIncomingWorse(t *testing.T) {
	h := newBidHeap(2)
	h.Insert(bid(10.0, 1, marketdata.VenueBinance))
	h.Insert(bid(9.5, 1, marketdata.VenueBinance))
	h.Insert(bid(1.0, 1, marketdata.VenueBitstamp)) // worse than both retained

	got := h.SortedBestFirst()
	if len(got) != 2 || got[0].Price != 10.0 || got[1].Price != 9.5 {
		t.Errorf("retained = %+v, want the two original levels", got)
	}
}

func TestHashHeapSamePriceUpdatesAmount(t *testing.T) {
	h := newBidHeap(3)
	h.Insert(bid(10.0, 1, marketdata.VenueBinance))
	h.Insert(bid(10.0, 7, marketdata.VenueBinance))

	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (amount change is an update)", h.Len())
	}
	if got := h.SortedBestFirst()[0].Amount; got != 7 {
		t.Errorf("Amount = %v, want 7", got)
	}
}

func TestHashHeapSamePriceDifferentVenues(t *testing.T) {
	h := newBidHeap(3)
	h.Insert(bid(10.0, 1, marketdata.VenueBinance))
	h.Insert(bid(10.0, 2, marketdata.VenueBitstamp))

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (distinct venues, distinct keys)", h.Len())
	}
	got := h.SortedBestFirst()
	// Price tie breaks on venue ordinal.
	if got[0].Venue != marketdata.VenueBinance || got[1].Venue != marketdata.VenueBitstamp {
		t.Errorf("tie order = [%v %v]", got[0].Venue, got[1].Venue)
	}
}

func TestHashHeapSortedBestFirstMany(t *testing.T) {
	h := newBidHeap(5)
	for _, p := range []float64{3, 9, 1, 7, 5, 8, 2, 6, 4} {
		h.Insert(bid(p, 1, marketdata.VenueBinance))
	}

	got := h.SortedBestFirst()
	want := []float64{9, 8, 7, 6, 5}
	if len(got) != len(want) {
		t.Fatalf("Len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Price != want[i] {
			t.Errorf("got[%d].Price = %v, want %v", i, got[i].Price, want[i])
		}
	}
}

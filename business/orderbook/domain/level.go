// Package domain contains the core domain types for the orderbook context.
package domain

import (
	"math"

	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
)

// BidLevel is one resting buy level in the merged book. Bids and asks are
// distinct types so their orderings cannot be confused.
type BidLevel struct {
	Price  float64
	Amount float64
	Venue  marketdata.Venue
}

// AskLevel is one resting sell level in the merged book.
type AskLevel struct {
	Price  float64
	Amount float64
	Venue  marketdata.Venue
}

// orderedBits maps a float to an unsigned key that sorts in IEEE 754
// total order. NaN and signed zeros compare deterministically, so a bad
// upstream value cannot poison the book ordering.
func orderedBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// Better reports whether l is strictly better than other. A bid is better
// when its price is higher; price ties break on venue ordinal so the order
// is a strict total order.
func (l BidLevel) Better(other BidLevel) bool {
	a, b := orderedBits(l.Price), orderedBits(other.Price)
	if a != b {
		return a > b
	}
	return l.Venue.Ordinal() < other.Venue.Ordinal()
}

// Better reports whether l is strictly better than other. An ask is better
// when its price is lower; price ties break on venue ordinal.
func (l AskLevel) Better(other AskLevel) bool {
	a, b := orderedBits(l.Price), orderedBits(other.Price)
	if a != b {
		return a < b
	}
	return l.Venue.Ordinal() < other.Venue.Ordinal()
}

// MergedView is the top-N view across all venues at one logical moment.
// Both sides are sorted best-first: bids by descending price, asks by
// ascending price.
type MergedView struct {
	Bids []BidLevel
	Asks []AskLevel
}

// Spread returns best ask price minus best bid price. It is only
// meaningful once both sides are non-empty; ok reports that.
func (v *MergedView) Spread() (spread float64, ok bool) {
	if len(v.Bids) == 0 || len(v.Asks) == 0 {
		return 0, false
	}
	return v.Asks[0].Price - v.Bids[0].Price, true
}

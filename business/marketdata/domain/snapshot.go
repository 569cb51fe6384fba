package domain

// PriceLevel is one (price, amount) pair on one side of a venue's book.
// Upstream payloads encode both as strings; decoders parse them to floats.
type PriceLevel struct {
	Price  float64
	Amount float64
}

// Snapshot is the uniform per-venue payload: a complete refresh of that
// venue's top-of-book for one symbol. Both sides arrive best-first.
type Snapshot struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// IsEmpty reports whether the snapshot carries no levels on either side.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Bids) == 0 && len(s.Asks) == 0
}

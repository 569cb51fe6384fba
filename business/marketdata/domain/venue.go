// Package domain contains the core domain types for the marketdata context.
package domain

import (
	"strings"

	"github.com/fd1az/book-aggregator/internal/apperror"
)

// Venue identifies a supported exchange. The zero value is not a valid venue.
type Venue int

const (
	VenueUnknown Venue = iota
	VenueBinance
	VenueBitstamp
)

// AllVenues lists every supported venue in ordinal order.
func AllVenues() []Venue {
	return []Venue{VenueBinance, VenueBitstamp}
}

// String returns the venue name in TitleCase, as carried on the wire.
func (v Venue) String() string {
	switch v {
	case VenueBinance:
		return "Binance"
	case VenueBitstamp:
		return "Bitstamp"
	default:
		return "Unknown"
	}
}

// Ordinal returns a stable small integer used for deterministic tie-breaks.
func (v Venue) Ordinal() int {
	return int(v)
}

// ParseVenue parses a case-insensitive venue name.
func ParseVenue(s string) (Venue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binance":
		return VenueBinance, nil
	case "bitstamp":
		return VenueBitstamp, nil
	default:
		return VenueUnknown, apperror.New(apperror.CodeUnknownVenue,
			apperror.WithContext(s))
	}
}

// ParseVenues parses a list of venue names, rejecting unknowns and duplicates.
func ParseVenues(names []string) ([]Venue, error) {
	seen := make(map[Venue]bool, len(names))
	venues := make([]Venue, 0, len(names))
	for _, name := range names {
		v, err := ParseVenue(name)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		venues = append(venues, v)
	}
	return venues, nil
}

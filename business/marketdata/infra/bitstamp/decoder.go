// Package bitstamp implements the FeedAdapter interface for Bitstamp.
package bitstamp

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
)

// envelope is the outer shape of every Bitstamp live_orderbook message.
// Snapshots carry the book inside "data".
type envelope struct {
	Event   string    `json:"event"`
	Channel string    `json:"channel"`
	Data    bookFrame `json:"data"`
}

type bookFrame struct {
	Timestamp string     `json:"timestamp"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
}

// Decode parses one raw frame, unwrapping the data envelope. Frames
// without book sides (heartbeats, reconnect requests) are bad frames;
// the feed tolerates them and keeps reading.
func Decode(raw []byte) (*domain.Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperror.New(apperror.CodeBadFrame,
			apperror.WithCause(err),
			apperror.WithContext("bitstamp"))
	}
	if env.Data.Bids == nil && env.Data.Asks == nil {
		return nil, apperror.New(apperror.CodeBadFrame,
			apperror.WithContext("bitstamp: no book sides, event "+env.Event))
	}

	bids, err := parseLevels(env.Data.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(env.Data.Asks)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{Bids: bids, Asks: asks}, nil
}

func parseLevels(raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, apperror.New(apperror.CodeBadFrame,
				apperror.WithContext("bitstamp: short level tuple"))
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, apperror.New(apperror.CodeBadNumber,
				apperror.WithCause(err),
				apperror.WithContext("bitstamp price "+pair[0]))
		}
		amount, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, apperror.New(apperror.CodeBadNumber,
				apperror.WithCause(err),
				apperror.WithContext("bitstamp amount "+pair[1]))
		}
		levels = append(levels, domain.PriceLevel{
			Price:  price.InexactFloat64(),
			Amount: amount.InexactFloat64(),
		})
	}
	return levels, nil
}

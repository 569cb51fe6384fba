// Package binance implements the FeedAdapter interface for Binance.
package binance

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
)

// depthFrame is one partial book depth message from the
// <symbol>@depth<levels>@100ms stream. Prices and amounts arrive as
// strings.
type depthFrame struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// Decode parses one raw frame into the uniform snapshot. A frame without
// either book side is a bad frame; a level that does not parse as a
// number is a bad number. Both are per-frame errors, not feed failures.
func Decode(raw []byte) (*domain.Snapshot, error) {
	var frame depthFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, apperror.New(apperror.CodeBadFrame,
			apperror.WithCause(err),
			apperror.WithContext("binance"))
	}
	if frame.Bids == nil && frame.Asks == nil {
		return nil, apperror.New(apperror.CodeBadFrame,
			apperror.WithContext("binance: no book sides"))
	}

	bids, err := parseLevels(frame.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(frame.Asks)
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
				apperror.WithContext("binance: short level tuple"))
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, apperror.New(apperror.CodeBadNumber,
				apperror.WithCause(err),
				apperror.WithContext("binance price "+pair[0]))
		}
		amount, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, apperror.New(apperror.CodeBadNumber,
				apperror.WithCause(err),
				apperror.WithContext("binance amount "+pair[1]))
		}
		levels = append(levels, domain.PriceLevel{
			Price:  price.InexactFloat64(),
			Amount: amount.InexactFloat64(),
		})
	}
	return levels, nil
}

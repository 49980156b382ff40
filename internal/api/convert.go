package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// ErrMalformedTrade marks an upstream record that cannot be converted.
var ErrMalformedTrade = errors.New("malformed trade")

// ToModel converts a REST trade record to a model.Trade.
func (t TradeResponse) ToModel(symbol string) (model.Trade, error) {
	if t.ID == nil {
		return model.Trade{}, fmt.Errorf("%w: missing id", ErrMalformedTrade)
	}
	if t.Time == nil {
		return model.Trade{}, fmt.Errorf("%w: trade %d missing time", ErrMalformedTrade, *t.ID)
	}
	if t.IsBuyerMaker == nil {
		return model.Trade{}, fmt.Errorf("%w: trade %d missing isBuyerMaker", ErrMalformedTrade, *t.ID)
	}

	price, qty, err := parsePriceQty(t.Price, t.Qty)
	if err != nil {
		return model.Trade{}, fmt.Errorf("%w: trade %d: %v", ErrMalformedTrade, *t.ID, err)
	}

	quote := decimal.Zero
	if t.QuoteQty != "" {
		quote, err = decimal.NewFromString(t.QuoteQty)
		if err != nil {
			return model.Trade{}, fmt.Errorf("%w: trade %d quoteQty %q", ErrMalformedTrade, *t.ID, t.QuoteQty)
		}
	}

	return model.Trade{
		ID:            *t.ID,
		Symbol:        symbol,
		Price:         price,
		Quantity:      qty,
		QuoteQuantity: quote,
		Time:          MillisToTime(*t.Time),
		IsBuyerMaker:  *t.IsBuyerMaker,
		IsBestMatch:   t.IsBestMatch,
	}, nil
}

// ToModel converts a websocket trade event to a model.Trade.
func (t StreamTrade) ToModel() (model.Trade, error) {
	if t.TradeID == nil || t.TradeTime == nil || t.IsBuyerMaker == nil {
		return model.Trade{}, fmt.Errorf("%w: incomplete stream trade", ErrMalformedTrade)
	}
	if t.Symbol == "" {
		return model.Trade{}, fmt.Errorf("%w: trade %d missing symbol", ErrMalformedTrade, *t.TradeID)
	}

	price, qty, err := parsePriceQty(t.Price, t.Qty)
	if err != nil {
		return model.Trade{}, fmt.Errorf("%w: trade %d: %v", ErrMalformedTrade, *t.TradeID, err)
	}

	return model.Trade{
		ID:           *t.TradeID,
		Symbol:       strings.ToUpper(t.Symbol),
		Price:        price,
		Quantity:     qty,
		Time:         MillisToTime(*t.TradeTime),
		IsBuyerMaker: *t.IsBuyerMaker,
		IsBestMatch:  t.IsBestMatch,
	}, nil
}

// ToTrades converts a page of REST records, dropping malformed ones.
// The returned errors describe each dropped record.
func ToTrades(symbol string, records []TradeResponse) ([]model.Trade, []error) {
	trades := make([]model.Trade, 0, len(records))
	var dropped []error

	for _, r := range records {
		tr, err := r.ToModel(symbol)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		trades = append(trades, tr)
	}

	return trades, dropped
}

// MillisToTime converts a Binance millisecond timestamp to UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func parsePriceQty(price, qty string) (decimal.Decimal, decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("price %q", price)
	}
	q, err := decimal.NewFromString(strings.TrimSpace(qty))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("qty %q", qty)
	}
	if p.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("non-positive price %s", p)
	}
	if q.Sign() < 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("negative qty %s", q)
	}
	return p, q, nil
}

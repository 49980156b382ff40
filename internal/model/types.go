package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

// Trade represents a single executed trade from the exchange.
type Trade struct {
	ID            int64           // Exchange trade id (monotonic per symbol)
	Symbol        string          // Exchange symbol (e.g., "BTCUSDT")
	Price         decimal.Decimal // Price in quote asset
	Quantity      decimal.Decimal // Size in base asset
	QuoteQuantity decimal.Decimal // Price * Quantity as reported upstream (may be zero)
	Time          time.Time       // Trade time (ms precision, UTC)
	IsBuyerMaker  bool            // true = buyer was the resting order, seller aggressed
	IsBestMatch   bool
}

// Side returns the aggressor side of the trade.
// A maker buyer means the seller crossed the spread.
func (t Trade) Side() Direction {
	if t.IsBuyerMaker {
		return DirectionSell
	}
	return DirectionBuy
}

// Notional returns the quote volume of the trade, preferring the upstream value.
func (t Trade) Notional() decimal.Decimal {
	if !t.QuoteQuantity.IsZero() {
		return t.QuoteQuantity
	}
	return t.Price.Mul(t.Quantity)
}

// TradeWindow is a deduplicated, time-ordered set of trades covering a lookback span.
type TradeWindow struct {
	Symbol  string
	Start   time.Time // Inclusive lookback boundary
	End     time.Time // Exclusive end (start of the in-progress bucket)
	Trades  []Trade
	Pages     int  // Pages fetched to build the window
	Partial   bool // Page budget exhausted before reaching Start
	NewTrades int  // Trades above the previous cycle's cursor
}

// Len returns the number of trades in the window.
func (w TradeWindow) Len() int {
	return len(w.Trades)
}

// Empty reports whether the window holds no trades.
func (w TradeWindow) Empty() bool {
	return len(w.Trades) == 0
}

// LastID returns the highest trade id in the window, or 0 if empty.
func (w TradeWindow) LastID() int64 {
	var id int64
	for _, t := range w.Trades {
		if t.ID > id {
			id = t.ID
		}
	}
	return id
}

// -----------------------------------------------------------------------------
// Buckets and signals
// -----------------------------------------------------------------------------

// Bucket holds aggressor volume for one fixed-width interval.
type Bucket struct {
	Start      time.Time
	BuyVolume  decimal.Decimal // Base asset bought by takers
	SellVolume decimal.Decimal // Base asset sold by takers
	Imbalance  decimal.Decimal // BuyVolume - SellVolume
	LastPrice  decimal.Decimal // Latest trade price, carried forward when empty
	BuyQuote   decimal.Decimal // Display only
	SellQuote  decimal.Decimal // Display only
	Trades     int
}

// QuoteImbalance returns the price-weighted imbalance (display only).
func (b Bucket) QuoteImbalance() decimal.Decimal {
	return b.BuyQuote.Sub(b.SellQuote)
}

// ThresholdModel is the rolling statistical model over bucket imbalances.
type ThresholdModel struct {
	Mean        decimal.Decimal
	StdDev      decimal.Decimal
	SampleCount int
}

// Upper returns mean + band*stddev.
func (m ThresholdModel) Upper(band decimal.Decimal) decimal.Decimal {
	return m.Mean.Add(m.StdDev.Mul(band))
}

// Lower returns mean - band*stddev.
func (m ThresholdModel) Lower(band decimal.Decimal) decimal.Decimal {
	return m.Mean.Sub(m.StdDev.Mul(band))
}

// Direction is the side of an imbalance signal.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Opposite returns the other side. DirectionNone maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return DirectionNone
	}
}

// Signal is produced when the newest completed bucket breaks out of the band.
type Signal struct {
	Symbol         string
	Direction      Direction
	Magnitude      decimal.Decimal // Bucket imbalance in base asset
	ReferencePrice decimal.Decimal // Bucket last price
	BucketTime     time.Time
	QuoteVolume    decimal.Decimal // Display only
	Model          ThresholdModel
	Band           decimal.Decimal
}

// Alert is a formatted signal ready for delivery.
type Alert struct {
	ID        uuid.UUID
	Signal    Signal
	Text      string
	CreatedAt time.Time
}

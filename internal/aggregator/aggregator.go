// Package aggregator turns a trade window into a gap-free series of
// fixed-width aggressor volume buckets.
//
// Attribution follows the maker flag: a trade whose buyer was the maker is
// seller-initiated and counts as sell volume; otherwise it counts as buy
// volume. Price direction is never consulted.
package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// Aggregate buckets the window's trades into intervals of width, ordered oldest
// to newest. When the window carries a span, the series covers exactly
// [Start, End) truncated to width; otherwise it spans the first to the last
// trade. Aggregate is pure: the same window always yields the same buckets.
func Aggregate(window model.TradeWindow, width time.Duration) []model.Bucket {
	if width <= 0 {
		return nil
	}

	first, last, ok := span(window, width)
	if !ok {
		return nil
	}

	n := int(last.Sub(first)/width) + 1
	buckets := make([]model.Bucket, n)
	for i := range buckets {
		buckets[i] = model.Bucket{
			Start:      first.Add(time.Duration(i) * width),
			BuyVolume:  decimal.Zero,
			SellVolume: decimal.Zero,
			Imbalance:  decimal.Zero,
			LastPrice:  decimal.Zero,
			BuyQuote:   decimal.Zero,
			SellQuote:  decimal.Zero,
		}
	}

	// Latest trade per bucket, by time then id.
	latest := make([]*model.Trade, n)
	var earliest *model.Trade

	for i := range window.Trades {
		t := &window.Trades[i]
		key := t.Time.Truncate(width)
		if key.Before(first) || key.After(last) {
			continue
		}
		idx := int(key.Sub(first) / width)
		b := &buckets[idx]

		if t.IsBuyerMaker {
			b.SellVolume = b.SellVolume.Add(t.Quantity)
			b.SellQuote = b.SellQuote.Add(t.Notional())
		} else {
			b.BuyVolume = b.BuyVolume.Add(t.Quantity)
			b.BuyQuote = b.BuyQuote.Add(t.Notional())
		}
		b.Trades++

		if cur := latest[idx]; cur == nil || t.Time.After(cur.Time) || (t.Time.Equal(cur.Time) && t.ID > cur.ID) {
			latest[idx] = t
		}
		if earliest == nil || t.Time.Before(earliest.Time) || (t.Time.Equal(earliest.Time) && t.ID < earliest.ID) {
			earliest = t
		}
	}

	// Buckets before the first trade take its price.
	carry := decimal.Zero
	if earliest != nil {
		carry = earliest.Price
	}
	for i := range buckets {
		b := &buckets[i]
		b.Imbalance = b.BuyVolume.Sub(b.SellVolume)
		if latest[i] != nil {
			carry = latest[i].Price
		}
		b.LastPrice = carry
	}

	return buckets
}

// Imbalances returns the imbalance of each bucket.
func Imbalances(buckets []model.Bucket) []decimal.Decimal {
	out := make([]decimal.Decimal, len(buckets))
	for i, b := range buckets {
		out[i] = b.Imbalance
	}
	return out
}

// span returns the first and last bucket start covered by the window.
func span(window model.TradeWindow, width time.Duration) (first, last time.Time, ok bool) {
	if !window.Start.IsZero() && !window.End.IsZero() {
		first = window.Start.Truncate(width)
		end := window.End.Truncate(width)
		if window.End.After(end) {
			// A partial trailing interval still gets a bucket.
			end = end.Add(width)
		}
		if !end.After(first) {
			return time.Time{}, time.Time{}, false
		}
		return first, end.Add(-width), true
	}

	if len(window.Trades) == 0 {
		return time.Time{}, time.Time{}, false
	}

	first = window.Trades[0].Time.Truncate(width)
	last = first
	for _, t := range window.Trades {
		k := t.Time.Truncate(width)
		if k.Before(first) {
			first = k
		}
		if k.After(last) {
			last = k
		}
	}
	return first, last, true
}

package alert

import (
	"fmt"
	"strings"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// quoteAssets are checked longest first so "FDUSD" wins over "USD" style suffixes.
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB", "EUR", "TRY", "BRL", "DAI"}

// SplitSymbol splits an exchange symbol into base and quote assets.
// Unknown quotes return the whole symbol as base and an empty quote.
func SplitSymbol(symbol string) (base, quote string) {
	for _, q := range quoteAssets {
		if len(symbol) > len(q) && strings.HasSuffix(symbol, q) {
			return strings.TrimSuffix(symbol, q), q
		}
	}
	return symbol, ""
}

// Format renders the human-readable alert text for sig.
func Format(sig model.Signal) string {
	base, quote := SplitSymbol(sig.Symbol)
	pair := sig.Symbol
	if quote != "" {
		pair = base + "/" + quote
	}

	var b strings.Builder
	switch sig.Direction {
	case model.DirectionBuy:
		fmt.Fprintf(&b, "🟢 BUY aggression: %s\n", pair)
		fmt.Fprintf(&b, "Taker buy imbalance: %s %s\n", sig.Magnitude.Abs().StringFixed(4), base)
	case model.DirectionSell:
		fmt.Fprintf(&b, "🔴 SELL aggression: %s\n", pair)
		fmt.Fprintf(&b, "Taker sell imbalance: %s %s\n", sig.Magnitude.Abs().StringFixed(4), base)
	default:
		fmt.Fprintf(&b, "%s: %s\n", sig.Direction, pair)
	}

	fmt.Fprintf(&b, "Price: %s %s\n", sig.ReferencePrice.StringFixed(2), quote)
	if !sig.QuoteVolume.IsZero() {
		fmt.Fprintf(&b, "Bucket volume: %s %s\n", sig.QuoteVolume.StringFixed(2), quote)
	}
	fmt.Fprintf(&b, "Bucket: %s\n", sig.BucketTime.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Band: %s ± %s×%s (n=%d)",
		sig.Model.Mean.StringFixed(4), sig.Band.String(), sig.Model.StdDev.StringFixed(4), sig.Model.SampleCount)

	return strings.TrimRight(b.String(), " ")
}

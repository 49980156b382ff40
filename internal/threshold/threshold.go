// Package threshold classifies the newest bucket of an imbalance series
// against a mean/standard-deviation band fitted on the preceding buckets.
package threshold

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// Status is the outcome of a classification.
type Status int

const (
	StatusNone Status = iota // Not classified (fetch failed before classification)
	StatusInsufficientData
	StatusNoSignal
	StatusSignal
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusInsufficientData:
		return "insufficient_data"
	case StatusNoSignal:
		return "no_signal"
	case StatusSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// Config holds engine configuration.
type Config struct {
	MinSamples int             // History buckets required before classifying (default: 15)
	BandWidth  decimal.Decimal // Band half-width in standard deviations (default: 1)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinSamples: 15,
		BandWidth:  decimal.NewFromInt(1),
	}
}

// Result holds the fitted model and the optional signal.
type Result struct {
	Status Status
	Model  model.ThresholdModel
	Latest model.Bucket
	Signal *model.Signal
}

// Engine classifies bucket series. It holds no state between calls.
type Engine struct {
	cfg Config
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 1
	}
	if cfg.BandWidth.Sign() <= 0 {
		cfg.BandWidth = decimal.NewFromInt(1)
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Classify fits the model on every bucket but the last and tests the last one.
// Equality with a band edge is not a signal.
func (e *Engine) Classify(buckets []model.Bucket) Result {
	if len(buckets) == 0 {
		return Result{Status: StatusInsufficientData}
	}

	latest := buckets[len(buckets)-1]
	history := buckets[:len(buckets)-1]

	values := make([]decimal.Decimal, len(history))
	for i, b := range history {
		values[i] = b.Imbalance
	}
	m := Fit(values)

	res := Result{Model: m, Latest: latest}
	if m.SampleCount < e.cfg.MinSamples {
		res.Status = StatusInsufficientData
		return res
	}

	x := latest.Imbalance
	var dir model.Direction
	switch {
	case x.GreaterThan(m.Upper(e.cfg.BandWidth)):
		dir = model.DirectionBuy
	case x.LessThan(m.Lower(e.cfg.BandWidth)):
		dir = model.DirectionSell
	default:
		res.Status = StatusNoSignal
		return res
	}

	res.Status = StatusSignal
	res.Signal = &model.Signal{
		Direction:      dir,
		Magnitude:      x,
		ReferencePrice: latest.LastPrice,
		BucketTime:     latest.Start,
		QuoteVolume:    latest.BuyQuote.Add(latest.SellQuote),
		Model:          m,
		Band:           e.cfg.BandWidth,
	}
	return res
}

// Fit computes the mean and population standard deviation of values.
func Fit(values []decimal.Decimal) model.ThresholdModel {
	n := len(values)
	if n == 0 {
		return model.ThresholdModel{Mean: decimal.Zero, StdDev: decimal.Zero}
	}

	count := decimal.NewFromInt(int64(n))
	mean := decimal.Sum(decimal.Zero, values...).Div(count)

	sq := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sq = sq.Add(diff.Mul(diff))
	}
	variance := sq.Div(count)

	return model.ThresholdModel{
		Mean:        mean,
		StdDev:      sqrt(variance),
		SampleCount: n,
	}
}

// sqrt refines a float64 estimate with Newton steps in decimal arithmetic.
// Perfect squares come back exact.
func sqrt(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}

	x := decimal.NewFromFloat(math.Sqrt(v.InexactFloat64()))
	if x.Sign() <= 0 {
		return decimal.Zero
	}

	two := decimal.NewFromInt(2)
	for i := 0; i < 4; i++ {
		next := x.Add(v.DivRound(x, 24)).DivRound(two, 24)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x.Round(16)
}

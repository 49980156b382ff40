// Package collector persists the live Binance trade stream.
//
// Each combined-stream frame is decoded into a model.Trade and handed to the
// trade writer. Per-symbol counters track volume by aggressor side and gaps
// in the trade id sequence, which show up after reconnects.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/api"
	"github.com/rickgao/aggression-monitor/internal/connection"
	"github.com/rickgao/aggression-monitor/internal/model"
)

// MessageSource delivers raw stream frames.
type MessageSource interface {
	Messages() <-chan connection.TimestampedMessage
}

// TradeSink accepts decoded trades.
type TradeSink interface {
	EnqueueTrades(trades []model.Trade)
}

// SymbolStats holds live counters for one symbol.
type SymbolStats struct {
	Trades      int64
	BuyVolume   decimal.Decimal
	SellVolume  decimal.Decimal
	LastPrice   decimal.Decimal
	LastTradeID int64
	LastTradeAt time.Time
	Gaps        int64 // Discontinuities in the trade id sequence
	MissedIDs   int64 // Sum of ids skipped across gaps
	Latency     time.Duration
}

// Imbalance returns BuyVolume - SellVolume since start.
func (s SymbolStats) Imbalance() decimal.Decimal {
	return s.BuyVolume.Sub(s.SellVolume)
}

// Collector decodes stream frames into trades.
type Collector struct {
	source MessageSource
	sink   TradeSink
	logger *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	symbols     map[string]*SymbolStats
	parseErrors int64
}

// New creates a Collector.
func New(source MessageSource, sink TradeSink, logger *zap.SugaredLogger) *Collector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collector{
		source:  source,
		sink:    sink,
		logger:  logger,
		symbols: make(map[string]*SymbolStats),
	}
}

// Start begins consuming frames.
func (c *Collector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()
	return nil
}

// Stop waits for the consumer goroutine to exit.
func (c *Collector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a copy of the per-symbol counters.
func (c *Collector) Stats() map[string]SymbolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]SymbolStats, len(c.symbols))
	for sym, s := range c.symbols {
		out[sym] = *s
	}
	return out
}

// ParseErrors returns the number of frames that could not be decoded.
func (c *Collector) ParseErrors() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parseErrors
}

func (c *Collector) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.source.Messages():
			trade, err := Decode(msg.Data)
			if err != nil {
				c.mu.Lock()
				c.parseErrors++
				c.mu.Unlock()
				c.logger.Debugw("Discarding stream frame", "error", err, "size", len(msg.Data))
				continue
			}
			c.record(trade, msg.ReceivedAt)
			if c.sink != nil {
				c.sink.EnqueueTrades([]model.Trade{trade})
			}
		}
	}
}

func (c *Collector) record(t model.Trade, receivedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.symbols[t.Symbol]
	if !ok {
		s = &SymbolStats{}
		c.symbols[t.Symbol] = s
	}

	if s.LastTradeID > 0 && t.ID > s.LastTradeID+1 {
		s.Gaps++
		s.MissedIDs += t.ID - s.LastTradeID - 1
		c.logger.Debugw("Trade id gap",
			"symbol", t.Symbol,
			"from", s.LastTradeID,
			"to", t.ID,
		)
	}
	if t.ID > s.LastTradeID {
		s.LastTradeID = t.ID
	}

	s.Trades++
	if t.Side() == model.DirectionBuy {
		s.BuyVolume = s.BuyVolume.Add(t.Quantity)
	} else {
		s.SellVolume = s.SellVolume.Add(t.Quantity)
	}
	s.LastPrice = t.Price
	s.LastTradeAt = t.Time
	if !receivedAt.IsZero() {
		s.Latency = receivedAt.Sub(t.Time)
	}
}

// Decode parses a combined-stream frame or a bare trade event.
func Decode(data []byte) (model.Trade, error) {
	var combined api.CombinedStreamMessage
	if err := json.Unmarshal(data, &combined); err != nil {
		return model.Trade{}, fmt.Errorf("decode frame: %w", err)
	}

	event := combined.Data
	if combined.Stream == "" {
		// Raw /ws/<symbol>@trade frames carry the event at top level.
		if err := json.Unmarshal(data, &event); err != nil {
			return model.Trade{}, fmt.Errorf("decode trade: %w", err)
		}
	}

	if event.EventType != "trade" {
		return model.Trade{}, fmt.Errorf("unexpected event %q", event.EventType)
	}
	return event.ToModel()
}

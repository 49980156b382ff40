package writer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/buffer"
	"github.com/rickgao/aggression-monitor/internal/model"
	"github.com/rickgao/aggression-monitor/internal/storage"
)

// Config holds batching settings. BatchSize, FlushInterval and BufferSize
// apply to streamed trades; windows are written whole.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
	WindowQueue   int // Pending windows before the oldest is dropped
}

// DefaultConfig returns default batching settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		BufferSize:    10000,
		WindowQueue:   8,
	}
}

// Stats holds writer counters. Enqueued and Dropped count trades; the
// Window fields count whole fetch windows.
type Stats struct {
	Enqueued       int64
	Dropped        int64
	Windows        int64
	WindowsDropped int64
	Inserted   int64
	Duplicates int64
	Flushes    int64
	Errors     int64
}

// TradeWriter writes trades to a sink in the background. Each fetch window
// goes to the sink in a single SaveTrades call; streamed trades are batched.
type TradeWriter struct {
	cfg    Config
	logger *zap.SugaredLogger

	windows *buffer.Ring[model.TradeWindow]
	input   *buffer.Ring[model.Trade]
	sink    storage.TradeSink

	batch   []model.Trade
	batchMu sync.Mutex

	// flushMu serialises sink writes between the consumer and the ticker.
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewTradeWriter creates a TradeWriter.
func NewTradeWriter(cfg Config, sink storage.TradeSink, logger *zap.SugaredLogger) *TradeWriter {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WindowQueue <= 0 {
		cfg.WindowQueue = def.WindowQueue
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	initial := min(cfg.BatchSize*2, cfg.BufferSize)
	return &TradeWriter{
		cfg:     cfg,
		logger:  logger,
		windows: buffer.NewRing[model.TradeWindow](min(2, cfg.WindowQueue), cfg.WindowQueue),
		input:   buffer.NewRing[model.Trade](initial, cfg.BufferSize),
		sink:    sink,
		batch:   make([]model.Trade, 0, cfg.BatchSize),
	}
}

// Enqueue queues a fetch window for persistence as one unit. It never
// blocks; when WindowQueue windows are pending the oldest is dropped whole.
func (w *TradeWriter) Enqueue(window model.TradeWindow) {
	if window.Empty() {
		return
	}

	dropped, err := w.windows.Push(window)
	if err != nil {
		w.logger.Debugw("Trade writer closed, discarding window", "symbol", window.Symbol, "count", window.Len())
		return
	}

	w.statsMu.Lock()
	w.stats.Windows++
	w.stats.Enqueued += int64(window.Len())
	w.stats.WindowsDropped += int64(dropped)
	w.statsMu.Unlock()

	if dropped > 0 {
		w.logger.Warnw("Window queue full, dropped oldest window", "symbol", window.Symbol)
	}
}

// EnqueueTrades queues streamed trades for batched writes.
func (w *TradeWriter) EnqueueTrades(trades []model.Trade) {
	if len(trades) == 0 {
		return
	}

	dropped, err := w.input.Push(trades...)
	if err != nil {
		w.logger.Debugw("Trade writer closed, discarding trades", "count", len(trades))
		return
	}

	w.statsMu.Lock()
	w.stats.Enqueued += int64(len(trades))
	w.stats.Dropped += int64(dropped)
	w.statsMu.Unlock()

	if dropped > 0 {
		w.logger.Warnw("Trade buffer full, dropped oldest trades", "dropped", dropped)
	}
}

// Start begins consuming trades.
func (w *TradeWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(3)
	go w.windowLoop()
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Infow("Trade writer started",
		"sink", w.sink.Name(),
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the buffer, flushes, and waits for the goroutines.
func (w *TradeWriter) Stop(ctx context.Context) error {
	w.logger.Infow("Stopping trade writer")

	w.windows.Close()
	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warnw("Trade writer stop timed out")
	}

	// Final writes of anything still queued.
	for _, window := range w.windows.Drain() {
		w.save(ctx, window.Trades)
	}
	w.append(w.input.Drain())
	w.flush(ctx)

	w.logger.Infow("Trade writer stopped", "stats", w.Stats())
	return nil
}

// Stats returns current counters.
func (w *TradeWriter) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

// Pending returns the number of queued windows plus queued and batched
// streamed trades not yet flushed.
func (w *TradeWriter) Pending() int {
	w.batchMu.Lock()
	n := len(w.batch)
	w.batchMu.Unlock()
	return n + w.input.Len() + w.windows.Len()
}

func (w *TradeWriter) windowLoop() {
	defer w.wg.Done()

	for {
		windows, ok := w.windows.PopBatch(w.ctx, 1)
		if !ok {
			return
		}
		for _, window := range windows {
			w.save(w.ctx, window.Trades)
		}
	}
}

func (w *TradeWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		trades, ok := w.input.PopBatch(w.ctx, w.cfg.BatchSize)
		if !ok {
			return
		}
		if w.append(trades) {
			w.flush(w.ctx)
		}
	}
}

func (w *TradeWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// append adds trades to the batch and reports whether it reached BatchSize.
func (w *TradeWriter) append(trades []model.Trade) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, trades...)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current streamed batch to the sink.
func (w *TradeWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.Trade, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	w.save(ctx, batch)
}

// save makes one SaveTrades call. Failed writes are counted, not retried;
// the next cycle's window resubmits the same trades.
func (w *TradeWriter) save(ctx context.Context, batch []model.Trade) {
	if len(batch) == 0 {
		return
	}

	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if ctx.Err() != nil {
		// Shutdown path: give the final write its own deadline.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	start := time.Now()
	inserted, err := w.sink.SaveTrades(ctx, batch)

	w.statsMu.Lock()
	if err != nil {
		w.stats.Errors++
	}
	w.stats.Inserted += int64(inserted)
	if err == nil {
		w.stats.Duplicates += int64(len(batch) - inserted)
	}
	w.stats.Flushes++
	w.statsMu.Unlock()

	if err != nil {
		w.logger.Errorw("Trade batch write failed", "sink", w.sink.Name(), "count", len(batch), "error", err)
		return
	}

	w.logger.Debugw("Flushed trades",
		"count", len(batch),
		"inserted", inserted,
		"duration", time.Since(start),
	)
}

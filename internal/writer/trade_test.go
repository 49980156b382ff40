package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// memSink records saved trades and dedups by id like the real sinks.
type memSink struct {
	mu    sync.Mutex
	seen  map[int64]bool
	calls int
	sizes []int
	err   error
}

func newMemSink() *memSink {
	return &memSink{seen: make(map[int64]bool)}
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) SaveTrades(_ context.Context, trades []model.Trade) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.sizes = append(s.sizes, len(trades))
	if s.err != nil {
		return 0, s.err
	}
	inserted := 0
	for _, t := range trades {
		if !s.seen[t.ID] {
			s.seen[t.ID] = true
			inserted++
		}
	}
	return inserted, nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) callSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func window(from, n int) model.TradeWindow {
	trades := make([]model.Trade, n)
	for i := range n {
		trades[i] = model.Trade{
			ID:       int64(from + i),
			Symbol:   "BTCUSDT",
			Price:    decimal.NewFromInt(100),
			Quantity: decimal.NewFromInt(1),
			Time:     time.Unix(int64(from+i), 0).UTC(),
		}
	}
	return model.TradeWindow{Symbol: "BTCUSDT", Trades: trades}
}

func TestTradeWriter_Lifecycle(t *testing.T) {
	w := NewTradeWriter(Config{BatchSize: 10, FlushInterval: 100 * time.Millisecond}, newMemSink(), nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestTradeWriter_StreamFlushOnBatchSize(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{BatchSize: 10, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	w.EnqueueTrades(window(1, 25).Trades)

	deadline := time.Now().Add(time.Second)
	for sink.count() < 20 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got < 20 {
		t.Errorf("sink has %d trades, want at least 20 before the interval flush", got)
	}
}

func TestTradeWriter_StreamFlushOnInterval(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{BatchSize: 1000, FlushInterval: 20 * time.Millisecond}, sink, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	w.EnqueueTrades(window(1, 3).Trades)

	deadline := time.Now().Add(time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got != 3 {
		t.Errorf("sink has %d trades, want 3", got)
	}
}

func TestTradeWriter_StopFlushesPending(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{BatchSize: 1000, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())

	w.EnqueueTrades(window(1, 42).Trades)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(stopCtx)

	if got := sink.count(); got != 42 {
		t.Errorf("sink has %d trades after Stop, want 42", got)
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", w.Pending())
	}
}

func TestTradeWriter_OverlappingWindows(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{BatchSize: 1000, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())

	w.Enqueue(window(1, 10))
	w.Enqueue(window(6, 10))
	w.Stop(context.Background())

	stats := w.Stats()
	if stats.Enqueued != 20 {
		t.Errorf("Enqueued = %d, want 20", stats.Enqueued)
	}
	if stats.Inserted != 15 {
		t.Errorf("Inserted = %d, want 15", stats.Inserted)
	}
	if stats.Duplicates != 5 {
		t.Errorf("Duplicates = %d, want 5", stats.Duplicates)
	}
}

func TestTradeWriter_SinkError(t *testing.T) {
	sink := newMemSink()
	sink.err = errors.New("db down")
	w := NewTradeWriter(Config{BatchSize: 5, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())

	w.Enqueue(window(1, 5))
	w.Stop(context.Background())

	stats := w.Stats()
	if stats.Errors == 0 {
		t.Error("Errors = 0, want at least 1")
	}
	if stats.Inserted != 0 {
		t.Errorf("Inserted = %d, want 0", stats.Inserted)
	}
}

func TestTradeWriter_StreamDropsOldestWhenFull(t *testing.T) {
	w := NewTradeWriter(Config{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 4}, newMemSink(), nil)

	// Not started: nothing consumes.
	w.EnqueueTrades(window(1, 6).Trades)

	stats := w.Stats()
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}
	if w.Pending() != 4 {
		t.Errorf("Pending() = %d, want 4", w.Pending())
	}
}

func TestTradeWriter_EmptyWindow(t *testing.T) {
	w := NewTradeWriter(DefaultConfig(), newMemSink(), nil)
	w.Enqueue(model.TradeWindow{})
	if w.Stats().Enqueued != 0 {
		t.Error("empty window should not be counted")
	}
}

func TestTradeWriter_WindowIsOneSaveCall(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{BatchSize: 500, FlushInterval: time.Hour}, sink, nil)
	w.Start(context.Background())

	w.Enqueue(window(1, 1200))
	w.Enqueue(window(1001, 300))

	deadline := time.Now().Add(time.Second)
	for len(sink.callSizes()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop(context.Background())

	sizes := sink.callSizes()
	if len(sizes) != 2 || sizes[0] != 1200 || sizes[1] != 300 {
		t.Fatalf("SaveTrades call sizes = %v, want [1200 300]", sizes)
	}
	stats := w.Stats()
	if stats.Windows != 2 {
		t.Errorf("Windows = %d, want 2", stats.Windows)
	}
	if stats.Inserted != 1300 || stats.Duplicates != 200 {
		t.Errorf("Inserted = %d, Duplicates = %d, want 1300 and 200", stats.Inserted, stats.Duplicates)
	}
}

func TestTradeWriter_StopSavesQueuedWindows(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{FlushInterval: time.Hour}, sink, nil)

	// Not started: windows stay queued until Stop drains them.
	w.Enqueue(window(1, 10))
	w.Enqueue(window(11, 10))
	if w.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", w.Pending())
	}

	w.Stop(context.Background())

	sizes := sink.callSizes()
	if len(sizes) != 2 || sizes[0] != 10 || sizes[1] != 10 {
		t.Errorf("SaveTrades call sizes = %v, want [10 10]", sizes)
	}
	if sink.count() != 20 {
		t.Errorf("sink has %d trades, want 20", sink.count())
	}
}

func TestTradeWriter_WindowQueueDropsWholeWindows(t *testing.T) {
	sink := newMemSink()
	w := NewTradeWriter(Config{FlushInterval: time.Hour, WindowQueue: 2}, sink, nil)

	// Not started: nothing consumes.
	w.Enqueue(window(1, 5))
	w.Enqueue(window(6, 5))
	w.Enqueue(window(11, 5))

	stats := w.Stats()
	if stats.WindowsDropped != 1 {
		t.Errorf("WindowsDropped = %d, want 1", stats.WindowsDropped)
	}

	w.Stop(context.Background())

	// The oldest window is gone entirely; the survivors are saved intact.
	sizes := sink.callSizes()
	if len(sizes) != 2 || sizes[0] != 5 || sizes[1] != 5 {
		t.Errorf("SaveTrades call sizes = %v, want [5 5]", sizes)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.seen[1] {
		t.Error("trade 1 from the dropped window was saved")
	}
	if !sink.seen[6] || !sink.seen[15] {
		t.Error("trades from the newest windows were not saved")
	}
}

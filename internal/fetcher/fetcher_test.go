package fetcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/aggression-monitor/internal/model"
)

var base = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// memSource serves trades with id i at base + i*10s.
type memSource struct {
	mu     sync.Mutex
	trades []model.Trade
	extra  int // additional trades returned past limit, to force overlapping pages
	failAt int // 1-based call number that fails
	calls  []int64
}

func newMemSource(n int) *memSource {
	s := &memSource{}
	s.add(1, n)
	return s
}

func (s *memSource) add(from, to int) {
	for i := from; i <= to; i++ {
		s.trades = append(s.trades, model.Trade{
			ID:       int64(i),
			Symbol:   "BTCUSDT",
			Price:    decimal.NewFromInt(int64(60000 + i)),
			Quantity: decimal.NewFromInt(1),
			Time:     base.Add(time.Duration(i) * 10 * time.Second),
		})
	}
}

func (s *memSource) HistoricalTrades(ctx context.Context, symbol string, limit int, fromID int64) ([]model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, fromID)
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return nil, errors.New("upstream unavailable")
	}

	if fromID <= 0 {
		start := len(s.trades) - limit
		if start < 0 {
			start = 0
		}
		return append([]model.Trade(nil), s.trades[start:]...), nil
	}

	idx := sort.Search(len(s.trades), func(i int) bool { return s.trades[i].ID >= fromID })
	end := idx + limit + s.extra
	if end > len(s.trades) {
		end = len(s.trades)
	}
	return append([]model.Trade(nil), s.trades[idx:end]...), nil
}

func newTestFetcher(src Source, maxPages int, pace time.Duration, now time.Time) *Fetcher {
	f := New(Config{MaxPages: maxPages, Pace: pace, Interval: time.Minute}, src, nil)
	f.now = func() time.Time { return now }
	return f
}

func ids(trades []model.Trade) []int64 {
	out := make([]int64, len(trades))
	for i, t := range trades {
		out[i] = t.ID
	}
	return out
}

func idRange(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestFetchWindow_StopsAtBoundaryPage(t *testing.T) {
	src := newMemSource(300)
	// now = 12:50:30 -> window [12:40:00, 12:50:00)
	f := newTestFetcher(src, 50, 0, base.Add(50*time.Minute+30*time.Second))

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)

	assert.Equal(t, base.Add(40*time.Minute), w.Start)
	assert.Equal(t, base.Add(50*time.Minute), w.End)
	assert.Equal(t, 3, w.Pages)
	assert.False(t, w.Partial)
	assert.Equal(t, []int64{0, 251, 226}, src.calls)

	// The third page (226..250) crossed the boundary; its in-window trades stay.
	assert.Equal(t, idRange(240, 299), ids(w.Trades))
	for _, tr := range w.Trades {
		assert.False(t, tr.Time.Before(w.Start), "trade %d before start", tr.ID)
		assert.True(t, tr.Time.Before(w.End), "trade %d at or after end", tr.ID)
	}
}

func TestFetchWindow_DeduplicatesOverlappingPages(t *testing.T) {
	src := newMemSource(300)
	src.extra = 10
	f := newTestFetcher(src, 50, 0, base.Add(50*time.Minute+30*time.Second))

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for _, tr := range w.Trades {
		require.False(t, seen[tr.ID], "duplicate trade id %d", tr.ID)
		seen[tr.ID] = true
	}
	assert.Equal(t, idRange(240, 299), ids(w.Trades))
}

func TestFetchWindow_EmptySource(t *testing.T) {
	src := &memSource{}
	f := newTestFetcher(src, 50, 0, base)

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)
	assert.True(t, w.Empty())
	assert.Equal(t, 1, w.Pages)
	assert.Equal(t, 0, w.NewTrades)
}

func TestFetchWindow_PageBudget(t *testing.T) {
	src := newMemSource(300)
	f := newTestFetcher(src, 2, 0, base.Add(50*time.Minute+30*time.Second))

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)
	assert.True(t, w.Partial)
	assert.Equal(t, 2, w.Pages)
	assert.Equal(t, idRange(251, 299), ids(w.Trades))
}

func TestFetchWindow_ErrorReturnsPartialWindow(t *testing.T) {
	src := newMemSource(300)
	src.failAt = 2
	f := newTestFetcher(src, 50, 0, base.Add(50*time.Minute+30*time.Second))

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page 2")
	assert.Equal(t, 1, w.Pages)
	assert.Equal(t, idRange(276, 299), ids(w.Trades))
}

func TestFetchWindow_StopsAtFirstTrade(t *testing.T) {
	src := newMemSource(30)
	// Everything is inside a one hour lookback; pagination must stop at id 1.
	f := newTestFetcher(src, 50, 0, base.Add(30*time.Minute))

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", time.Hour, 25)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, src.calls)
	assert.Equal(t, idRange(1, 30), ids(w.Trades))
}

func TestFetchWindow_CursorCountsNewTrades(t *testing.T) {
	src := newMemSource(300)
	now := base.Add(50*time.Minute + 30*time.Second)
	f := newTestFetcher(src, 50, 0, now)

	w, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)
	assert.Equal(t, 60, w.NewTrades)
	assert.Equal(t, int64(299), f.Cursor().Last())

	src.add(301, 306)
	f.now = func() time.Time { return now.Add(time.Minute) }

	w, err = f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)
	// Window [12:41:00, 12:51:00): ids 246..305, of which 300..305 are new.
	assert.Equal(t, idRange(246, 305), ids(w.Trades))
	assert.Equal(t, 6, w.NewTrades)
	assert.Equal(t, int64(305), f.Cursor().Last())
}

func TestFetchWindow_Paces(t *testing.T) {
	src := newMemSource(300)
	f := newTestFetcher(src, 50, 30*time.Millisecond, base.Add(50*time.Minute+30*time.Second))

	start := time.Now()
	_, err := f.FetchWindow(context.Background(), "BTCUSDT", 10*time.Minute, 25)
	require.NoError(t, err)

	// Three requests, two pacing gaps.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchWindow_ContextCanceled(t *testing.T) {
	src := newMemSource(300)
	f := newTestFetcher(src, 50, time.Hour, base.Add(50*time.Minute+30*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w, err := f.FetchWindow(ctx, "BTCUSDT", 10*time.Minute, 25)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pace request")
	assert.Equal(t, 1, w.Pages)
}

func TestCursor_Advance(t *testing.T) {
	var c Cursor

	fresh, regressed := c.Advance([]model.Trade{{ID: 5}, {ID: 7}, {ID: 6}})
	assert.Equal(t, 3, fresh)
	assert.False(t, regressed)
	assert.Equal(t, int64(7), c.Last())

	fresh, regressed = c.Advance([]model.Trade{{ID: 6}, {ID: 7}, {ID: 8}})
	assert.Equal(t, 1, fresh)
	assert.False(t, regressed)

	fresh, regressed = c.Advance([]model.Trade{{ID: 3}})
	assert.Equal(t, 0, fresh)
	assert.True(t, regressed)
	assert.Equal(t, int64(8), c.Last())

	fresh, regressed = c.Advance(nil)
	assert.Equal(t, 0, fresh)
	assert.False(t, regressed)
}

package fetcher

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// Source serves one page of trade history. fromID <= 0 requests the most recent page.
// Trades within a page are ordered by id.
type Source interface {
	HistoricalTrades(ctx context.Context, symbol string, limit int, fromID int64) ([]model.Trade, error)
}

// Config holds fetcher configuration.
type Config struct {
	MaxPages int           // Page budget per window (default: 50)
	Pace     time.Duration // Minimum spacing between requests (default: 500ms)
	Interval time.Duration // Bucket width; the window end is aligned to it

	Now func() time.Time // Defaults to time.Now
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages: 50,
		Pace:     500 * time.Millisecond,
		Interval: time.Minute,
	}
}

// Fetcher pages trade history for a single symbol loop.
type Fetcher struct {
	cfg     Config
	src     Source
	limiter *rate.Limiter
	cursor  Cursor
	logger  *zap.SugaredLogger

	now func() time.Time
}

// New creates a Fetcher.
func New(cfg Config, src Source, logger *zap.SugaredLogger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}

	limit := rate.Inf
	if cfg.Pace > 0 {
		limit = rate.Every(cfg.Pace)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Fetcher{
		cfg:     cfg,
		src:     src,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     now,
	}
}

// Cursor returns the fetcher's cursor.
func (f *Fetcher) Cursor() *Cursor {
	return &f.cursor
}

// Span returns the [start, end) window for a lookback ending at the last
// completed interval boundary before now.
func (f *Fetcher) Span(lookback time.Duration) (start, end time.Time) {
	end = f.now().UTC()
	if f.cfg.Interval > 0 {
		end = end.Truncate(f.cfg.Interval)
	}
	return end.Add(-lookback), end
}

// FetchWindow collects the trades of the last lookback for symbol.
//
// On a fetch error the trades gathered so far are returned together with the
// error, so the caller can decide whether a partial window is usable.
func (f *Fetcher) FetchWindow(ctx context.Context, symbol string, lookback time.Duration, pageSize int) (model.TradeWindow, error) {
	start, end := f.Span(lookback)
	window := model.TradeWindow{
		Symbol: symbol,
		Start:  start,
		End:    end,
	}

	seen := make(map[int64]struct{})
	var acc []model.Trade
	var fetchErr error
	var fromID int64

	for {
		if window.Pages >= f.cfg.MaxPages {
			window.Partial = true
			f.logger.Warnw("page budget exhausted, using partial window",
				"symbol", symbol,
				"pages", window.Pages,
				"trades", len(acc),
			)
			break
		}

		if err := f.limiter.Wait(ctx); err != nil {
			fetchErr = fmt.Errorf("pace request: %w", err)
			break
		}

		page, err := f.src.HistoricalTrades(ctx, symbol, pageSize, fromID)
		if err != nil {
			fetchErr = fmt.Errorf("fetch page %d: %w", window.Pages+1, err)
			break
		}
		window.Pages++

		if len(page) == 0 {
			break
		}

		oldest := page[0]
		for _, t := range page {
			if t.ID < oldest.ID {
				oldest = t
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			acc = append(acc, t)
		}

		f.logger.Debugw("fetched trade page",
			"symbol", symbol,
			"page", window.Pages,
			"from_id", fromID,
			"oldest_id", oldest.ID,
			"oldest_time", oldest.Time,
			"collected", len(acc),
		)

		if oldest.Time.Before(start) || oldest.ID <= 1 {
			break
		}

		next := oldest.ID - int64(pageSize)
		if next < 1 {
			next = 1
		}
		fromID = next
	}

	window.Trades = trim(acc, start, end)

	fresh, regressed := f.cursor.Advance(window.Trades)
	window.NewTrades = fresh
	if regressed {
		f.logger.Warnw("trade id regressed below cursor",
			"symbol", symbol,
			"cursor", f.cursor.Last(),
			"window_last_id", window.LastID(),
		)
	}

	return window, fetchErr
}

// trim keeps trades in [start, end) ordered by time, then id.
func trim(trades []model.Trade, start, end time.Time) []model.Trade {
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Time.Before(start) || !t.Time.Before(end) {
			continue
		}
		out = append(out, t)
	}

	slices.SortFunc(out, func(a, b model.Trade) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

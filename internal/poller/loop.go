package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/aggregator"
	"github.com/rickgao/aggression-monitor/internal/alert"
	"github.com/rickgao/aggression-monitor/internal/fetcher"
	"github.com/rickgao/aggression-monitor/internal/model"
	"github.com/rickgao/aggression-monitor/internal/notify"
	"github.com/rickgao/aggression-monitor/internal/threshold"
)

// Source is a trade history source owned by one loop.
type Source interface {
	fetcher.Source
	Close() error
}

// SourceFactory opens a Source for symbol. It is called once per loop start.
type SourceFactory func(symbol string) (Source, error)

// TradeSink receives each cycle's window for persistence. Enqueue must not block.
type TradeSink interface {
	Enqueue(window model.TradeWindow)
}

// Recorder observes completed cycles (metrics).
type Recorder interface {
	ObserveCycle(report CycleReport)
}

// Config holds per-loop settings.
type Config struct {
	Symbol       string
	Lookback     time.Duration
	PageSize     int
	PollInterval time.Duration
	CycleTimeout time.Duration
	MaxBackoff   time.Duration

	Fetch     fetcher.Config
	Threshold threshold.Config
}

// DefaultConfig returns defaults for symbol.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:       symbol,
		Lookback:     30 * time.Minute,
		PageSize:     1000,
		PollInterval: 60 * time.Second,
		CycleTimeout: 45 * time.Second,
		MaxBackoff:   10 * time.Minute,
		Fetch:        fetcher.DefaultConfig(),
		Threshold:    threshold.DefaultConfig(),
	}
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Symbol    string
	Started   time.Time
	Duration  time.Duration
	Trades    int
	Pages     int
	Partial   bool
	NewTrades int
	Buckets   int
	Status    threshold.Status // StatusNone when the cycle was not classified
	Model     model.ThresholdModel
	Latest    decimal.Decimal
	Signal    *model.Signal
	Outcome   string // Alert outcome, empty when no signal
	AlertID   string
	Err       error
}

// Failed reports whether the cycle ended with an error.
func (r CycleReport) Failed() bool {
	return r.Err != nil
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTargets sets alert destinations.
func WithTargets(targets []notify.Target) Option {
	return func(l *Loop) {
		l.targets = targets
	}
}

// WithTradeSink sets the persistence side channel.
func WithTradeSink(sink TradeSink) Option {
	return func(l *Loop) {
		l.sink = sink
	}
}

// WithRecorder sets the cycle observer.
func WithRecorder(rec Recorder) Option {
	return func(l *Loop) {
		l.recorder = rec
	}
}

// Loop monitors one symbol.
type Loop struct {
	cfg      Config
	factory  SourceFactory
	targets  []notify.Target
	sink     TradeSink
	recorder Recorder
	logger   *zap.SugaredLogger // Tagged with the symbol
	base     *zap.SugaredLogger // For components that tag the symbol themselves

	// Owned by the running goroutine between open and close.
	src      Source
	fetcher  *fetcher.Fetcher
	engine   *threshold.Engine
	emitter  *alert.Emitter
	failures int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	last   CycleReport
	cycles int64
}

// NewLoop creates a Loop. Nothing is opened until Start or Run.
func NewLoop(cfg Config, factory SourceFactory, opts ...Option) *Loop {
	if cfg.Fetch.Interval <= 0 {
		cfg.Fetch.Interval = time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}

	l := &Loop{
		cfg:     cfg,
		factory: factory,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.base = l.logger
	l.logger = l.logger.With("symbol", cfg.Symbol)
	l.engine = threshold.New(cfg.Threshold)
	l.emitter = alert.NewEmitter(l.targets, alert.WithLogger(l.base))
	return l
}

// Symbol returns the monitored symbol.
func (l *Loop) Symbol() string {
	return l.cfg.Symbol
}

// open acquires the loop's source.
func (l *Loop) open() error {
	src, err := l.factory(l.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("open source for %s: %w", l.cfg.Symbol, err)
	}
	l.src = src
	l.fetcher = fetcher.New(l.cfg.Fetch, src, l.base)
	return nil
}

func (l *Loop) close() {
	if l.src == nil {
		return
	}
	if err := l.src.Close(); err != nil {
		l.logger.Warnw("Closing source failed", "error", err)
	}
	l.src = nil
}

// Run opens the source and cycles until ctx is cancelled. It returns an
// error only when the source cannot be opened.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.open(); err != nil {
		return err
	}
	defer l.close()

	l.cycle(ctx)
	return nil
}

// Start opens the source and runs the loop in the background.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.open(); err != nil {
		return err
	}
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.close()
		l.cycle(l.ctx)
	}()
	return nil
}

func (l *Loop) cycle(ctx context.Context) {
	l.logger.Infow("Monitor loop started",
		"lookback", l.cfg.Lookback,
		"interval", l.cfg.Fetch.Interval,
		"poll_interval", l.cfg.PollInterval,
		"min_samples", l.cfg.Threshold.MinSamples,
		"band_width", l.cfg.Threshold.BandWidth.String(),
	)
	defer l.logger.Infow("Monitor loop stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		report := l.RunCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := l.nextDelay(report)
		l.logger.Debugw("Sleeping until next cycle", "delay", delay)
		timer.Reset(delay)
	}
}

// Stop cancels the loop and waits for the current cycle to finish.
func (l *Loop) Stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastReport returns the most recent cycle report and the cycle count.
func (l *Loop) LastReport() (CycleReport, int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.cycles
}

// nextDelay returns PollInterval, doubled for each consecutive failure
// beyond the first and capped at MaxBackoff.
func (l *Loop) nextDelay(report CycleReport) time.Duration {
	if !report.Failed() {
		l.failures = 0
		return l.cfg.PollInterval
	}
	l.failures++

	delay := l.cfg.PollInterval
	for i := 1; i < l.failures; i++ {
		delay *= 2
		if l.cfg.MaxBackoff > 0 && delay >= l.cfg.MaxBackoff {
			return l.cfg.MaxBackoff
		}
	}
	return delay
}

// RunCycle runs one FETCH/AGGREGATE/CLASSIFY/EMIT pass. The source must be
// open (Run and Start do this).
func (l *Loop) RunCycle(ctx context.Context) (report CycleReport) {
	report = CycleReport{
		Symbol:  l.cfg.Symbol,
		Started: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("cycle panic: %v", r)
			l.logger.Errorw("Cycle panicked", "panic", r)
		}
		if report.Signal == nil {
			l.emitter.Clear(l.cfg.Symbol)
		}
		report.Duration = time.Since(report.Started)
		l.finish(report)
	}()

	if l.fetcher == nil {
		report.Err = errors.New("source not open")
		return report
	}

	if l.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.CycleTimeout)
		defer cancel()
	}

	// FETCH
	window, err := l.fetcher.FetchWindow(ctx, l.cfg.Symbol, l.cfg.Lookback, l.cfg.PageSize)
	report.Trades = window.Len()
	report.Pages = window.Pages
	report.Partial = window.Partial
	report.NewTrades = window.NewTrades

	if !window.Empty() && l.sink != nil {
		l.sink.Enqueue(window)
	}

	if err != nil {
		report.Err = err
		if window.Empty() || ctx.Err() != nil {
			l.logger.Warnw("Fetch failed, skipping cycle",
				"error", err,
				"trades", window.Len(),
				"pages", window.Pages,
			)
			return report
		}
		// Classify what was fetched before the error.
		window.Partial = true
		report.Partial = true
		l.logger.Warnw("Fetch failed, classifying partial window",
			"error", err,
			"trades", window.Len(),
			"pages", window.Pages,
		)
	}

	if window.Empty() {
		report.Status = threshold.StatusNoSignal
		l.logger.Infow("No trades in lookback window", "start", window.Start, "end", window.End)
		return report
	}

	// AGGREGATE
	buckets := aggregator.Aggregate(window, l.cfg.Fetch.Interval)
	report.Buckets = len(buckets)
	for _, b := range buckets {
		l.logger.Debugw("Bucket",
			"start", b.Start,
			"buy", b.BuyVolume.String(),
			"sell", b.SellVolume.String(),
			"imbalance", b.Imbalance.String(),
			"trades", b.Trades,
		)
	}

	// CLASSIFY
	result := l.engine.Classify(buckets)
	report.Status = result.Status
	report.Model = result.Model
	report.Latest = result.Latest.Imbalance

	band := l.engine.Config().BandWidth
	switch result.Status {
	case threshold.StatusInsufficientData:
		l.logger.Infow("Insufficient history",
			"buckets", len(buckets),
			"samples", result.Model.SampleCount,
			"min_samples", l.engine.Config().MinSamples,
		)
		return report
	case threshold.StatusNoSignal:
		l.logger.Infow("No signal",
			"latest", result.Latest.Imbalance.String(),
			"mean", result.Model.Mean.String(),
			"upper", result.Model.Upper(band).String(),
			"lower", result.Model.Lower(band).String(),
			"trades", window.Len(),
		)
		return report
	}

	// EMIT
	sig := *result.Signal
	sig.Symbol = l.cfg.Symbol
	report.Signal = &sig

	outcome, a := l.emitter.Emit(ctx, sig)
	report.Outcome = outcome.String()
	if a != nil {
		report.AlertID = a.ID.String()
	}

	l.logger.Infow("Signal",
		"direction", sig.Direction.String(),
		"imbalance", sig.Magnitude.String(),
		"price", sig.ReferencePrice.String(),
		"mean", result.Model.Mean.String(),
		"std_dev", result.Model.StdDev.String(),
		"outcome", report.Outcome,
	)
	return report
}

func (l *Loop) finish(report CycleReport) {
	l.mu.Lock()
	l.last = report
	l.cycles++
	l.mu.Unlock()

	if l.recorder != nil {
		l.recorder.ObserveCycle(report)
	}
}

package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/model"
	"github.com/rickgao/aggression-monitor/internal/notify"
)

// Outcome is the result of a single Emit call.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeSuppressed
	OutcomeFailed
	OutcomeUndelivered // No targets configured
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeFailed:
		return "failed"
	case OutcomeUndelivered:
		return "undelivered"
	default:
		return "unknown"
	}
}

// Emitter formats signals and delivers them to every target.
// An Emitter is owned by a single poll loop and is not safe for concurrent use.
type Emitter struct {
	targets []notify.Target
	last    map[string]model.Direction
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the alert creation clock.
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		e.now = now
	}
}

// NewEmitter creates an Emitter delivering to targets.
func NewEmitter(targets []notify.Target, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		targets: targets,
		last:    make(map[string]model.Direction),
		logger:  zap.NewNop().Sugar(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit delivers sig unless it repeats the last alerted direction for its symbol.
// The alert counts as delivered when at least one target accepts it.
func (e *Emitter) Emit(ctx context.Context, sig model.Signal) (Outcome, *model.Alert) {
	if sig.Direction == model.DirectionNone {
		return OutcomeSuppressed, nil
	}

	if prev, ok := e.last[sig.Symbol]; ok && prev == sig.Direction {
		e.logger.Debugw("Alert suppressed",
			"symbol", sig.Symbol,
			"direction", sig.Direction.String(),
			"bucket", sig.BucketTime,
		)
		return OutcomeSuppressed, nil
	}
	e.last[sig.Symbol] = sig.Direction

	alert := model.Alert{
		ID:        uuid.New(),
		Signal:    sig,
		Text:      Format(sig),
		CreatedAt: e.now().UTC(),
	}

	if len(e.targets) == 0 {
		e.logger.Infow("Alert not delivered, no targets configured",
			"alert_id", alert.ID,
			"symbol", sig.Symbol,
			"direction", sig.Direction.String(),
		)
		return OutcomeUndelivered, &alert
	}

	delivered := 0
	for _, target := range e.targets {
		if err := notify.Deliver(ctx, target, alert); err != nil {
			e.logger.Warnw("Alert delivery failed",
				"alert_id", alert.ID,
				"symbol", sig.Symbol,
				"target", target.Name,
				"destination", target.Destination,
				"error", err,
			)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return OutcomeFailed, &alert
	}

	e.logger.Infow("Alert emitted",
		"alert_id", alert.ID,
		"symbol", sig.Symbol,
		"direction", sig.Direction.String(),
		"magnitude", sig.Magnitude.String(),
		"price", sig.ReferencePrice.String(),
		"targets", delivered,
	)
	return OutcomeDelivered, &alert
}

// Clear resets suppression for symbol after a cycle without a signal.
func (e *Emitter) Clear(symbol string) {
	delete(e.last, symbol)
}

// LastDirection returns the last alerted direction for symbol.
func (e *Emitter) LastDirection(symbol string) model.Direction {
	return e.last[symbol]
}

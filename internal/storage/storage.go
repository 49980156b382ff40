// Package storage persists fetched and streamed trades.
//
// Sinks:
//   - Postgres/TimescaleDB via pgx, keyed on (symbol, trade_id)
//   - SQLite via sqlx for single-host deployments and ad-hoc queries
//   - DynamoDB via the AWS SDK
//
// All sinks are idempotent: re-saving a trade is not an error. The poll loop
// hands every cycle's full window to storage, so overlap is expected.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// TradeSink persists trades. SaveTrades returns the number of new rows.
type TradeSink interface {
	Name() string
	SaveTrades(ctx context.Context, trades []model.Trade) (int, error)
	Close() error
}

// Multi fans out to several sinks. Inserted counts come from the first sink.
type Multi struct {
	sinks []TradeSink
}

// NewMulti creates a fan-out sink. With one sink, that sink is returned as is.
func NewMulti(sinks ...TradeSink) TradeSink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string {
	return "multi"
}

// SaveTrades writes to every sink and joins their errors.
func (m *Multi) SaveTrades(ctx context.Context, trades []model.Trade) (int, error) {
	var errs []error
	inserted := -1
	for _, s := range m.sinks {
		n, err := s.SaveTrades(ctx, trades)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if inserted < 0 {
			inserted = n
		}
	}
	if inserted < 0 {
		inserted = 0
	}
	return inserted, errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/aggression-monitor/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	symbol         TEXT        NOT NULL,
	trade_id       BIGINT      NOT NULL,
	price          NUMERIC     NOT NULL,
	quantity       NUMERIC     NOT NULL,
	quote_quantity NUMERIC     NOT NULL,
	trade_time     TIMESTAMPTZ NOT NULL,
	is_buyer_maker BOOLEAN     NOT NULL,
	is_best_match  BOOLEAN     NOT NULL,
	PRIMARY KEY (symbol, trade_id)
);
CREATE INDEX IF NOT EXISTS trades_symbol_time_idx ON trades (symbol, trade_time);
`

// Postgres stores trades in a trades table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The pool is closed by Close.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Name() string {
	return "postgres"
}

// Migrate creates the trades table if missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate trades: %w", err)
	}
	return nil
}

// SaveTrades inserts using pgx.Batch with ON CONFLICT DO NOTHING.
func (p *Postgres) SaveTrades(ctx context.Context, trades []model.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO trades (symbol, trade_id, price, quantity, quote_quantity, trade_time, is_buyer_maker, is_best_match)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
			ON CONFLICT (symbol, trade_id) DO NOTHING
		`, t.Symbol, t.ID, t.Price.String(), t.Quantity.String(), t.Notional().String(), t.Time, t.IsBuyerMaker, t.IsBestMatch)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range trades {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert trade: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

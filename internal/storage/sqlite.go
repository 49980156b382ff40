package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rickgao/aggression-monitor/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	symbol         TEXT    NOT NULL,
	trade_id       INTEGER NOT NULL,
	price          TEXT    NOT NULL,
	quantity       TEXT    NOT NULL,
	quote_quantity TEXT    NOT NULL,
	trade_time     INTEGER NOT NULL,
	is_buyer_maker INTEGER NOT NULL,
	is_best_match  INTEGER NOT NULL,
	PRIMARY KEY (symbol, trade_id)
);
CREATE INDEX IF NOT EXISTS trades_symbol_time_idx ON trades (symbol, trade_time);
`

// tradeRow is the SQLite row layout. Times are Unix milliseconds.
type tradeRow struct {
	Symbol        string `db:"symbol"`
	TradeID       int64  `db:"trade_id"`
	Price         string `db:"price"`
	Quantity      string `db:"quantity"`
	QuoteQuantity string `db:"quote_quantity"`
	TradeTime     int64  `db:"trade_time"`
	IsBuyerMaker  bool   `db:"is_buyer_maker"`
	IsBestMatch   bool   `db:"is_best_match"`
}

func toRow(t model.Trade) tradeRow {
	return tradeRow{
		Symbol:        t.Symbol,
		TradeID:       t.ID,
		Price:         t.Price.String(),
		Quantity:      t.Quantity.String(),
		QuoteQuantity: t.Notional().String(),
		TradeTime:     t.Time.UnixMilli(),
		IsBuyerMaker:  t.IsBuyerMaker,
		IsBestMatch:   t.IsBestMatch,
	}
}

func (r tradeRow) toModel() (model.Trade, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade %d price: %w", r.TradeID, err)
	}
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade %d quantity: %w", r.TradeID, err)
	}
	quote, err := decimal.NewFromString(r.QuoteQuantity)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade %d quote quantity: %w", r.TradeID, err)
	}
	return model.Trade{
		ID:            r.TradeID,
		Symbol:        r.Symbol,
		Price:         price,
		Quantity:      qty,
		QuoteQuantity: quote,
		Time:          time.UnixMilli(r.TradeTime).UTC(),
		IsBuyerMaker:  r.IsBuyerMaker,
		IsBestMatch:   r.IsBestMatch,
	}, nil
}

// SQLite stores trades in a local database file.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir sqlite dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string {
	return "sqlite"
}

// SaveTrades inserts in one transaction, ignoring duplicates.
func (s *SQLite) SaveTrades(ctx context.Context, trades []model.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT OR IGNORE INTO trades (symbol, trade_id, price, quantity, quote_quantity, trade_time, is_buyer_maker, is_best_match)
		VALUES (:symbol, :trade_id, :price, :quantity, :quote_quantity, :trade_time, :is_buyer_maker, :is_best_match)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range trades {
		res, err := stmt.ExecContext(ctx, toRow(t))
		if err != nil {
			return 0, fmt.Errorf("insert trade %d: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// RecentTrades returns trades for symbol at or after since, oldest first.
func (s *SQLite) RecentTrades(ctx context.Context, symbol string, since time.Time) ([]model.Trade, error) {
	var rows []tradeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT symbol, trade_id, price, quantity, quote_quantity, trade_time, is_buyer_maker, is_best_match
		FROM trades
		WHERE symbol = ? AND trade_time >= ?
		ORDER BY trade_time, trade_id
	`, symbol, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("select trades: %w", err)
	}

	trades := make([]model.Trade, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// Count returns the number of stored trades for symbol.
func (s *SQLite) Count(ctx context.Context, symbol string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM trades WHERE symbol = ?`, symbol); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

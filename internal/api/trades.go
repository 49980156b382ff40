package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// MaxTradesLimit is the largest page the historicalTrades endpoint serves.
const MaxTradesLimit = 1000

// GetHistoricalTrades fetches one raw page of trades. fromID <= 0 requests the most recent page.
func (c *Client) GetHistoricalTrades(ctx context.Context, symbol string, limit int, fromID int64) ([]TradeResponse, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	if limit > 0 {
		if limit > MaxTradesLimit {
			limit = MaxTradesLimit
		}
		query.Set("limit", strconv.Itoa(limit))
	}
	if fromID > 0 {
		query.Set("fromId", strconv.FormatInt(fromID, 10))
	}

	var resp []TradeResponse
	if err := c.get(ctx, "/api/v3/historicalTrades", query, &resp); err != nil {
		return nil, fmt.Errorf("get historical trades %s: %w", symbol, err)
	}

	return resp, nil
}

// HistoricalTrades fetches one page and converts it, dropping malformed records.
func (c *Client) HistoricalTrades(ctx context.Context, symbol string, limit int, fromID int64) ([]model.Trade, error) {
	records, err := c.GetHistoricalTrades(ctx, symbol, limit, fromID)
	if err != nil {
		return nil, err
	}

	trades, dropped := ToTrades(symbol, records)
	if len(dropped) > 0 {
		c.logger.Warnw("dropped malformed trades",
			"symbol", symbol,
			"dropped", len(dropped),
			"first_error", dropped[0],
		)
	}

	return trades, nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// SDKSource serves trade pages through the go-binance client.
type SDKSource struct {
	client *binance.Client
	logger *zap.SugaredLogger
}

// NewSDKSource creates an SDK-backed trade source. An empty baseURL keeps the SDK default.
func NewSDKSource(baseURL, apiKey, secretKey string, timeout time.Duration, logger *zap.SugaredLogger) *SDKSource {
	c := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	c.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SDKSource{client: c, logger: logger}
}

// HistoricalTrades fetches one page and converts it, dropping malformed records.
func (s *SDKSource) HistoricalTrades(ctx context.Context, symbol string, limit int, fromID int64) ([]model.Trade, error) {
	if limit > MaxTradesLimit {
		limit = MaxTradesLimit
	}

	svc := s.client.NewHistoricalTradesService().Symbol(symbol).Limit(limit)
	if fromID > 0 {
		svc = svc.FromID(fromID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		var sdkErr *common.APIError
		if errors.As(err, &sdkErr) {
			status := http.StatusBadRequest
			if sdkErr.Code == -1003 { // too many requests
				status = http.StatusTooManyRequests
			}
			return nil, fmt.Errorf("get historical trades %s: %w", symbol, &APIError{
				StatusCode: status,
				Code:       int(sdkErr.Code),
				Message:    sdkErr.Message,
			})
		}
		return nil, fmt.Errorf("get historical trades %s: %w", symbol, err)
	}

	records := make([]TradeResponse, 0, len(res))
	for _, t := range res {
		if t == nil {
			continue
		}
		id, ts, maker := t.ID, t.Time, t.IsBuyerMaker
		records = append(records, TradeResponse{
			ID:           &id,
			Price:        t.Price,
			Qty:          t.Quantity,
			QuoteQty:     t.QuoteQuantity,
			Time:         &ts,
			IsBuyerMaker: &maker,
			IsBestMatch:  t.IsBestMatch,
		})
	}

	trades, dropped := ToTrades(symbol, records)
	if len(dropped) > 0 {
		s.logger.Warnw("dropped malformed trades",
			"symbol", symbol,
			"dropped", len(dropped),
			"first_error", dropped[0],
		)
	}

	return trades, nil
}

// Close releases idle connections.
func (s *SDKSource) Close() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}

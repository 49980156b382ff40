// Package api provides the Binance spot REST client used to page trade history.
//
// REST endpoints:
//   - Production: https://api.binance.com
//   - Testnet: https://testnet.binance.vision
//
// Key endpoint: GET /api/v3/historicalTrades (symbol, limit <= 1000, fromId),
// authenticated with the X-MBX-APIKEY header.
//
// Two implementations satisfy the trade source contract: Client, a small
// hand-rolled client with retry and backoff, and SDKSource, which delegates to
// github.com/adshao/go-binance/v2.
package api

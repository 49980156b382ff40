// Package connection maintains the Binance combined trade stream.
//
// A Client wraps one gorilla/websocket connection: it answers server pings,
// sends keepalive pings, and flags the connection stale when nothing has been
// read for ReadTimeout. A Stream owns a Client for a set of symbols and
// redials with exponential backoff whenever the connection drops, including
// the 24h forced disconnect Binance applies to every stream.
package connection

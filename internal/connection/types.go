package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no data)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrNoStreams       = errors.New("no streams to subscribe")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Full stream URL including ?streams=
	PingInterval time.Duration // Keepalive ping period
	ReadTimeout  time.Duration // Max time without any frame before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends and control frames
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// StreamConfig configures a reconnecting trade stream.
type StreamConfig struct {
	BaseURL           string   // e.g. wss://stream.binance.com:9443
	Symbols           []string // Exchange symbols, any case
	Client            ClientConfig
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	MessageBufferSize int
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MessageBufferSize: 10000,
	}
}

// StreamStats holds stream counters.
type StreamStats struct {
	Connected  bool
	Connects   int64
	Failures   int64
	Messages   int64
	Dropped    int64
	LastReadAt time.Time
}

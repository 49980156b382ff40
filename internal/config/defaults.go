package config

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "https://api.binance.com"
	DefaultWSURL              = "wss://stream.binance.com:9443"
	DefaultExchangeClient     = ClientNative
	DefaultAPITimeout         = 10 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 1 * time.Second
	DefaultPageSize           = 1000
	DefaultMaxPages           = 50
	DefaultPace               = 500 * time.Millisecond
	DefaultLookback           = 30 * time.Minute
	DefaultInterval           = 1 * time.Minute
	DefaultMinSamples         = 15
	DefaultBandWidth          = 1.0
	DefaultPollInterval       = 60 * time.Second
	DefaultCycleTimeout       = 45 * time.Second
	DefaultMaxBackoff         = 10 * time.Minute
	DefaultTelegramBaseURL    = "https://api.telegram.org"
	DefaultTelegramTimeout    = 10 * time.Second
	DefaultRedisChannel       = "aggression.alerts"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultSQLitePath         = "trades.db"
	DefaultDynamoRegion       = "us-east-1"
	DefaultDynamoTable        = "TradesTable"
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 2 * time.Second
	DefaultBufferSize         = 10000
	DefaultWindowQueue        = 8
	DefaultPingInterval       = 30 * time.Second
	DefaultReadTimeout        = 60 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 100
	DefaultLogMaxBackups      = 5
	DefaultLogMaxAgeDays      = 14
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// Exchange client implementations.
const (
	ClientNative = "native"
	ClientSDK    = "sdk"
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = uuid.NewString()
	}

	for i, s := range c.Symbols {
		c.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	// Exchange defaults
	if c.Exchange.RestURL == "" {
		c.Exchange.RestURL = DefaultRestURL
	}
	if c.Exchange.WSURL == "" {
		c.Exchange.WSURL = DefaultWSURL
	}
	if c.Exchange.Client == "" {
		c.Exchange.Client = DefaultExchangeClient
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = DefaultAPITimeout
	}
	if c.Exchange.MaxRetries == 0 {
		c.Exchange.MaxRetries = DefaultMaxRetries
	}
	if c.Exchange.RetryBackoff == 0 {
		c.Exchange.RetryBackoff = DefaultRetryBackoff
	}

	// Fetch defaults
	if c.Fetch.PageSize == 0 {
		c.Fetch.PageSize = DefaultPageSize
	}
	if c.Fetch.MaxPages == 0 {
		c.Fetch.MaxPages = DefaultMaxPages
	}
	if c.Fetch.Pace == 0 {
		c.Fetch.Pace = DefaultPace
	}

	// Monitor defaults
	if c.Monitor.Lookback == 0 {
		c.Monitor.Lookback = DefaultLookback
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultInterval
	}
	if c.Monitor.MinSamples == 0 {
		c.Monitor.MinSamples = DefaultMinSamples
	}
	if c.Monitor.BandWidth == 0 {
		c.Monitor.BandWidth = DefaultBandWidth
	}
	if c.Monitor.PollInterval == 0 {
		c.Monitor.PollInterval = DefaultPollInterval
	}
	if c.Monitor.CycleTimeout == 0 {
		c.Monitor.CycleTimeout = DefaultCycleTimeout
	}
	if c.Monitor.MaxBackoff == 0 {
		c.Monitor.MaxBackoff = DefaultMaxBackoff
	}

	// Notify defaults
	if c.Notify.Telegram.BaseURL == "" {
		c.Notify.Telegram.BaseURL = DefaultTelegramBaseURL
	}
	if c.Notify.Telegram.Timeout == 0 {
		c.Notify.Telegram.Timeout = DefaultTelegramTimeout
	}
	if c.Notify.Redis.Channel == "" {
		c.Notify.Redis.Channel = DefaultRedisChannel
	}

	// Storage defaults
	applyDBDefaults(&c.Storage.Postgres.DBConfig)
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	if c.Storage.Dynamo.Region == "" {
		c.Storage.Dynamo.Region = DefaultDynamoRegion
	}
	if c.Storage.Dynamo.Table == "" {
		c.Storage.Dynamo.Table = DefaultDynamoTable
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}
	if c.Writer.WindowQueue == 0 {
		c.Writer.WindowQueue = DefaultWindowQueue
	}

	// Collector defaults
	if c.Collector.PingInterval == 0 {
		c.Collector.PingInterval = DefaultPingInterval
	}
	if c.Collector.ReadTimeout == 0 {
		c.Collector.ReadTimeout = DefaultReadTimeout
	}
	if c.Collector.ReconnectBaseDelay == 0 {
		c.Collector.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Collector.ReconnectMaxDelay == 0 {
		c.Collector.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Collector.BufferSize == 0 {
		c.Collector.BufferSize = DefaultBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

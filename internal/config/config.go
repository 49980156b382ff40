package config

import "time"

// Config is the root configuration for a monitor or collector instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Symbols   []string        `yaml:"symbols"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Notify    NotifyConfig    `yaml:"notify"`
	Storage   StorageConfig   `yaml:"storage"`
	Writer    WriterConfig    `yaml:"writer"`
	Collector CollectorConfig `yaml:"collector"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this process. ID defaults to a random UUID.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ExchangeConfig holds Binance API settings.
type ExchangeConfig struct {
	RestURL      string        `yaml:"rest_url"`
	WSURL        string        `yaml:"ws_url"`
	Client       string        `yaml:"client"`     // "native" or "sdk"
	APIKey       string        `yaml:"api_key"`    // X-MBX-APIKEY header
	SecretKey    string        `yaml:"secret_key"` // Only needed for signed endpoints
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// FetchConfig bounds trade history pagination.
type FetchConfig struct {
	PageSize int           `yaml:"page_size"` // Trades per request (max 1000)
	MaxPages int           `yaml:"max_pages"` // Pages per cycle before giving up with a partial window
	Pace     time.Duration `yaml:"pace"`      // Delay between page requests
}

// MonitorConfig holds the bucketing and threshold settings.
type MonitorConfig struct {
	Lookback     time.Duration `yaml:"lookback"`
	Interval     time.Duration `yaml:"interval"`
	MinSamples   int           `yaml:"min_samples"`
	BandWidth    float64       `yaml:"band_width"` // In standard deviations
	PollInterval time.Duration `yaml:"poll_interval"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

// NotifyConfig selects notification sinks.
type NotifyConfig struct {
	Log      bool           `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
}

// TelegramConfig holds Telegram bot delivery settings.
type TelegramConfig struct {
	Enabled  bool          `yaml:"enabled"`
	BaseURL  string        `yaml:"base_url"`
	BotToken string        `yaml:"bot_token"`
	ChatIDs  []string      `yaml:"chat_ids"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis pub/sub delivery settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// StorageConfig selects trade persistence sinks.
type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Dynamo   DynamoConfig   `yaml:"dynamodb"`
}

// PostgresConfig enables the Postgres/TimescaleDB trade sink.
type PostgresConfig struct {
	Enabled  bool `yaml:"enabled"`
	DBConfig `yaml:",inline"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SQLiteConfig enables the local SQLite trade sink.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DynamoConfig enables the DynamoDB trade sink.
type DynamoConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Region   string `yaml:"region"`
	Table    string `yaml:"table"`
	Endpoint string `yaml:"endpoint"` // Optional, for local DynamoDB
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	WindowQueue   int           `yaml:"window_queue"`
}

// CollectorConfig holds live trade stream settings.
type CollectorConfig struct {
	PingInterval       time.Duration `yaml:"ping_interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	BufferSize         int           `yaml:"buffer_size"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"` // Empty disables file output
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
	Development bool   `yaml:"development"`
}

// MetricsConfig holds the health/metrics HTTP server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

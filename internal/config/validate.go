package config

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNoSymbols is returned when no symbols are configured.
var ErrNoSymbols = errors.New("symbols must list at least one symbol")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Symbols) == 0 {
		return ErrNoSymbols
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if !symbolPattern.MatchString(s) {
			return fmt.Errorf("symbols: invalid symbol %q", s)
		}
		if seen[s] {
			return fmt.Errorf("symbols: duplicate symbol %q", s)
		}
		seen[s] = true
	}

	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Fetch.validate(); err != nil {
		return err
	}
	if err := c.Monitor.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return errors.New("writer.buffer_size must be >= 1")
	}
	if c.Writer.FlushInterval <= 0 {
		return errors.New("writer.flush_interval must be > 0")
	}
	if c.Writer.WindowQueue < 1 {
		return errors.New("writer.window_queue must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (e *ExchangeConfig) validate() error {
	if e.RestURL == "" {
		return errors.New("exchange.rest_url is required")
	}
	if e.Client != ClientNative && e.Client != ClientSDK {
		return fmt.Errorf("exchange.client must be %q or %q, got %q", ClientNative, ClientSDK, e.Client)
	}
	if e.Timeout <= 0 {
		return errors.New("exchange.timeout must be > 0")
	}
	if e.MaxRetries < 0 {
		return errors.New("exchange.max_retries must be >= 0")
	}
	return nil
}

func (f *FetchConfig) validate() error {
	if f.PageSize < 1 || f.PageSize > 1000 {
		return fmt.Errorf("fetch.page_size must be between 1 and 1000, got %d", f.PageSize)
	}
	if f.MaxPages < 1 {
		return errors.New("fetch.max_pages must be >= 1")
	}
	if f.Pace < 0 {
		return errors.New("fetch.pace must be >= 0")
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.Lookback <= 0 {
		return errors.New("monitor.lookback must be > 0")
	}
	if m.Interval <= 0 {
		return errors.New("monitor.interval must be > 0")
	}
	if m.PollInterval <= 0 {
		return errors.New("monitor.poll_interval must be > 0")
	}
	if m.CycleTimeout <= 0 {
		return errors.New("monitor.cycle_timeout must be > 0")
	}
	if m.Lookback%m.Interval != 0 {
		return fmt.Errorf("monitor.lookback (%s) must be a multiple of monitor.interval (%s)", m.Lookback, m.Interval)
	}
	if m.MinSamples < 1 {
		return errors.New("monitor.min_samples must be >= 1")
	}
	if m.BandWidth <= 0 {
		return fmt.Errorf("monitor.band_width must be > 0, got %g", m.BandWidth)
	}

	// The newest bucket is classified; the rest feed the model.
	history := int(m.Lookback/m.Interval) - 1
	if history < m.MinSamples {
		return fmt.Errorf("monitor.lookback covers %d history buckets, need at least min_samples (%d)", history, m.MinSamples)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" {
			return errors.New("notify.telegram.bot_token is required")
		}
		if len(n.Telegram.ChatIDs) == 0 {
			return errors.New("notify.telegram.chat_ids must list at least one chat")
		}
	}
	if n.Redis.Enabled && n.Redis.Addr == "" {
		return errors.New("notify.redis.addr is required")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	if s.Postgres.Enabled {
		if err := s.Postgres.DBConfig.validate("storage.postgres"); err != nil {
			return err
		}
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		return errors.New("storage.sqlite.path is required")
	}
	if s.Dynamo.Enabled && s.Dynamo.Table == "" {
		return errors.New("storage.dynamodb.table is required")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

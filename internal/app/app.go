// Package app builds the components shared by the commands from a Config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/api"
	"github.com/rickgao/aggression-monitor/internal/auth"
	"github.com/rickgao/aggression-monitor/internal/config"
	"github.com/rickgao/aggression-monitor/internal/database"
	"github.com/rickgao/aggression-monitor/internal/fetcher"
	"github.com/rickgao/aggression-monitor/internal/notify"
	"github.com/rickgao/aggression-monitor/internal/poller"
	"github.com/rickgao/aggression-monitor/internal/storage"
	"github.com/rickgao/aggression-monitor/internal/threshold"
)

// SourceFactory returns a factory creating one exchange client per loop.
// The clients tag their own log lines with the symbol.
func SourceFactory(cfg config.ExchangeConfig, logger *zap.SugaredLogger) poller.SourceFactory {
	return func(string) (poller.Source, error) {
		switch cfg.Client {
		case config.ClientSDK:
			return api.NewSDKSource(cfg.RestURL, cfg.APIKey, cfg.SecretKey, cfg.Timeout, logger), nil
		case config.ClientNative, "":
			return api.NewClient(cfg.RestURL, auth.NewCredentials(cfg.APIKey, cfg.SecretKey),
				api.WithTimeout(cfg.Timeout),
				api.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
				api.WithLogger(logger),
			), nil
		default:
			return nil, fmt.Errorf("unknown exchange client %q", cfg.Client)
		}
	}
}

// LoopConfig maps the monitor settings onto a poll loop for symbol.
func LoopConfig(cfg *config.Config, symbol string) poller.Config {
	return poller.Config{
		Symbol:       symbol,
		Lookback:     cfg.Monitor.Lookback,
		PageSize:     cfg.Fetch.PageSize,
		PollInterval: cfg.Monitor.PollInterval,
		CycleTimeout: cfg.Monitor.CycleTimeout,
		MaxBackoff:   cfg.Monitor.MaxBackoff,
		Fetch: fetcher.Config{
			MaxPages: cfg.Fetch.MaxPages,
			Pace:     cfg.Fetch.Pace,
			Interval: cfg.Monitor.Interval,
		},
		Threshold: threshold.Config{
			MinSamples: cfg.Monitor.MinSamples,
			BandWidth:  decimal.NewFromFloat(cfg.Monitor.BandWidth),
		},
	}
}

// NotifyTargets opens the configured notification sinks. The returned
// cleanup closes any connections.
func NotifyTargets(ctx context.Context, cfg config.NotifyConfig, logger *zap.SugaredLogger) ([]notify.Target, func(), error) {
	var targets []notify.Target
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Log {
		targets = append(targets, notify.Target{Name: "log", Sink: notify.NewLogSink(logger), Destination: "log"})
	}

	if cfg.Telegram.Enabled {
		tg := notify.NewTelegramSink(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.Timeout)
		for _, chat := range cfg.Telegram.ChatIDs {
			targets = append(targets, notify.Target{Name: "telegram", Sink: tg, Destination: chat})
		}
	}

	if cfg.Redis.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := notify.NewRedisClient(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		rs := notify.NewRedisSink(client)
		closers = append(closers, rs.Close)
		targets = append(targets, notify.Target{Name: "redis", Sink: rs, Destination: cfg.Redis.Channel})
	}

	return targets, cleanup, nil
}

// TradeSinks opens every enabled storage sink. A nil sink with a nil error
// means persistence is disabled.
func TradeSinks(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (storage.TradeSink, error) {
	var sinks []storage.TradeSink
	fail := func(err error) (storage.TradeSink, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	st := cfg.Storage
	if st.Postgres.Enabled {
		pool, err := database.Connect(ctx, st.Postgres.DBConfig, "aggression-monitor/"+cfg.Instance.ID)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		pg := storage.NewPostgres(pool)
		sinks = append(sinks, pg)
		if err := pg.Migrate(ctx); err != nil {
			return fail(err)
		}
		logger.Infow("Postgres trade sink ready", "host", st.Postgres.Host, "database", st.Postgres.Name)
	}

	if st.SQLite.Enabled {
		db, err := storage.OpenSQLite(ctx, st.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, db)
		logger.Infow("SQLite trade sink ready", "path", st.SQLite.Path)
	}

	if st.Dynamo.Enabled {
		client, err := storage.NewDynamoClient(ctx, st.Dynamo.Region, st.Dynamo.Endpoint)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, storage.NewDynamo(client, st.Dynamo.Table))
		logger.Infow("DynamoDB trade sink ready", "region", st.Dynamo.Region, "table", st.Dynamo.Table)
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return storage.NewMulti(sinks...), nil
}

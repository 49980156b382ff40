package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rickgao/aggression-monitor/internal/app"
	"github.com/rickgao/aggression-monitor/internal/collector"
	"github.com/rickgao/aggression-monitor/internal/config"
	"github.com/rickgao/aggression-monitor/internal/connection"
	"github.com/rickgao/aggression-monitor/internal/logging"
	"github.com/rickgao/aggression-monitor/internal/metrics"
	"github.com/rickgao/aggression-monitor/internal/server"
	"github.com/rickgao/aggression-monitor/internal/version"
	"github.com/rickgao/aggression-monitor/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/monitor.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting trade collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"symbols", cfg.Symbols,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infow("Received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorw("Collector failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Collector stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	m := metrics.New()
	srv := server.New(server.Options{
		Addr:        fmt.Sprintf(":%d", cfg.Metrics.Port),
		MetricsPath: cfg.Metrics.Path,
		Instance:    cfg.Instance.ID,
	}, logger.Named("server"))
	srv.SetMetrics(m.Handler())

	sink, err := app.TradeSinks(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return fmt.Errorf("open trade sinks: %w", err)
	}

	var tradeSink collector.TradeSink
	if sink != nil {
		defer sink.Close()

		tw := writer.NewTradeWriter(writer.Config{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
			BufferSize:    cfg.Writer.BufferSize,
			WindowQueue:   cfg.Writer.WindowQueue,
		}, sink, logger.Named("writer"))
		m.RegisterWriter(tw.Stats)
		srv.AddDebug("writer", func() any { return tw.Stats() })

		if err := tw.Start(ctx); err != nil {
			return fmt.Errorf("start writer: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			tw.Stop(stopCtx)
		}()
		tradeSink = tw
	} else {
		logger.Warn("No storage sink enabled, trades are counted but not persisted")
	}

	stream, err := connection.NewStream(connection.StreamConfig{
		BaseURL: cfg.Exchange.WSURL,
		Symbols: cfg.Symbols,
		Client: connection.ClientConfig{
			PingInterval: cfg.Collector.PingInterval,
			ReadTimeout:  cfg.Collector.ReadTimeout,
			WriteTimeout: 5 * time.Second,
			BufferSize:   cfg.Collector.BufferSize,
		},
		ReconnectBaseWait: cfg.Collector.ReconnectBaseDelay,
		ReconnectMaxWait:  cfg.Collector.ReconnectMaxDelay,
		MessageBufferSize: cfg.Collector.BufferSize,
	}, logger.Named("stream"))
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	m.RegisterStream(stream.Stats)

	c := collector.New(stream, tradeSink, logger.Named("collector"))
	srv.AddDebug("collector", func() any {
		return map[string]any{
			"symbols":      c.Stats(),
			"parse_errors": c.ParseErrors(),
			"stream":       stream.Stats(),
		}
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Stop(shutdownCtx)
	}()

	if err := stream.Start(ctx); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}

	logger.Infow("Collector running", "url", stream.URL())

	<-ctx.Done()

	logger.Info("Shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	c.Stop(stopCtx)
	stream.Stop(stopCtx)

	for symbol, st := range c.Stats() {
		logger.Infow("Collector summary",
			"symbol", symbol,
			"trades", st.Trades,
			"buy_volume", st.BuyVolume.String(),
			"sell_volume", st.SellVolume.String(),
			"imbalance", st.Imbalance().String(),
			"gaps", st.Gaps,
		)
	}
	return nil
}

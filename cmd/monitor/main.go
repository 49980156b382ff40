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
	"github.com/rickgao/aggression-monitor/internal/config"
	"github.com/rickgao/aggression-monitor/internal/logging"
	"github.com/rickgao/aggression-monitor/internal/metrics"
	"github.com/rickgao/aggression-monitor/internal/poller"
	"github.com/rickgao/aggression-monitor/internal/server"
	"github.com/rickgao/aggression-monitor/internal/version"
	"github.com/rickgao/aggression-monitor/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/monitor.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
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

	logger.Infow("Starting aggression monitor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"symbols", cfg.Symbols,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infow("Received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorw("Monitor failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Monitor stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	m := metrics.New()

	srv := server.New(server.Options{
		Addr:        fmt.Sprintf(":%d", cfg.Metrics.Port),
		MetricsPath: cfg.Metrics.Path,
		Instance:    cfg.Instance.ID,
	}, logger.Named("server"))
	srv.SetMetrics(m.Handler())

	targets, closeTargets, err := app.NotifyTargets(ctx, cfg.Notify, logger.Named("notify"))
	if err != nil {
		return fmt.Errorf("open notify targets: %w", err)
	}
	defer closeTargets()
	if len(targets) == 0 {
		logger.Warn("No notify target enabled, signals are logged by the poll loop only")
	}

	sink, err := app.TradeSinks(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return fmt.Errorf("open trade sinks: %w", err)
	}

	var tw *writer.TradeWriter
	if sink != nil {
		defer sink.Close()

		tw = writer.NewTradeWriter(writer.Config{
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
			if err := tw.Stop(stopCtx); err != nil {
				logger.Warnw("Writer stop failed", "error", err)
			}
		}()
	}

	factory := app.SourceFactory(cfg.Exchange, logger.Named("exchange"))
	loops := make([]*poller.Loop, 0, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		opts := []poller.Option{
			poller.WithLogger(logger.Named("poller")),
			poller.WithTargets(targets),
			poller.WithRecorder(m),
		}
		if tw != nil {
			opts = append(opts, poller.WithTradeSink(tw))
		}
		loops = append(loops, poller.NewLoop(app.LoopConfig(cfg, symbol), factory, opts...))
	}

	group := poller.NewGroup(loops...)
	srv.SetLoops(group)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Stop(shutdownCtx)
	}()

	logger.Infow("Monitor running",
		"loops", len(loops),
		"targets", len(targets),
		"persist", sink != nil,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Blocks until shutdown
	if err := group.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("Shutting down...")
	return nil
}

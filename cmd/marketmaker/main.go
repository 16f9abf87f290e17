// perpquote — an automated market-making bot for perpetual-futures venues.
//
// Architecture:
//
//	main.go                        — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go                — orchestrator: wires market data, order state, quoting, and risk
//	book/book.go                    — Order Book Replica: local mirror fed by snapshots + deltas
//	marketdata/handlers.go          — fans venue feed events into the replica and trade/candle buffers
//	oss/store.go, oss/position.go   — Order State Store + Position Book: the engine's own view of itself
//	uer/reducer.go                  — User-Event Reducer: folds the private fill/order stream into OSS
//	quotegen/generator.go           — quote ladder generation (sandbox/plain strategies)
//	oms/reconciler.go               — reconciles the proposed ladder against what's resting on the venue
//	posexec/executor.go             — take-profit / liquidation-timer order management
//	risk/manager.go                 — daily-loss and price-shock kill switch
//	store/store.go                  — JSON file persistence for the position (survives restarts)
//	venue/hyperliquid/*.go          — REST + websocket client for the Hyperliquid venue
//
// How it makes money:
//
//	The bot posts a symmetric ladder of bid/ask orders around the venue's
//	mid price, capturing the spread between fills on either side. Quote
//	sizing skews toward flattening inventory as the position grows, and a
//	risk manager cuts quoting entirely if losses or price moves breach
//	configured limits.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xtitan/perpquote/internal/api"
	"github.com/0xtitan/perpquote/internal/config"
	"github.com/0xtitan/perpquote/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("PERPQUOTE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var symbol string
	for _, ex := range cfg.Exchanges {
		symbol = ex.Symbol
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, symbol, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("perpquote market maker started",
		"symbol", symbol,
		"quote_generator", cfg.QuoteGenerator,
		"max_daily_loss", cfg.Risk.MaxDailyLoss,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

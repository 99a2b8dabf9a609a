package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"hlbot/internal/config"
	"hlbot/internal/engine"
	"hlbot/internal/exchange"
	"hlbot/internal/logger"
	"hlbot/internal/order"
	"hlbot/internal/position"
	"hlbot/internal/risk"
	"hlbot/internal/state"
	"hlbot/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFile)

	runID := generateRunID()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		log.WithError(err).Fatal("decision logger error")
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			log.WithError(err).Warn("failed to close decision logger")
		}
	}()

	store := state.NewStore()
	if err := store.Load(cfg.CheckpointPath); err == nil {
		log.WithField("path", cfg.CheckpointPath).Info("loaded checkpoint")
	}

	var client exchange.Client
	switch cfg.Mode {
	case config.ModePaper:
		client = exchange.NewPaper(decimal.NewFromFloat(cfg.StartingEquity))
	default:
		log.WithField("mode", cfg.Mode).Fatal("unsupported mode")
	}
	client = exchange.NewThrottled(client, cfg.RateLimitRPS, int(cfg.RateLimitRPS))

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	riskMgr := risk.NewManager(risk.Limits{
		MaxLeverage:     decimal.NewFromFloat(cfg.Risk.MaxLeverage),
		MaxPositionUSD:  decimal.NewFromFloat(cfg.Risk.MaxPositionUSD),
		MaxDailyLossUSD: decimal.NewFromFloat(cfg.Risk.MaxDailyLossUSD),
		MaxDrawdownPct:  decimal.NewFromFloat(cfg.Risk.MaxDrawdownPct),
		MinNotionalUSD:  decimal.NewFromFloat(cfg.Risk.MinNotionalUSD),
	}, logger.WithComponent(log, "risk"))

	orders := order.NewManager(client, retry.Default(), logger.WithComponent(log, "order"))
	positions := position.NewTracker()

	eng, err := engine.New(cfg, client, riskMgr, orders, positions, store, decisions,
		metrics, logger.WithComponent(log, "engine"))
	if err != nil {
		log.WithError(err).Fatal("engine init error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("shutdown signal received")
		cancel()
	}()

	log.WithFields(map[string]interface{}{
		"mode":      cfg.Mode,
		"symbols":   cfg.Symbols,
		"timeframe": cfg.Timeframe,
		"run_id":    runID,
	}).Info("starting bot")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("engine stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}

	log.Info("bot shutdown complete")
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}

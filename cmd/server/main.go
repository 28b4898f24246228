package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"TradePulse/internal/config"
	"TradePulse/internal/eventstore"
	"TradePulse/internal/httpapi"
	"TradePulse/internal/ingest"
	"TradePulse/internal/ledger"
	"TradePulse/internal/market"
	"TradePulse/internal/model"
	tradesignal "TradePulse/internal/signal"
	"TradePulse/internal/storage"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	logger.Info().Msg("TradePulse starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config validation")
	}

	// Durable storage: the ledger is authoritative through it, so failure to
	// open is fatal.
	store, err := storage.NewSQLiteStore(cfg.Database.SQLitePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open sqlite store")
	}
	defer store.Close()

	// Event store, rebuilt from the durable log.
	events := eventstore.New(store, logger)
	defer events.Close()
	persisted, err := store.LoadEvents()
	if err != nil {
		logger.Error().Err(err).Msg("load persisted events, starting empty")
	} else {
		events.Replay(persisted)
	}

	// Market feed
	feed := market.NewFeed(map[model.Asset]market.Fetcher{
		model.AssetBitcoin: market.NewCoinMarketCapFetcher(cfg.Market.CoinMarketCapAPIKey, cfg.Proxy),
		model.AssetNasdaq:  market.NewYahooFetcher(cfg.Proxy),
	}, market.FeedConfig{
		PollInterval:    cfg.Market.PollInterval,
		BootstrapWindow: cfg.Market.BootstrapWindow,
		FetchRetries:    cfg.Market.FetchRetries,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Bootstrap(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap price history")
	}
	go feed.Run(ctx, model.AssetBitcoin)
	go feed.Run(ctx, model.AssetNasdaq)

	// Signal engine, ledger, ingestor
	engine := tradesignal.NewEngine(feed, logger)
	book := ledger.New(store, feed, engine, events, cfg.Ledger.InitialBalance, logger)
	ingestor := ingest.New(events, store, cfg.Telemetry.ModelUUID, logger)
	defer ingestor.Close()

	// Nightly retention for the raw envelope log
	sched := cron.New(cron.WithSeconds())
	retentionDays := cfg.Database.RetentionDays
	if _, err := sched.AddFunc(cfg.Database.RetentionCron, func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		pruned, err := store.PruneRawEnvelopes(cutoff)
		if err != nil {
			logger.Error().Err(err).Msg("prune raw envelopes")
			return
		}
		logger.Info().Int64("rows", pruned).Msg("pruned raw envelopes")
	}); err != nil {
		logger.Fatal().Err(err).Msg("register retention task")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	server := httpapi.NewServer(cfg.Server.ListenAddr, ingestor, events, feed, book, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	logger.Info().Msg("TradePulse is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("TradePulse stopped")
}

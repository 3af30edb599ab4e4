package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polycopy/config"
	"github.com/alejandrodnm/polycopy/internal/adapters/cache"
	"github.com/alejandrodnm/polycopy/internal/adapters/notify"
	"github.com/alejandrodnm/polycopy/internal/adapters/polymarket"
	"github.com/alejandrodnm/polycopy/internal/adapters/storage"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	serve := flag.Bool("serve", false, "run the HTTP API (and the refresh loop if a user is configured)")
	once := flag.Bool("once", false, "load the portfolio once, print it and exit")
	userID := flag.String("user", "", "user id (overrides config)")
	wallet := flag.String("wallet", "", "wallet for position reconciliation (overrides config)")
	compact := flag.Bool("compact", false, "print a 1-line summary instead of the full tables")
	noOverlay := flag.Bool("no-overlay", false, "skip live prices, use stored prices only")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *userID != "" {
		cfg.Portfolio.UserID = *userID
	}
	if *wallet != "" {
		cfg.Portfolio.Wallet = *wallet
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("polycopy starting",
		"config", *configPath,
		"serve", *serve,
		"once", *once,
		"user_id", cfg.Portfolio.UserID,
		"refresh", cfg.RefreshInterval(),
	)

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase)
	var (
		quotes  ports.QuoteProvider  = client
		markets ports.MarketProvider = client
	)
	if cfg.Cache.RedisURL != "" {
		rdb, err := cache.Open(ctx, cfg.Cache.RedisURL)
		if err != nil {
			// sin cache se sigue funcionando, solo más lento
			slog.Warn("redis unavailable, running without cache", "err", err)
		} else {
			defer rdb.Close()
			quotes = cache.NewQuotes(client, rdb, cfg.QuoteTTL(), cfg.ResolvedTTL())
			markets = cache.NewMarkets(client, rdb, cfg.MetaTTL())
			slog.Info("redis cache enabled")
		}
	}

	pcfg := portfolio.DefaultConfig()
	pcfg.RefreshInterval = cfg.RefreshInterval()
	pcfg.HistoryPageSize = cfg.Portfolio.HistoryPageSize
	pcfg.HistoryMaxPages = cfg.Portfolio.HistoryMaxPages
	pcfg.PageSize = cfg.Portfolio.PageSize
	pcfg.QuoteWorkers = cfg.Portfolio.QuoteWorkers
	pcfg.OverlayEnabled = cfg.Overlay() && !*noOverlay
	pcfg.DryRun = *once

	deps := portfolio.Deps{
		History:   store,
		Orders:    store,
		Positions: client,
		Markets:   markets,
		Quotes:    quotes,
		Trades:    store,
		OrderLog:  store,
		Summaries: store,
	}
	if !*serve {
		deps.Notifier = notify.NewConsole(cfg.Portfolio.TableLimit, *compact)
	}
	svc := portfolio.New(pcfg, deps)
	acct := portfolio.Account{UserID: cfg.Portfolio.UserID, Wallet: cfg.Portfolio.Wallet}

	if *serve {
		if err := runServer(ctx, cfg, svc, acct); err != nil {
			slog.Error("server exited with error", "err", err)
			os.Exit(1)
		}
		slog.Info("polycopy stopped cleanly")
		return
	}

	if acct.UserID == "" {
		slog.Error("no user configured: pass -user or set portfolio.user_id / POLYCOPY_USER_ID")
		os.Exit(1)
	}
	if err := svc.Run(ctx, acct); err != nil {
		slog.Error("portfolio refresh exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("polycopy stopped cleanly")
}

// openStorage elige Postgres si hay URL y SQLite en otro caso.
func openStorage(ctx context.Context, cfg config.StorageConfig) (ports.Storage, error) {
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStorage(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		slog.Info("connected to PostgreSQL")
		return pg, nil
	}
	sq, err := storage.NewSQLiteStorage(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite %q: %w", cfg.DSN, err)
	}
	return sq, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

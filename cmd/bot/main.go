package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rss_notify/internal/bot"
	"rss_notify/internal/config"
	"rss_notify/internal/dedup"
	"rss_notify/internal/feedcache"
	"rss_notify/internal/fetcher"
	"rss_notify/internal/scheduler"
	"rss_notify/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if storage.DialectFor(cfg.DatabasePath) == storage.DialectSQLite {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "dialect", storage.DialectFor(cfg.DatabasePath), "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	client := &http.Client{Timeout: cfg.FetchTimeout + 5*time.Second}
	cache := feedcache.New(fetcher.New(client, cfg.FetchTimeout), cfg.FeedURLs, cfg.FetchConcurrency, log)
	tracker := dedup.New()

	b, err := bot.New(ctx, cfg.TelegramBotToken, store, cache, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	disp := scheduler.New(cache, tracker, store, b, log)
	disp.SetTickInterval(cfg.RefreshInterval)
	disp.SetDeliveryTimeout(cfg.DeliveryTimeout)
	disp.SetSendInterval(cfg.SendInterval)
	disp.SetNotifyBacklog(cfg.NotifyBacklog)
	b.SetStatus(disp, tracker)

	log.Info("starting bot",
		"feeds", len(cfg.FeedURLs),
		"refresh_interval", cfg.RefreshInterval,
		"notify_backlog", cfg.NotifyBacklog,
	)

	go disp.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

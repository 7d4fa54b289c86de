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

	"commitbot/internal/broadcast"
	"commitbot/internal/config"
	"commitbot/internal/ingest"
	"commitbot/internal/publisher"
	"commitbot/internal/scheduler"
	"commitbot/internal/source"
	"commitbot/internal/source/feedsrc"
	"commitbot/internal/source/github"
	"commitbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var src source.Source
	switch cfg.SourceKind {
	case config.SourceFeed:
		src = feedsrc.New(http.DefaultClient, cfg.FeedURL)
	default:
		src = github.New(http.DefaultClient, cfg.GitHubBaseURL, cfg.GitHubToken)
	}

	var pub publisher.Publisher
	if cfg.Production {
		pub, err = publisher.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Error("create publisher", "error", err)
			os.Exit(1)
		}
	} else {
		pub = publisher.NewConsole(os.Stdout)
		log.Info("not in production; messages will be printed, not published")
	}

	ing := ingest.New(src, store, cfg.Keyword, cfg.RequireKeywordMatch, log)
	bc := broadcast.New(store, src, pub, log)

	sched, err := scheduler.New(cfg.IngestInterval, cfg.BroadcastCron, scheduler.Jobs{
		Ingest: func(ctx context.Context) error {
			_, err := ing.Run(ctx)
			return err
		},
		Broadcast: bc.Run,
	}, log)
	if err != nil {
		log.Error("create scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if pending, err := store.CountPending(ctx); err == nil {
		log.Info("starting bot", "keyword", cfg.Keyword, "source", string(cfg.SourceKind), "pending", pending)
	} else {
		log.Info("starting bot", "keyword", cfg.Keyword, "source", string(cfg.SourceKind))
	}

	sched.Run(ctx)

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

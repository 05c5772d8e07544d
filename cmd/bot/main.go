package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"streamwatch/internal/bot"
	"streamwatch/internal/config"
	"streamwatch/internal/fetcher"
	"streamwatch/internal/metrics"
	"streamwatch/internal/model"
	"streamwatch/internal/notify"
	"streamwatch/internal/scheduler"
	"streamwatch/internal/storage"
)

const twitchTokenURL = "https://id.twitch.tv/oauth2/token"

func main() {
	loaded, err := config.LoadEnvFiles(".env", ".env.dev")
	if err != nil {
		slog.Error("load env files", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	if len(loaded) > 0 {
		log.Debug("loaded env files", "files", strings.Join(loaded, ", "))
	}

	sources, err := cfg.Sources(func(source string) (model.IDSet, error) {
		return storage.LoadIgnore(cfg.DataDir, source)
	})
	if err != nil {
		log.Error("build sources", "error", err)
		os.Exit(1)
	}

	if cfg.StorageDriver == storage.DriverSQLite {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	store, err := storage.Open(cfg.Storage())
	if err != nil {
		log.Error("open state store", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if fs, ok := store.(*storage.File); ok {
		names := make([]string, 0, len(sources))
		for _, src := range sources {
			names = append(names, src.Name)
		}
		if err := fs.Bootstrap(names...); err != nil {
			log.Error("bootstrap state files", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	fcfg := cfg.Fetcher()
	if cfg.TwitchEnabled {
		fcfg.TwitchClient = twitchClient(cfg, httpClient)
	}
	f := fetcher.New(httpClient, fcfg)

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, m, log)
	}

	b, err := bot.New(cfg.TelegramBotToken, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	d := notify.New(b, store, notify.NewPacer(cfg.MessageDelay), m, log)

	sched := scheduler.New(sources, store, f, d, log)
	sched.SetCooldown(cfg.ErrorCooldown)
	sched.SetMetrics(m)

	log.Info("starting streamwatch", "sources", len(sources), "storage", cfg.StorageDriver)

	if err := sched.Start(ctx); err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	b.Run(ctx, sched)
	sched.Wait()

	log.Info("streamwatch stopped")
}

// twitchClient returns an HTTP client that authenticates with a Twitch
// app access token obtained through the client credentials flow.
func twitchClient(cfg *config.Config, base *http.Client) *http.Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		TokenURL:     twitchTokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = base.Timeout
	return client
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", "error", err)
	}
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

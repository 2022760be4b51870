package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"BCRPSentinel/internal/cache"
	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/config"
	"BCRPSentinel/internal/httpapi"
	"BCRPSentinel/internal/model"
	"BCRPSentinel/internal/notifier"
	"BCRPSentinel/internal/recorder"
	"BCRPSentinel/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] BCRPSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init upstream client
	client := collector.NewClient(cfg.Proxy,
		collector.WithBaseURL(cfg.BCRP.BaseURL),
		collector.WithPBIURL(cfg.BCRP.PBIURL),
		collector.WithFormat(cfg.BCRP.Format, cfg.BCRP.Language),
		collector.WithTimeout(cfg.BCRP.Timeout),
		collector.WithRateLimit(cfg.BCRP.RateLimit, cfg.BCRP.RateBurst),
	)

	// Init cache store
	store, err := openStore(ctx, cfg, loc)
	if err != nil {
		log.Fatalf("[FATAL] init cache: %v", err)
	}
	defer store.Close()
	log.Printf("[INFO] cache driver: %s", cfg.Cache.Driver)

	// Init fetcher
	svc := collector.NewService(client, store, collector.Options{
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		BackoffBase:    cfg.Fetch.Backoff,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		RecentTimeout:  cfg.Fetch.RecentTimeout,
		Concurrency:    cfg.Fetch.Concurrency,
	})
	log.Printf("[INFO] fetch strategies: %v", svc.Strategies())

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	if !tn.Enabled() {
		log.Println("[WARN] Telegram not configured, alerts disabled")
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.HistoryPath != "" {
		ensureDir(cfg.Database.HistoryPath)
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.HistoryPath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	var dailyCodes []string
	for _, ind := range model.DailyIndicators {
		dailyCodes = append(dailyCodes, ind.Code)
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, svc, tn, rec, scheduler.Options{
		Codes:       cfg.Schedule.Codes,
		DailyCodes:  dailyCodes,
		WindowYears: cfg.Schedule.WindowYears,
		RecentLimit: cfg.Fetch.RecentLimit,
	})
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.RecentCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)

	// Start HTTP API
	gin.SetMode(gin.ReleaseMode)
	api := httpapi.NewServer(cfg.HTTP.Addr, svc, httpapi.Options{
		Format:      cfg.BCRP.Format,
		Language:    cfg.BCRP.Language,
		RecentLimit: cfg.Fetch.RecentLimit,
		DailyCodes:  dailyCodes,
	})
	go func() {
		if err := api.Start(); err != nil {
			log.Printf("[ERROR] %v", err)
			cancel()
		}
	}()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing catalog now")
		go sched.RunRefreshNow()
	}

	log.Println("[INFO] BCRPSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Println("[INFO] shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] %v", err)
	}
	cancel()
	log.Println("[INFO] BCRPSentinel stopped")
}

func openStore(ctx context.Context, cfg *config.Config, loc *time.Location) (cache.Store, error) {
	switch cfg.Cache.Driver {
	case config.DriverPostgres:
		return cache.NewPostgresStore(ctx, cache.PostgresConfig{
			URL:      cfg.Cache.PostgresURL,
			MinConns: cfg.Cache.MinConns,
			MaxConns: cfg.Cache.MaxConns,
		}, loc)
	case config.DriverSQLite:
		ensureDir(cfg.Cache.SQLitePath)
		return cache.NewSQLiteStore(cfg.Cache.SQLitePath, loc)
	default:
		return cache.NewMemoryStore(loc), nil
	}
}

func ensureDir(path string) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("[WARN] create %s: %v", dir, err)
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/api"
	"calendar-sync-backend/internal/calendar"
	"calendar-sync-backend/internal/db"
	"calendar-sync-backend/internal/logger"
	"calendar-sync-backend/internal/metrics"
	"calendar-sync-backend/internal/scraper"
	"calendar-sync-backend/internal/store"
	"calendar-sync-backend/internal/upstream"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	// Setup logger
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zl.Info("configuration loaded", zap.String("path", configPath))

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, zl)
	if err != nil {
		zl.Fatal("failed to initialize database", zap.Error(err))
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	appStore := store.NewGormStore(gormDB, zl.Named("store"))
	client := upstream.NewClient(cfg.Upstream, m, zl.Named("upstream"))

	// Initialize and run the scraper in the background
	scraperSvc := scraper.NewService(cfg.Scraper, appStore, client, m, zl)
	scraperDone := make(chan struct{})
	go func() {
		defer close(scraperDone)
		scraperSvc.Run(ctx)
	}()

	// The freshness record lives as long as the process.
	freshness := calendar.NewFreshnessRecord()
	refetcher := calendar.NewRefetcher(client, appStore, cfg.Calendar, cfg.Scraper.YearSpan, zl)
	controller := calendar.NewController(appStore, refetcher, freshness, cfg.Calendar,
		cfg.Upstream.CalendarURLTemplate, m, zl)

	commit := os.Getenv("GIT_COMMIT_SHA")
	if commit == "" {
		commit = "main"
	}
	handler := api.NewHandler(controller, appStore, fmt.Sprintf(cfg.Server.SourceURLTemplate, commit), zl)

	// Initialize router
	router := api.NewRouter(cfg.Server, handler, reg)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		zl.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	zl.Info("shutdown signal received, stopping services")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server Shutdown", zap.Error(err))
	}

	select {
	case <-scraperDone:
	case <-shutdownCtx.Done():
		zl.Warn("scraper did not stop in time")
	}

	zl.Info("server gracefully stopped")
}

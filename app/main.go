package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealpress/dealpress/app/api"
	appcache "github.com/dealpress/dealpress/app/cache"
	"github.com/dealpress/dealpress/app/cfg"
	"github.com/dealpress/dealpress/app/copy"
	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/llm"
	"github.com/dealpress/dealpress/app/marketplace"
	"github.com/dealpress/dealpress/app/publish"
	"github.com/dealpress/dealpress/app/rules"
	"github.com/dealpress/dealpress/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting DealPress server", "version", appConfig.Version)

	db, err := database.NewConnection(
		appConfig.DBHost, appConfig.DBPort, appConfig.DBUser,
		appConfig.DBPassword, appConfig.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	listingRepo := database.NewListingRepo(db)
	attemptRepo := database.NewAttemptRepo(db)

	var copyCache appcache.CopyCache
	var quotaStore appcache.QuotaStore
	if appConfig.RedisURL != "" {
		redisStore, err := appcache.NewRedis(context.Background(), appConfig.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		copyCache = redisStore
		quotaStore = redisStore
		slog.Info("Using Redis for copy cache and quota counters")
	} else {
		memStore := appcache.NewMemory()
		copyCache = memStore
		quotaStore = memStore
		slog.Warn("REDIS_URL not set, using in-process copy cache and quota counters")
	}

	ruleCache := rules.NewCache(appConfig.RulesDir, appConfig.DefaultDailyQuota)
	if err := ruleCache.Run(); err != nil {
		slog.Error("Failed to load automation rules", "error", err)
		os.Exit(1)
	}
	slog.Info("Automation rules loaded", "count", ruleCache.GetRuleCount())

	sourceClient := marketplace.NewClient(
		appConfig.SourceURL, appConfig.SourceAPIKey, appConfig.UserAgent,
		time.Duration(appConfig.SourceTimeout)*time.Second)

	scorer := deal.NewScorer(deal.WeightsFromConfig())
	matcher := rules.NewMatcher()

	renderer := copy.NewRenderer(appConfig.Locale, appConfig.LinkBaseUrl)
	modelClient := llm.NewClient(appConfig.ModelEndpoint, appConfig.ModelAPIKey)
	generator := copy.NewGenerator(copyCache, quotaStore, modelClient, renderer,
		copy.SystemClock(),
		time.Duration(appConfig.CopyTTLHours)*time.Hour,
		time.Duration(appConfig.ModelTimeout)*time.Second)

	publisher := publish.NewWebhookPublisher(appConfig.UserAgent, 30*time.Second)
	dispatcher := publish.NewDispatcher(publisher, attemptRepo)

	scheduler := tasks.NewScheduler(listingRepo, ruleCache, sourceClient,
		scorer, matcher, generator, dispatcher)
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	apiHandler := api.NewHandler(listingRepo, attemptRepo, ruleCache,
		copyCache, quotaStore, copy.SystemClock(), scheduler)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("DealPress server started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

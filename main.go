package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"stockpilot/config"
	alpacabroker "stockpilot/internal/adapters/alpaca"
	"stockpilot/internal/adapters/kisclient"
	"stockpilot/internal/adapters/logger"
	"stockpilot/internal/adapters/slack"
	"stockpilot/internal/adapters/sqlite"
	"stockpilot/internal/app"
	"stockpilot/internal/ports"
	"stockpilot/internal/sell"
	"stockpilot/internal/strategy/scorer"
	"stockpilot/internal/trailing"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogBackend, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{
		"backend": cfg.LogBackend, "level": cfg.LogLevel.String(),
	})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Brokerage Client
	var broker ports.Brokerage
	switch cfg.Broker {
	case config.BrokerKIS:
		broker, err = kisclient.New(kisclient.Config{
			BaseURL:     cfg.KISBaseURL,
			AppKey:      cfg.KISAppKey,
			AppSecret:   cfg.KISAppSecret,
			AccountNo:   cfg.KISAccountNo,
			ProductCode: cfg.KISProductCode,
			Virtual:     cfg.KISVirtual,
			Logger:      appLogger,
		})
	case config.BrokerAlpaca:
		broker, err = alpacabroker.New(alpacabroker.Config{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaBaseURL,
			Logger:    appLogger,
		})
	}
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize brokerage client")
		log.Fatalf("FATAL: Failed to initialize brokerage client: %v", err)
	}
	appLogger.Info(ctx, "Brokerage client initialized", map[string]interface{}{"broker": cfg.Broker})

	// 5. Initialize Notifier
	var notifier ports.Notifier
	if cfg.SlackWebhookURL != "" {
		notifier, err = slack.New(cfg.SlackWebhookURL, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Slack notifier")
			log.Fatalf("FATAL: Failed to initialize Slack notifier: %v", err)
		}
		appLogger.Info(ctx, "Slack notifier initialized")
	}

	// 6. Initialize Trading Components
	tracker, err := trailing.New(trailing.Config{Repo: repo, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trailing stop tracker")
		log.Fatalf("FATAL: Failed to initialize trailing stop tracker: %v", err)
	}
	sellEngine, err := sell.New(sell.Config{Tracker: tracker, Partials: repo, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize sell engine")
		log.Fatalf("FATAL: Failed to initialize sell engine: %v", err)
	}

	// 7. Initialize Application Service
	tradingService, err := app.NewTradingService(app.Config{
		AccountID:    cfg.AccountID,
		Logger:       appLogger,
		Broker:       broker,
		Market:       repo,
		Tracker:      tracker,
		SellEngine:   sellEngine,
		Scorer:       scorer.New(scorer.DefaultConfig()),
		Partials:     repo,
		Orders:       repo,
		Configs:      repo,
		Watchlist:    repo,
		Notifier:     notifier,
		LookbackDays: cfg.LookbackDays,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized", map[string]interface{}{"account": cfg.AccountID})

	// 8. Run the Scheduler until interrupted
	scheduler, err := app.NewScheduler(app.SchedulerConfig{
		Service:      tradingService,
		Logger:       appLogger,
		BuyInterval:  cfg.BuyInterval,
		SellInterval: cfg.SellInterval,
		DryRun:       cfg.DryRun,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize scheduler")
		log.Fatalf("FATAL: Failed to initialize scheduler: %v", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Run(runCtx); err != nil && err != context.Canceled {
		appLogger.Error(ctx, err, "Scheduler exited with error")
		log.Fatalf("FATAL: Scheduler exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}

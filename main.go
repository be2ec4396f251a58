package main

import (
	"context"
	"log" // standard log only for fatal errors before the logger is up

	"tradehook/config"
	"tradehook/internal/adapters/binanceclient"
	"tradehook/internal/adapters/flatfile"
	"tradehook/internal/adapters/logger"
	"tradehook/internal/adapters/sqlite"
	"tradehook/internal/app"
	"tradehook/internal/ports"
	"tradehook/internal/server"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize logger
	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize the position ledger and trade history store
	var (
		ledger  ports.PositionLedger
		history ports.TradeLog
	)
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize SQLite store")
			log.Fatalf("FATAL: Failed to initialize SQLite store: %v", err)
		}
		ledger, history = repo, repo
	default:
		fileLedger, err := flatfile.NewLedger(flatfile.Config{Path: cfg.OpenLogPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize flat-file ledger")
			log.Fatalf("FATAL: Failed to initialize flat-file ledger: %v", err)
		}
		fileHistory, err := flatfile.NewHistory(flatfile.HistoryConfig{Path: cfg.CloseLogPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade history log")
			log.Fatalf("FATAL: Failed to initialize trade history log: %v", err)
		}
		ledger, history = fileLedger, fileHistory
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing position ledger")
		}
		if err := history.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade history")
		}
	}()
	appLogger.Info(context.Background(), "Store initialized", map[string]interface{}{"driver": cfg.StoreDriver})

	// 4. Initialize exchange client
	exchange, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize the signal processor
	processor, err := app.NewSignalProcessor(app.Config{
		Logger:        appLogger,
		Exchange:      exchange,
		Ledger:        ledger,
		History:       history,
		RiskFraction:  cfg.RiskFraction,
		QuoteCurrency: cfg.QuoteCurrency,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal processor")
		log.Fatalf("FATAL: Failed to initialize signal processor: %v", err)
	}
	appLogger.Info(context.Background(), "Signal processor initialized", map[string]interface{}{
		"riskFraction": cfg.RiskFraction.String(), "quoteCurrency": cfg.QuoteCurrency,
	})

	// 6. Start the webhook server
	srv, err := server.New(server.Config{
		ListenAddr:      cfg.ListenAddr,
		WebhookSecret:   cfg.WebhookSecret,
		Handler:         processor,
		Logger:          appLogger,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize webhook server")
		log.Fatalf("FATAL: Failed to initialize webhook server: %v", err)
	}

	if err := srv.Run(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Webhook server exited with error")
		log.Fatalf("FATAL: Webhook server exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

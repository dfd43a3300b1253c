package main

import (
	"go.uber.org/zap"

	"github.com/avolkov/careerai-bot/internal/analytics"
	"github.com/avolkov/careerai-bot/internal/analyzer"
	"github.com/avolkov/careerai-bot/internal/bot"
	"github.com/avolkov/careerai-bot/internal/cache"
	"github.com/avolkov/careerai-bot/internal/gemini"
	"github.com/avolkov/careerai-bot/internal/quota"
	"github.com/avolkov/careerai-bot/internal/storage"
	"github.com/avolkov/careerai-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the model gateway
	gateway := gemini.NewClient(gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		BaseURL:     cfg.Gemini.BaseURL,
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
		TopP:        cfg.Gemini.TopP,
		Timeout:     cfg.Gemini.Timeout,
	}, logger)

	// Initialize the analysis service
	ledger := quota.NewLedger(store, cfg.Limits.FreeDailyLimit, logger)
	service := analyzer.NewService(ledger, cache.New(), gateway, analyzer.Config{
		MaxResumeChars:  cfg.Limits.MaxResumeChars,
		MaxJobChars:     cfg.Limits.MaxJobChars,
		MinJobChars:     cfg.Limits.MinJobChars,
		MaxOutputTokens: cfg.Gemini.MaxTokens,
		CacheTTL:        cfg.Cache.TTL,
	}, logger)

	tracker := analytics.NewTracker(logger)

	// Initialize bot
	b, err := bot.New(cfg, service, tracker, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}

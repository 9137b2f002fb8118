// Package setup bootstraps the dependencies shared by the bot process.
package setup

import (
	"fmt"
	"log"

	"github.com/robalyx/gatekeeper/internal/setup/config"
	"github.com/robalyx/gatekeeper/internal/setup/telemetry"
	"github.com/robalyx/gatekeeper/internal/storage"
	"go.uber.org/zap"
)

// App bundles all core dependencies needed by the bot.
type App struct {
	Config     *config.Config       // Application configuration
	Logger     *zap.Logger          // Main application logger
	Store      storage.PointerStore // Ban list pointer persistence
	LogManager *telemetry.Manager   // Log management system
}

// InitializeApp loads the configuration, then creates the loggers and the pointer store.
func InitializeApp(configPath, logDir string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(logDir, &cfg.Debug, true)

	logger, err := logManager.GetLogger()
	if err != nil {
		return nil, err
	}

	store, err := openStore(&cfg.Storage, logger)
	if err != nil {
		logManager.Close()
		return nil, err
	}

	logger.Info("Application initialized",
		zap.Uint64("guildID", cfg.Discord.GuildID),
		zap.String("sessionDir", logManager.GetCurrentSessionDir()))

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		LogManager: logManager,
	}, nil
}

// openStore keeps the pointer in Redis when an address is configured, on disk otherwise.
func openStore(cfg *config.Storage, logger *zap.Logger) (storage.PointerStore, error) {
	if cfg.RedisAddr != "" {
		store, err := storage.NewRedisStore(cfg.RedisAddr, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open Redis pointer store: %w", err)
		}
		logger.Info("Using Redis pointer store", zap.String("addr", cfg.RedisAddr))
		return store, nil
	}

	store, err := storage.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open file pointer store: %w", err)
	}
	logger.Info("Using file pointer store", zap.String("path", store.Path()))
	return store, nil
}

// Cleanup releases resources in reverse initialization order.
// Errors are logged so every component gets a cleanup attempt.
func (s *App) Cleanup() {
	if err := s.Store.Close(); err != nil {
		s.Logger.Error("Failed to close pointer store", zap.Error(err))
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	s.LogManager.Close()
}

package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docuchat/backend-go/internal/config"
	"github.com/docuchat/backend-go/internal/dashscope"
	"github.com/docuchat/backend-go/internal/database"
	"github.com/docuchat/backend-go/internal/di"
	"github.com/docuchat/backend-go/internal/kafka"
	"github.com/docuchat/backend-go/internal/logger"
	"github.com/docuchat/backend-go/internal/rag"
	"github.com/docuchat/backend-go/internal/services"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	ChatService     *services.ChatService
	DocumentService *services.DocumentService
	MetricsService  *services.MetricsService
	Pipeline        *rag.Pipeline
}

// Global app instance
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Init bootstraps configuration, logger, optional infrastructure connections
// and the dependency injection container.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	app := &App{}

	// Initialize the DashScope service when an API key is configured.
	if cfg.AI.DashScopeAPIKey != "" {
		dashscope.InitGlobalService(cfg.AI.DashScopeAPIKey)
	}

	// Initialize database (optional, required by the database vector store).
	if cfg.Database.Enabled {
		if _, err := database.InitDB(); err != nil {
			return nil, err
		}
		app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)
	}

	// Initialize Redis (optional). Failure shouldn't block the app.
	if cfg.Redis.Enabled {
		if _, err := database.InitRedis(); err != nil {
			logger.Warn("Failed to initialize Redis", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
		}
	}

	// Initialize Kafka producer (optional).
	if cfg.Kafka.Enabled {
		if err := kafka.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return kafka.GetProducer().Close()
			})
		}
	}

	// Build the dependency injection container.
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	err := di.Invoke(func(chat *services.ChatService, docs *services.DocumentService,
		metrics *services.MetricsService, pipeline *rag.Pipeline) {
		app.ChatService = chat
		app.DocumentService = docs
		app.MetricsService = metrics
		app.Pipeline = pipeline
	})
	if err != nil {
		return nil, err
	}

	globalApp = app
	logger.Info("Application initialized",
		zap.String("embedding_provider", cfg.RAG.Embedding.Provider),
		zap.String("vector_store", cfg.RAG.VectorStore.Provider),
		zap.String("session_store", cfg.RAG.Sessions.Provider))
	return app, nil
}

// Shutdown runs registered cleanup tasks in reverse order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("Cleanup task failed", zap.Error(err))
		}
	}
	logger.Sync()
}

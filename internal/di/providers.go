package di

import (
	"fmt"
	"time"

	"go.uber.org/dig"

	"github.com/docuchat/backend-go/internal/config"
	"github.com/docuchat/backend-go/internal/database"
	"github.com/docuchat/backend-go/internal/logger"
	"github.com/docuchat/backend-go/internal/rag"
	"github.com/docuchat/backend-go/internal/services"
	"github.com/docuchat/backend-go/internal/storage"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册向量化器
	if err := container.Provide(func(cfg *config.Config) rag.Embedder {
		switch cfg.RAG.Embedding.Provider {
		case "dashscope":
			return rag.NewDashScopeEmbedder(cfg.RAG.Embedding.Model)
		default:
			return rag.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.RAG.Embedding.Model)
		}
	}); err != nil {
		return err
	}

	// 注册聊天客户端
	if err := container.Provide(func(cfg *config.Config) rag.ChatClient {
		switch cfg.AI.Provider {
		case "dashscope":
			return rag.NewDashScopeChatClient(cfg.AI.ChatModel, cfg.AI.MaxTokens, cfg.AI.Temperature)
		default:
			return rag.NewOpenAIChatClient(cfg.AI.OpenAIAPIKey, cfg.AI.ChatModel,
				cfg.AI.MaxTokens, cfg.AI.Temperature)
		}
	}); err != nil {
		return err
	}

	// 注册向量存储
	if err := container.Provide(func(cfg *config.Config) (rag.VectorStore, error) {
		switch cfg.RAG.VectorStore.Provider {
		case "milvus":
			return rag.NewMilvusVectorStore(rag.MilvusOptions{
				Address:    cfg.RAG.VectorStore.Milvus.Address,
				Username:   cfg.RAG.VectorStore.Milvus.Username,
				Password:   cfg.RAG.VectorStore.Milvus.Password,
				Collection: cfg.RAG.VectorStore.Milvus.Collection,
				Database:   cfg.RAG.VectorStore.Milvus.Database,
				UseTLS:     cfg.RAG.VectorStore.Milvus.TLS,
				VectorSize: cfg.RAG.VectorStore.Milvus.VectorSize,
			})
		case "database":
			if database.DB == nil {
				return nil, fmt.Errorf("database vector store requires an initialized database")
			}
			return rag.NewDatabaseVectorStore(database.DB), nil
		default:
			return rag.NewMemoryVectorStore(), nil
		}
	}); err != nil {
		return err
	}

	// 注册会话存储
	if err := container.Provide(func(cfg *config.Config) (rag.SessionStore, error) {
		switch cfg.RAG.Sessions.Provider {
		case "redis":
			if database.RedisClient == nil {
				return nil, fmt.Errorf("redis session store requires an initialized redis client")
			}
			ttl := time.Duration(cfg.RAG.Sessions.TTL) * time.Second
			return rag.NewRedisSessionStore(database.RedisClient, ttl), nil
		default:
			return rag.NewMemorySessionStore(), nil
		}
	}); err != nil {
		return err
	}

	// 注册对象存储，未配置时为nil
	if err := container.Provide(func(cfg *config.Config) (storage.ObjectStorage, error) {
		if cfg.RAG.Storage.Provider != "minio" {
			return nil, nil
		}
		minioStorage, err := storage.NewMinioStorage(storage.MinioOptions{
			Endpoint:  cfg.RAG.Storage.Endpoint,
			AccessKey: cfg.RAG.Storage.AccessKey,
			SecretKey: cfg.RAG.Storage.SecretKey,
			Bucket:    cfg.RAG.Storage.Bucket,
			BasePath:  cfg.RAG.Storage.BasePath,
			UseSSL:    cfg.RAG.Storage.UseSSL,
		})
		if err != nil {
			// 对象存储是可选能力，初始化失败降级为不归档
			logger.Warn("object storage unavailable, raw documents will not be archived")
			return nil, nil
		}
		return minioStorage, nil
	}); err != nil {
		return err
	}

	// 注册管道组件
	if err := container.Provide(func(cfg *config.Config) (*rag.Chunker, error) {
		return rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}); err != nil {
		return err
	}

	if err := container.Provide(rag.NewIndex); err != nil {
		return err
	}

	if err := container.Provide(func(chat rag.ChatClient, cfg *config.Config) *rag.Contextualizer {
		return rag.NewContextualizer(chat, cfg.RAG.HistoryWindow)
	}); err != nil {
		return err
	}

	if err := container.Provide(rag.NewSynthesizer); err != nil {
		return err
	}

	if err := container.Provide(func(chunker *rag.Chunker, index *rag.Index, sessions rag.SessionStore,
		contextualizer *rag.Contextualizer, synthesizer *rag.Synthesizer, cfg *config.Config) *rag.Pipeline {
		return rag.NewPipeline(chunker, index, sessions, contextualizer, synthesizer, cfg.RAG.DefaultK)
	}); err != nil {
		return err
	}

	// 注册服务
	if err := container.Provide(rag.NewFileParserManager); err != nil {
		return err
	}

	if err := container.Provide(services.NewChatService); err != nil {
		return err
	}

	if err := container.Provide(services.NewDocumentService); err != nil {
		return err
	}

	if err := container.Provide(services.NewMetricsService); err != nil {
		return err
	}

	return nil
}

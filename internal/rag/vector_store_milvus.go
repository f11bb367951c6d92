package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/docuchat/backend-go/internal/logger"
	"go.uber.org/zap"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	VectorSize int
	Database   string
	UseTLS     bool
	Timeout    time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int

	setupMu sync.Mutex // 串行化集合创建与加载
	loaded  bool
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "doc_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
	}, nil
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()
	if s.loaded {
		return nil
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !hasCollection {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Document chunk vectors",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeInt64,
					PrimaryKey: true,
					AutoID:     false,
				},
				{
					Name:     "document_id",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "64",
					},
				},
				{
					Name:     "chunk_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     "content",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "65535",
					},
				},
				{
					Name:     "metadata",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "65535",
					},
				},
				{
					Name:     "vector",
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": strconv.Itoa(s.vectorSize),
					},
				},
			},
		}

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		var index entity.Index
		index, indexErr := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if indexErr != nil {
			index, indexErr = entity.NewIndexIvfFlat(entity.COSINE, 128)
			if indexErr != nil {
				return fmt.Errorf("failed to create index: %w", indexErr)
			}
		}
		if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
			logger.Warn("failed to create milvus index",
				zap.String("collection", s.collection), zap.Error(err))
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	s.loaded = true

	return nil
}

// Insert 批量写入切片向量
func (s *milvusVectorStore) Insert(ctx context.Context, chunks []VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]int64, 0, len(chunks))
	documentIDs := make([]string, 0, len(chunks))
	chunkIndexes := make([]int64, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	metadatas := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))

	for _, c := range chunks {
		if len(c.Embedding) != s.vectorSize {
			return fmt.Errorf("embedding dimension %d does not match collection dimension %d",
				len(c.Embedding), s.vectorSize)
		}
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		ids = append(ids, int64(c.ID))
		documentIDs = append(documentIDs, c.DocumentID)
		chunkIndexes = append(chunkIndexes, int64(c.ChunkIndex))
		contents = append(contents, c.Text)
		metadatas = append(metadatas, string(metaJSON))
		vectors = append(vectors, c.Embedding)
	}

	_, err := s.milvusClient.Insert(ctx, s.collection, "",
		entity.NewColumnInt64("id", ids),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("metadata", metadatas),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush milvus collection",
			zap.String("collection", s.collection), zap.Error(err))
	}

	return nil
}

// Search 向量检索
func (s *milvusVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	if len(req.QueryEmbedding) == 0 {
		return nil, nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	queryVector := entity.FloatVector(req.QueryEmbedding)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		[]string{"document_id", "content", "metadata"},
		[]entity.Vector{queryVector},
		"vector",
		entity.COSINE,
		req.Limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []SearchMatch{}, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []SearchMatch{}, nil
	}

	var ids []int64
	if idCol, ok := result.IDs.(*entity.ColumnInt64); ok {
		ids = idCol.Data()
	}

	var documentIDs, contents, metadatas []string
	for _, field := range result.Fields {
		switch field.Name() {
		case "document_id":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				documentIDs = val.Data()
			}
		case "content":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				contents = val.Data()
			}
		case "metadata":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				metadatas = val.Data()
			}
		}
	}

	matches := make([]SearchMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{}
		if i < len(ids) {
			match.ChunkID = uint64(ids[i])
		}
		if i < len(documentIDs) {
			match.DocumentID = documentIDs[i]
		}
		if i < len(contents) {
			match.Content = contents[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		if i < len(metadatas) && metadatas[i] != "" {
			meta := make(map[string]string)
			if err := json.Unmarshal([]byte(metadatas[i]), &meta); err == nil {
				match.Metadata = meta
			}
		}
		matches = append(matches, match)
	}

	// Milvus按分数返回，相同分数时仍按入库顺序兜底排序
	sortMatchesByScore(matches)
	return matches, nil
}

// Count 返回集合内的切片总数
func (s *milvusVectorStore) Count(ctx context.Context) (int, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return 0, err
	}

	stats, err := s.milvusClient.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	rowCount, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("unexpected row_count value: %w", err)
	}
	return rowCount, nil
}

// DeleteDocument 删除指定文档的全部切片
func (s *milvusVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	expr := fmt.Sprintf(`document_id == "%s"`, documentID)
	if err := s.milvusClient.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush after delete",
			zap.String("collection", s.collection), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

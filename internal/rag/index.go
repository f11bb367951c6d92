package rag

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	apperrors "github.com/docuchat/backend-go/internal/errors"
	"github.com/docuchat/backend-go/internal/logger"
)

// Index 组合向量化与向量存储，提供文本级的写入和检索。
// 切片ID由进程内单调计数器分配，ID顺序即入库顺序
type Index struct {
	embedder Embedder
	store    VectorStore

	nextID atomic.Uint64

	// 首次成功向量化后记录维度，后续不一致的向量拒绝入库
	dimMu sync.Mutex
	dims  int
}

// NewIndex 创建索引
func NewIndex(embedder Embedder, store VectorStore) *Index {
	return &Index{
		embedder: embedder,
		store:    store,
	}
}

// Add 将文档切片向量化后写入存储，返回写入的切片数量。
// baseMetadata会复制到每个切片上，并补充chunk_index和total_chunks。
// 向量化调用不持有任何锁，慢的外部请求不会阻塞其他操作
func (idx *Index) Add(ctx context.Context, documentID string, chunks []Chunk, baseMetadata map[string]string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectorChunks := make([]VectorChunk, 0, len(chunks))
	for _, chunk := range chunks {
		embedding, err := idx.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return 0, apperrors.NewExternalError(apperrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("failed to embed chunk %d", chunk.Index), err)
		}
		if err := idx.checkDimensions(len(embedding)); err != nil {
			return 0, err
		}

		metadata := make(map[string]string, len(baseMetadata)+2)
		for k, v := range baseMetadata {
			metadata[k] = v
		}
		metadata["chunk_index"] = strconv.Itoa(chunk.Index)
		metadata["total_chunks"] = strconv.Itoa(len(chunks))

		vectorChunks = append(vectorChunks, VectorChunk{
			ID:         idx.nextID.Add(1),
			DocumentID: documentID,
			Text:       chunk.Text,
			Embedding:  embedding,
			ChunkIndex: chunk.Index,
			Metadata:   metadata,
		})
	}

	if err := idx.store.Insert(ctx, vectorChunks); err != nil {
		return 0, err
	}

	logger.Info("indexed document chunks",
		zap.String("document_id", documentID),
		zap.Int("chunk_count", len(vectorChunks)))
	return len(vectorChunks), nil
}

// Query 向量化查询文本并返回最相似的k个切片。
// 空索引不是错误，返回空结果
func (idx *Index) Query(ctx context.Context, text string, k int) ([]SearchMatch, error) {
	if k < 1 {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeInvalidArgument,
			"k must be at least 1")
	}

	count, err := idx.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []SearchMatch{}, nil
	}

	embedding, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeEmbeddingFailed,
			"failed to embed query", err)
	}
	if err := idx.checkDimensions(len(embedding)); err != nil {
		return nil, err
	}

	return idx.store.Search(ctx, VectorSearchRequest{
		QueryEmbedding: embedding,
		Limit:          k,
	})
}

// Count 返回索引内的切片总数
func (idx *Index) Count(ctx context.Context) (int, error) {
	return idx.store.Count(ctx)
}

// DeleteDocument 删除指定文档的全部切片
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) error {
	return idx.store.DeleteDocument(ctx, documentID)
}

// Ready 检查依赖的向量化服务和存储是否都可用
func (idx *Index) Ready() bool {
	return idx.embedder.Ready() && idx.store.Ready()
}

func (idx *Index) checkDimensions(got int) error {
	idx.dimMu.Lock()
	defer idx.dimMu.Unlock()

	if got == 0 {
		return apperrors.NewBusinessError(apperrors.ErrCodeEmbeddingFailed,
			"embedding provider returned empty vector")
	}
	if idx.dims == 0 {
		idx.dims = got
		return nil
	}
	if idx.dims != got {
		return apperrors.NewBusinessError(apperrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding dimension mismatch: index has %d, got %d", idx.dims, got))
	}
	return nil
}

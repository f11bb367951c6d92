package rag

import (
	"context"
	"sync"
)

// MemoryVectorStore 进程内向量存储，适用于单机部署与测试
type MemoryVectorStore struct {
	mu     sync.RWMutex
	chunks []VectorChunk
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

// Insert 写入切片向量。向量在写入时归一化，检索只需计算点积
func (s *MemoryVectorStore) Insert(ctx context.Context, chunks []VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	normalized := make([]VectorChunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = normalizeVector(c.Embedding)
		normalized[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, normalized...)
	return nil
}

// Search 余弦相似度检索，返回至多Limit条结果
func (s *MemoryVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	query := normalizeVector(req.QueryEmbedding)

	s.mu.RLock()
	matches := make([]SearchMatch, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(c.Embedding) != len(query) {
			continue
		}
		var dot float64
		for i := range query {
			dot += float64(query[i]) * float64(c.Embedding[i])
		}
		matches = append(matches, SearchMatch{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Text,
			Score:      dot,
			Metadata:   c.Metadata,
		})
	}
	s.mu.RUnlock()

	sortMatchesByScore(matches)
	if req.Limit > 0 && len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}
	return matches, nil
}

// Count 返回当前存储的切片数量
func (s *MemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// DeleteDocument 删除指定文档的全部切片
func (s *MemoryVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

func (s *MemoryVectorStore) Ready() bool {
	return true
}

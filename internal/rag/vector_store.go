package rag

import (
	"context"
	"math"
	"sort"
)

// VectorChunk 存储向量信息
type VectorChunk struct {
	ID         uint64
	DocumentID string
	Text       string
	Embedding  []float32
	ChunkIndex int
	Metadata   map[string]string
}

// VectorSearchRequest 向量检索请求
type VectorSearchRequest struct {
	QueryEmbedding []float32
	Limit          int
}

// SearchMatch 单条检索结果
type SearchMatch struct {
	ChunkID    uint64
	DocumentID string
	Content    string
	Score      float64
	Metadata   map[string]string
}

// VectorStore 向量存储抽象
type VectorStore interface {
	Insert(ctx context.Context, chunks []VectorChunk) error
	Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error)
	Count(ctx context.Context) (int, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Ready() bool
}

// sortMatchesByScore 按相似度降序排列，分数相同时较早入库的块优先
func sortMatchesByScore(matches []SearchMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
}

// normalizeVector 返回单位向量，零向量原样返回
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// cosineSimilarity 计算两个向量的余弦相似度，任一为零向量时返回0
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

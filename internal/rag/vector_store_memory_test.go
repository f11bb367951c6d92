package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	err := store.Insert(ctx, []VectorChunk{
		{ID: 1, DocumentID: "doc-a", Text: "正交", Embedding: []float32{0, 1, 0}},
		{ID: 2, DocumentID: "doc-a", Text: "完全匹配", Embedding: []float32{1, 0, 0}},
		{ID: 3, DocumentID: "doc-b", Text: "部分匹配", Embedding: []float32{1, 1, 0}},
	})
	require.NoError(t, err)

	matches, err := store.Search(ctx, VectorSearchRequest{
		QueryEmbedding: []float32{1, 0, 0},
		Limit:          3,
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, uint64(2), matches[0].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, uint64(3), matches[1].ChunkID)
	assert.Equal(t, uint64(1), matches[2].ChunkID)
}

func TestMemoryStoreSearchTieBreaksByChunkID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	// 两个块与查询的相似度完全相同，低ID的在前
	err := store.Insert(ctx, []VectorChunk{
		{ID: 7, Text: "later", Embedding: []float32{1, 0}},
		{ID: 4, Text: "earlier", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)

	matches, err := store.Search(ctx, VectorSearchRequest{
		QueryEmbedding: []float32{1, 0},
		Limit:          2,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(4), matches[0].ChunkID)
	assert.Equal(t, uint64(7), matches[1].ChunkID)
}

func TestMemoryStoreSearchLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	err := store.Insert(ctx, []VectorChunk{
		{ID: 1, Embedding: []float32{1, 0}},
		{ID: 2, Embedding: []float32{0.9, 0.1}},
		{ID: 3, Embedding: []float32{0.5, 0.5}},
	})
	require.NoError(t, err)

	matches, err := store.Search(ctx, VectorSearchRequest{
		QueryEmbedding: []float32{1, 0},
		Limit:          2,
	})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestMemoryStoreSearchEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	matches, err := store.Search(ctx, VectorSearchRequest{
		QueryEmbedding: []float32{1, 0},
		Limit:          5,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStoreDeleteDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	err := store.Insert(ctx, []VectorChunk{
		{ID: 1, DocumentID: "doc-a", Embedding: []float32{1, 0}},
		{ID: 2, DocumentID: "doc-b", Embedding: []float32{0, 1}},
		{ID: 3, DocumentID: "doc-a", Embedding: []float32{1, 1}},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(ctx, "doc-a"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := store.Search(ctx, VectorSearchRequest{
		QueryEmbedding: []float32{0, 1},
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc-b", matches[0].DocumentID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
}

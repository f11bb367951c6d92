package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/docuchat/backend-go/internal/models"
)

// DatabaseVectorStore 基于PostgreSQL的退化向量存储。
// 候选行全部取回后在进程内计算余弦相似度，只适合中小规模语料
type DatabaseVectorStore struct {
	db *gorm.DB
}

func NewDatabaseVectorStore(db *gorm.DB) VectorStore {
	return &DatabaseVectorStore{db: db}
}

func (s *DatabaseVectorStore) Insert(ctx context.Context, chunks []VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]models.DocumentChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("embedding is empty for chunk %d", c.ID)
		}
		embeddingJSON, err := json.Marshal(c.Embedding)
		if err != nil {
			return err
		}
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		records = append(records, models.DocumentChunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Text,
			ChunkIndex: c.ChunkIndex,
			Embedding:  string(embeddingJSON),
			Metadata:   string(metadataJSON),
			CreatedAt:  time.Now(),
		})
	}

	return s.db.WithContext(ctx).Create(&records).Error
}

func (s *DatabaseVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	if len(req.QueryEmbedding) == 0 {
		return nil, nil
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	var rows []models.DocumentChunk
	err := s.db.WithContext(ctx).
		Select("id, document_id, content, embedding, metadata").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	matches := make([]SearchMatch, 0, len(rows))
	for _, row := range rows {
		var embedding []float32
		if err := json.Unmarshal([]byte(row.Embedding), &embedding); err != nil {
			continue
		}
		metadata := make(map[string]string)
		if row.Metadata != "" {
			_ = json.Unmarshal([]byte(row.Metadata), &metadata)
		}
		matches = append(matches, SearchMatch{
			ChunkID:    row.ID,
			DocumentID: row.DocumentID,
			Content:    row.Content,
			Score:      cosineSimilarity(req.QueryEmbedding, embedding),
			Metadata:   metadata,
		})
	}

	sortMatchesByScore(matches)
	if len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}
	return matches, nil
}

func (s *DatabaseVectorStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DocumentChunk{}).Count(&count).Error
	return int(count), err
}

func (s *DatabaseVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&models.DocumentChunk{}).Error
}

func (s *DatabaseVectorStore) Ready() bool {
	return s.db != nil
}

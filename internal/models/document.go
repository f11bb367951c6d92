package models

import (
	"time"
)

// DocumentChunk 文档切片表，用于数据库向量存储后端
type DocumentChunk struct {
	ID         uint64    `gorm:"primaryKey;column:id;autoIncrement:false" json:"id"`
	DocumentID string    `gorm:"column:document_id;size:64;not null;index" json:"document_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ChunkIndex int       `gorm:"column:chunk_index;not null" json:"chunk_index"`
	Embedding  string    `gorm:"type:text;not null" json:"embedding"` // JSON序列化的float32向量
	Metadata   string    `gorm:"type:jsonb" json:"metadata"`          // JSON序列化的键值对
	CreatedAt  time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

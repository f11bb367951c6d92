package rag

import (
	apperrors "github.com/docuchat/backend-go/internal/errors"
)

// Chunk 表示切分后的文本片段
type Chunk struct {
	Index int
	Text  string
}

// Chunker 文本分块器，按字符数滑动窗口切分
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器。参数非法时返回错误而不是静默修正，
// 否则调用方观察到的分块行为会与配置不一致
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperrors.NewValidationError(
			apperrors.ErrCodeInvalidConfiguration, "chunk_size must be positive")
	}
	if overlap < 0 {
		return nil, apperrors.NewValidationError(
			apperrors.ErrCodeInvalidConfiguration, "chunk_overlap must not be negative")
	}
	if overlap >= chunkSize {
		return nil, apperrors.NewValidationError(
			apperrors.ErrCodeInvalidConfiguration, "chunk_overlap must be smaller than chunk_size")
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}, nil
}

// ChunkSize 返回单块的最大字符数
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap 返回相邻块之间共享的字符数
func (c *Chunker) Overlap() int {
	return c.chunkOverlap
}

// Split 将文本切分为多个chunk。
// 切分按rune计数，不做任何清洗或去空白，保证各块拼接后能还原原文：
// 去掉每个后续块开头的overlap个字符再拼接，结果与输入完全一致
func (c *Chunker) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.chunkSize - c.chunkOverlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}

package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/docuchat/backend-go/internal/dashscope"
)

// DashScopeEmbedder 使用阿里云DashScope Embedding API（基于统一服务）
type DashScopeEmbedder struct {
	service    *dashscope.Service
	model      string
	dimensions int
}

// 千问Embedding模型维度映射
var dashscopeEmbeddingDimensions = map[string]int{
	"text-embedding-v1": 1536,
	"text-embedding-v2": 1536,
	"text-embedding-v3": 1536, // 支持自定义维度
	"text-embedding-v4": 1536, // 支持自定义维度
}

// NewDashScopeEmbedder 创建DashScope嵌入向量生成器
func NewDashScopeEmbedder(model string) Embedder {
	service := dashscope.GetGlobalService()
	if service == nil || !service.Ready() {
		return &NoopEmbedder{}
	}

	if model == "" {
		model = "text-embedding-v1"
	}

	dims, ok := dashscopeEmbeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &DashScopeEmbedder{
		service:    service,
		model:      model,
		dimensions: dims,
	}
}

func (e *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("text is empty")
	}
	if e.service == nil || !e.service.Ready() {
		return nil, errors.New("dashscope service not initialized")
	}

	req := dashscope.EmbeddingRequest{
		Model:          e.model,
		Input:          []string{text},
		EncodingFormat: "float",
	}

	// v3和v4模型支持指定输出维度
	if e.model == "text-embedding-v3" || e.model == "text-embedding-v4" {
		req.Dimensions = &e.dimensions
	}

	resp, err := e.service.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response empty")
	}

	// DashScope返回float64，统一转成float32
	embedding := resp.Data[0].Embedding
	result := make([]float32, len(embedding))
	for i, v := range embedding {
		result[i] = float32(v)
	}

	return result, nil
}

func (e *DashScopeEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *DashScopeEmbedder) Ready() bool {
	return e.service != nil && e.service.Ready()
}

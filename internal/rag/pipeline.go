package rag

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/docuchat/backend-go/internal/errors"
	"github.com/docuchat/backend-go/internal/logger"
)

// Pipeline 串联分块、索引、会话、问题改写和回答生成
type Pipeline struct {
	chunker        *Chunker
	index          *Index
	sessions       SessionStore
	contextualizer *Contextualizer
	synthesizer    *Synthesizer
	defaultK       int
}

// NewPipeline 创建问答管道
func NewPipeline(chunker *Chunker, index *Index, sessions SessionStore,
	contextualizer *Contextualizer, synthesizer *Synthesizer, defaultK int) *Pipeline {
	if defaultK < 1 {
		defaultK = 3
	}
	return &Pipeline{
		chunker:        chunker,
		index:          index,
		sessions:       sessions,
		contextualizer: contextualizer,
		synthesizer:    synthesizer,
		defaultK:       defaultK,
	}
}

// IngestRequest 文档入库请求
type IngestRequest struct {
	SessionID string
	Filename  string
	Text      string
}

// IngestResult 文档入库结果
type IngestResult struct {
	DocumentID string
	ChunkCount int
	TextLength int
}

// AskRequest 提问请求。K为0时使用默认值
type AskRequest struct {
	SessionID string
	Message   string
	K         int
}

// Answer 一次提问的完整结果
type Answer struct {
	Text string
	// ContextualizedQuestion 实际用于检索的问题，未改写时与原问题相同
	ContextualizedQuestion string
	Sources                []Source
}

// Ingest 切分文档并写入索引
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.Text == "" {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeInvalidArgument,
			"document text is empty")
	}

	documentID := uuid.NewString()
	chunks := p.chunker.Split(req.Text)

	metadata := map[string]string{
		"source":     req.Filename,
		"filename":   req.Filename,
		"session_id": req.SessionID,
		"type":       "document",
	}
	count, err := p.index.Add(ctx, documentID, chunks, metadata)
	if err != nil {
		return nil, err
	}

	logger.Info("document ingested",
		zap.String("session_id", req.SessionID),
		zap.String("document_id", documentID),
		zap.String("filename", req.Filename),
		zap.Int("chunk_count", count))

	return &IngestResult{
		DocumentID: documentID,
		ChunkCount: count,
		TextLength: len([]rune(req.Text)),
	}, nil
}

// Ask 完整问答流程：取历史、改写问题、检索、生成回答、记录轮次。
// 生成失败时不记录轮次，错误的Details携带已检索的来源
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	if req.Message == "" {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeInvalidArgument,
			"message is empty")
	}
	k := req.K
	if k <= 0 {
		k = p.defaultK
	}

	history, err := p.sessions.GetHistory(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	question := p.contextualizer.Contextualize(ctx, history, req.Message)

	matches, err := p.index.Query(ctx, question, k)
	if err != nil {
		return nil, err
	}

	text, sources, err := p.synthesizer.Synthesize(ctx, question, matches)
	if err != nil {
		return nil, err
	}

	turn := Turn{
		UserMessage: req.Message,
		Answer:      text,
		Sources:     sources,
	}
	if err := p.sessions.Append(ctx, req.SessionID, turn); err != nil {
		return nil, err
	}

	return &Answer{
		Text:                   text,
		ContextualizedQuestion: question,
		Sources:                sources,
	}, nil
}

// ClearHistory 清空会话历史
func (p *Pipeline) ClearHistory(ctx context.Context, sessionID string) error {
	return p.sessions.Clear(ctx, sessionID)
}

// DeleteSession 删除会话
func (p *Pipeline) DeleteSession(ctx context.Context, sessionID string) error {
	return p.sessions.Delete(ctx, sessionID)
}

// Sessions 列出全部会话ID
func (p *Pipeline) Sessions(ctx context.Context) ([]string, error) {
	return p.sessions.Sessions(ctx)
}

// SessionInfo 返回会话概要
func (p *Pipeline) SessionInfo(ctx context.Context, sessionID string) (SessionInfo, error) {
	return p.sessions.Info(ctx, sessionID)
}

// IndexedChunks 返回索引内切片总数
func (p *Pipeline) IndexedChunks(ctx context.Context) (int, error) {
	return p.index.Count(ctx)
}

// DeleteDocument 从索引中删除文档
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	return p.index.DeleteDocument(ctx, documentID)
}

// Ready 检查管道依赖是否都可用
func (p *Pipeline) Ready() bool {
	return p.index.Ready() && p.sessions.Ready()
}

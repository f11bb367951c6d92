package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/docuchat/backend-go/internal/errors"
	"github.com/docuchat/backend-go/internal/kafka"
	"github.com/docuchat/backend-go/internal/logger"
	"github.com/docuchat/backend-go/internal/rag"
)

// ChatRequest 提问请求
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Message   string `json:"message" validate:"required"`
	K         int    `json:"k" validate:"omitempty,min=1,max=50"`
	// Verbose 控制响应是否携带来源和改写信息
	Verbose bool `json:"verbose"`
}

// ChatResponse 提问响应
type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	// 以下字段仅在Verbose时填充
	Sources                []rag.Source `json:"sources,omitempty"`
	NumSources             *int         `json:"num_sources,omitempty"`
	ContextualizedQuestion string       `json:"contextualized_question,omitempty"`
}

// ChatService 问答服务，在管道之上做请求校验、指标和审计
type ChatService struct {
	pipeline *rag.Pipeline
	validate *validator.Validate
}

// NewChatService 创建问答服务
func NewChatService(pipeline *rag.Pipeline) *ChatService {
	return &ChatService{
		pipeline: pipeline,
		validate: validator.New(),
	}
}

// Ask 处理一次提问
func (s *ChatService) Ask(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
			err.Error())
	}

	start := time.Now()
	answer, err := s.pipeline.Ask(ctx, rag.AskRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		K:         req.K,
	})
	askDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		questionsTotal.WithLabelValues("error").Inc()
		apperrors.RecordError(err, "chat.ask")
		return nil, err
	}
	questionsTotal.WithLabelValues("ok").Inc()

	// 审计事件异步发送，Kafka不可用不影响问答
	go func() {
		if err := kafka.SendConversationEvent(req.SessionID, "user", req.Message, 0); err != nil {
			logger.Warn("failed to publish user message event", zap.Error(err))
		}
		if err := kafka.SendConversationEvent(req.SessionID, "assistant", answer.Text, len(answer.Sources)); err != nil {
			logger.Warn("failed to publish assistant message event", zap.Error(err))
		}
	}()

	resp := &ChatResponse{
		Answer:    answer.Text,
		SessionID: req.SessionID,
	}
	if req.Verbose {
		resp.Sources = answer.Sources
		// num_sources在verbose下始终返回，来源为空时返回0
		numSources := len(answer.Sources)
		resp.NumSources = &numSources
		// 改写结果只在与原问题不同时返回
		if answer.ContextualizedQuestion != req.Message {
			resp.ContextualizedQuestion = answer.ContextualizedQuestion
		}
	}
	return resp, nil
}

// ClearHistory 清空会话历史
func (s *ChatService) ClearHistory(ctx context.Context, sessionID string) error {
	return s.pipeline.ClearHistory(ctx, sessionID)
}

// DeleteSession 删除会话
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.pipeline.DeleteSession(ctx, sessionID)
}

// ListSessions 列出全部会话ID
func (s *ChatService) ListSessions(ctx context.Context) ([]string, error) {
	return s.pipeline.Sessions(ctx)
}

// SessionInfo 返回会话概要
func (s *ChatService) SessionInfo(ctx context.Context, sessionID string) (rag.SessionInfo, error) {
	return s.pipeline.SessionInfo(ctx, sessionID)
}

package rag

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/docuchat/backend-go/internal/errors"
)

const (
	groundingSystemPrompt = "You are a helpful assistant that answers questions based on provided documents."

	// NoInformationAnswer 语料中检索不到相关内容时的固定回答
	NoInformationAnswer = "I don't have enough information to answer that question based on the provided documents."
)

// Synthesizer 基于检索到的切片生成有依据的回答
type Synthesizer struct {
	chat ChatClient
}

// NewSynthesizer 创建回答生成器
func NewSynthesizer(chat ChatClient) *Synthesizer {
	return &Synthesizer{chat: chat}
}

// Synthesize 根据检索结果回答问题。
// 没有任何检索结果时直接返回固定回答，不调用LLM；
// 生成失败时返回GENERATION_FAILED错误，Details中携带已检索到的来源，
// 调用方可以降级展示原文
func (s *Synthesizer) Synthesize(ctx context.Context, question string, matches []SearchMatch) (string, []Source, error) {
	if len(matches) == 0 {
		return NoInformationAnswer, []Source{}, nil
	}

	sources := SourcesFromMatches(matches)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Based on the following documents, please answer this question: %s\n\n", question)
	prompt.WriteString("Documents:\n")
	for _, match := range matches {
		fmt.Fprintf(&prompt, "- %s\n", match.Content)
	}
	prompt.WriteString("\nPlease provide a clear, helpful answer using only the information from these documents. " +
		"If you can't find the answer in the documents, say \"I don't have enough information to answer that question based on the provided documents.\"")

	answer, err := s.chat.Complete(ctx, []ChatMessage{
		{Role: RoleSystem, Content: groundingSystemPrompt},
		{Role: RoleUser, Content: prompt.String()},
	})
	if err != nil {
		appErr := apperrors.NewExternalError(apperrors.ErrCodeGenerationFailed,
			"answer generation failed", err)
		return "", sources, appErr.WithDetails(map[string]interface{}{
			"sources": sources,
		})
	}

	return answer, sources, nil
}

// SourcesFromMatches 把检索结果转换为可展示的来源列表，保持检索顺序
func SourcesFromMatches(matches []SearchMatch) []Source {
	sources := make([]Source, 0, len(matches))
	for _, match := range matches {
		sources = append(sources, Source{
			Content:  match.Content,
			Metadata: match.Metadata,
		})
	}
	return sources
}

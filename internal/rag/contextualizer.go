package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/docuchat/backend-go/internal/logger"
)

const contextualizeSystemPrompt = "Given the chat history, rewrite the new question to be standalone and searchable. Just return the rewritten question."

// Contextualizer 结合会话历史，把指代性的追问改写成独立可检索的问题
type Contextualizer struct {
	chat   ChatClient
	window int
}

// NewContextualizer 创建问题改写器。window限制参与改写的历史轮数
func NewContextualizer(chat ChatClient, window int) *Contextualizer {
	if window <= 0 {
		window = 6
	}
	return &Contextualizer{
		chat:   chat,
		window: window,
	}
}

// Contextualize 返回改写后的问题。
// 历史为空时原样返回；改写失败时记录日志并退回原始问题，
// 对话不因改写环节不可用而中断
func (c *Contextualizer) Contextualize(ctx context.Context, history []Turn, message string) string {
	if len(history) == 0 {
		return message
	}

	if len(history) > c.window {
		history = history[len(history)-c.window:]
	}

	messages := make([]ChatMessage, 0, len(history)*2+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: contextualizeSystemPrompt})
	for _, turn := range history {
		messages = append(messages,
			ChatMessage{Role: RoleUser, Content: turn.UserMessage},
			ChatMessage{Role: RoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: message})

	rewritten, err := c.chat.Complete(ctx, messages)
	if err != nil {
		logger.Warn("question contextualization failed, using original question",
			zap.Error(err))
		return message
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return message
	}
	return rewritten
}

package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeChatClient 脚本化LLM客户端
type fakeChatClient struct {
	reply    string
	err      error
	requests [][]ChatMessage
}

func (f *fakeChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	copied := make([]ChatMessage, len(messages))
	copy(copied, messages)
	f.requests = append(f.requests, copied)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChatClient) Ready() bool { return true }

func TestContextualizeEmptyHistoryReturnsOriginal(t *testing.T) {
	chat := &fakeChatClient{reply: "should not be used"}
	c := NewContextualizer(chat, 6)

	got := c.Contextualize(context.Background(), nil, "What is its population?")
	assert.Equal(t, "What is its population?", got)
	// 无历史时不应调用LLM
	assert.Empty(t, chat.requests)
}

func TestContextualizeRewritesWithHistory(t *testing.T) {
	chat := &fakeChatClient{reply: "What is the population of Paris?"}
	c := NewContextualizer(chat, 6)

	history := []Turn{
		{UserMessage: "Tell me about Paris", Answer: "Paris is the capital of France."},
	}
	got := c.Contextualize(context.Background(), history, "What is its population?")
	assert.Equal(t, "What is the population of Paris?", got)

	// 请求包含系统提示、历史问答和新问题
	assert.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, RoleSystem, req[0].Role)
	assert.Equal(t, "Tell me about Paris", req[1].Content)
	assert.Equal(t, RoleAssistant, req[2].Role)
	assert.Equal(t, "What is its population?", req[len(req)-1].Content)
}

func TestContextualizeFailureFallsBack(t *testing.T) {
	chat := &fakeChatClient{err: errors.New("llm unavailable")}
	c := NewContextualizer(chat, 6)

	history := []Turn{{UserMessage: "q", Answer: "a"}}
	got := c.Contextualize(context.Background(), history, "original question")
	assert.Equal(t, "original question", got)
}

func TestContextualizeEmptyReplyFallsBack(t *testing.T) {
	chat := &fakeChatClient{reply: "   "}
	c := NewContextualizer(chat, 6)

	history := []Turn{{UserMessage: "q", Answer: "a"}}
	got := c.Contextualize(context.Background(), history, "original question")
	assert.Equal(t, "original question", got)
}

func TestContextualizeWindowLimitsHistory(t *testing.T) {
	chat := &fakeChatClient{reply: "rewritten"}
	c := NewContextualizer(chat, 2)

	history := []Turn{
		{UserMessage: "q1", Answer: "a1"},
		{UserMessage: "q2", Answer: "a2"},
		{UserMessage: "q3", Answer: "a3"},
	}
	c.Contextualize(context.Background(), history, "new question")

	// 系统提示 + 最近2轮(4条) + 新问题
	req := chat.requests[0]
	assert.Len(t, req, 6)
	assert.Equal(t, "q2", req[1].Content)
	assert.Equal(t, "q3", req[3].Content)
}

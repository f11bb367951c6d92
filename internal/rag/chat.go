package rag

import (
	"context"
	"errors"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docuchat/backend-go/internal/dashscope"
)

// 消息角色常量
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 发送给LLM的单条消息
type ChatMessage struct {
	Role    string
	Content string
}

// ChatClient 定义LLM补全接口
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
	Ready() bool
}

// NoopChatClient 默认占位实现
type NoopChatClient struct{}

func (n *NoopChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return "", errors.New("chat provider not configured")
}

func (n *NoopChatClient) Ready() bool {
	return false
}

// OpenAIChatClient 使用OpenAI Chat Completion API
type OpenAIChatClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	limiter     sync.Mutex
}

// NewOpenAIChatClient 创建OpenAI聊天客户端
func NewOpenAIChatClient(apiKey, model string, maxTokens int, temperature float64) ChatClient {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopChatClient{}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIChatClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *OpenAIChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	if len(messages) == 0 {
		return "", errors.New("messages is empty")
	}

	c.limiter.Lock()
	defer c.limiter.Unlock()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion response empty")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIChatClient) Ready() bool {
	return c.client != nil
}

// DashScopeChatClient 使用阿里云DashScope兼容接口
type DashScopeChatClient struct {
	service     *dashscope.Service
	model       string
	maxTokens   int
	temperature float64
}

// NewDashScopeChatClient 创建DashScope聊天客户端
func NewDashScopeChatClient(model string, maxTokens int, temperature float64) ChatClient {
	service := dashscope.GetGlobalService()
	if service == nil || !service.Ready() {
		return &NoopChatClient{}
	}
	if model == "" {
		model = "qwen-plus"
	}

	return &DashScopeChatClient{
		service:     service,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *DashScopeChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.service == nil || !c.service.Ready() {
		return "", errors.New("dashscope service not initialized")
	}
	if len(messages) == 0 {
		return "", errors.New("messages is empty")
	}

	chatMessages := make([]dashscope.ChatMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, dashscope.ChatMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := dashscope.ChatRequest{
		Model:    c.model,
		Messages: chatMessages,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}
	if c.temperature > 0 {
		req.Temperature = &c.temperature
	}

	resp, err := c.service.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion response empty")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *DashScopeChatClient) Ready() bool {
	return c.service != nil && c.service.Ready()
}

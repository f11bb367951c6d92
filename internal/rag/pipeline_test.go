package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuchat/backend-go/internal/errors"
)

// answeringChatClient 按请求内容分流：改写请求返回改写结果，生成请求回显命中的文档
type answeringChatClient struct {
	mu      sync.Mutex
	rewrite string
	failGen bool
}

func (c *answeringChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	system := messages[0].Content
	if strings.Contains(system, "rewrite the new question") {
		if c.rewrite != "" {
			return c.rewrite, nil
		}
		return messages[len(messages)-1].Content, nil
	}

	if c.failGen {
		return "", errors.New("generation backend down")
	}

	// 生成请求：取提示中的第一条文档作为回答
	prompt := messages[len(messages)-1].Content
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "- ") {
			return strings.TrimPrefix(line, "- "), nil
		}
	}
	return "no documents in prompt", nil
}

func (c *answeringChatClient) Ready() bool { return true }

func newTestPipeline(t *testing.T, chat ChatClient) *Pipeline {
	t.Helper()

	chunker, err := NewChunker(200, 40)
	require.NoError(t, err)

	index := NewIndex(newFakeEmbedder("paris", "tokyo", "berlin"), NewMemoryVectorStore())
	return NewPipeline(
		chunker,
		index,
		NewMemorySessionStore(),
		NewContextualizer(chat, 6),
		NewSynthesizer(chat),
		3,
	)
}

func TestPipelineIngestAndAsk(t *testing.T) {
	ctx := context.Background()
	chat := &answeringChatClient{}
	p := newTestPipeline(t, chat)

	result, err := p.Ingest(ctx, IngestRequest{
		SessionID: "s1",
		Filename:  "capitals.txt",
		Text:      "Paris is the capital of France.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, len([]rune("Paris is the capital of France.")), result.TextLength)

	answer, err := p.Ask(ctx, AskRequest{
		SessionID: "s1",
		Message:   "What is the capital of France? paris",
	})
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "Paris is the capital of France")
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "capitals.txt", answer.Sources[0].Metadata["filename"])
	assert.Equal(t, "s1", answer.Sources[0].Metadata["session_id"])

	// 问答轮次已写入会话
	info, err := p.SessionInfo(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.TurnCount)
}

func TestPipelineAskEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	chat := &answeringChatClient{}
	p := newTestPipeline(t, chat)

	answer, err := p.Ask(ctx, AskRequest{SessionID: "s1", Message: "paris anything?"})
	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
}

func TestPipelineIngestEmptyText(t *testing.T) {
	p := newTestPipeline(t, &answeringChatClient{})

	_, err := p.Ingest(context.Background(), IngestRequest{SessionID: "s1", Filename: "empty.txt"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

func TestPipelineAskEmptyMessage(t *testing.T) {
	p := newTestPipeline(t, &answeringChatClient{})

	_, err := p.Ask(context.Background(), AskRequest{SessionID: "s1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

func TestPipelineContextualizedQuestionSurfaces(t *testing.T) {
	ctx := context.Background()
	chat := &answeringChatClient{rewrite: "What is the population of paris?"}
	p := newTestPipeline(t, chat)

	_, err := p.Ingest(ctx, IngestRequest{
		SessionID: "s1",
		Filename:  "paris.txt",
		Text:      "Paris has over two million residents.",
	})
	require.NoError(t, err)

	// 第一轮建立历史
	_, err = p.Ask(ctx, AskRequest{SessionID: "s1", Message: "Tell me about paris"})
	require.NoError(t, err)

	// 第二轮的追问触发改写
	answer, err := p.Ask(ctx, AskRequest{SessionID: "s1", Message: "What is its population?"})
	require.NoError(t, err)
	assert.Equal(t, "What is the population of paris?", answer.ContextualizedQuestion)
	assert.NotEqual(t, answer.ContextualizedQuestion, "What is its population?")
}

func TestPipelineGenerationFailureKeepsHistoryClean(t *testing.T) {
	ctx := context.Background()
	chat := &answeringChatClient{}
	p := newTestPipeline(t, chat)

	_, err := p.Ingest(ctx, IngestRequest{
		SessionID: "s1",
		Filename:  "paris.txt",
		Text:      "Paris is the capital of France.",
	})
	require.NoError(t, err)

	chat.failGen = true
	_, err = p.Ask(ctx, AskRequest{SessionID: "s1", Message: "about paris?"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGenerationFailed))

	// 错误中携带已检索到的来源
	appErr := apperrors.GetAppError(err)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, details["sources"])

	// 失败的轮次不写入历史
	info, err := p.SessionInfo(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, info.TurnCount)
}

func TestPipelineSessionIsolation(t *testing.T) {
	ctx := context.Background()
	chat := &answeringChatClient{}
	p := newTestPipeline(t, chat)

	_, err := p.Ingest(ctx, IngestRequest{SessionID: "alice", Filename: "a.txt", Text: "paris notes"})
	require.NoError(t, err)

	_, err = p.Ask(ctx, AskRequest{SessionID: "alice", Message: "about paris"})
	require.NoError(t, err)
	_, err = p.Ask(ctx, AskRequest{SessionID: "bob", Message: "about tokyo"})
	require.NoError(t, err)

	aliceInfo, err := p.SessionInfo(ctx, "alice")
	require.NoError(t, err)
	bobInfo, err := p.SessionInfo(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, aliceInfo.TurnCount)
	assert.Equal(t, 1, bobInfo.TurnCount)

	require.NoError(t, p.ClearHistory(ctx, "alice"))
	aliceInfo, err = p.SessionInfo(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, aliceInfo.TurnCount)

	bobInfo, err = p.SessionInfo(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, bobInfo.TurnCount, "清空alice不影响bob")
}

func TestPipelineConcurrentAsk(t *testing.T) {
	ctx := context.Background()
	chat := &answeringChatClient{}
	p := newTestPipeline(t, chat)

	_, err := p.Ingest(ctx, IngestRequest{SessionID: "shared", Filename: "c.txt", Text: "paris tokyo berlin facts"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := p.Ask(ctx, AskRequest{
				SessionID: fmt.Sprintf("session-%d", n%2),
				Message:   "tell me about paris",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"session-0", "session-1"} {
		info, err := p.SessionInfo(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 4, info.TurnCount)
	}
}

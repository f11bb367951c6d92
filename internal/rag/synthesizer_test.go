package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuchat/backend-go/internal/errors"
)

func TestSynthesizeEmptyMatchesSkipsLLM(t *testing.T) {
	chat := &fakeChatClient{reply: "should not be used"}
	s := NewSynthesizer(chat)

	answer, sources, err := s.Synthesize(context.Background(), "anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, answer)
	assert.Empty(t, sources)
	assert.Empty(t, chat.requests)
}

func TestSynthesizeBuildsGroundedPrompt(t *testing.T) {
	chat := &fakeChatClient{reply: "Paris is the capital of France."}
	s := NewSynthesizer(chat)

	matches := []SearchMatch{
		{ChunkID: 1, Content: "Paris is the capital of France.", Metadata: map[string]string{"filename": "fr.txt"}},
		{ChunkID: 2, Content: "France is in Europe."},
	}
	answer, sources, err := s.Synthesize(context.Background(), "What is the capital of France?", matches)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)
	require.Len(t, sources, 2)
	assert.Equal(t, "fr.txt", sources[0].Metadata["filename"])

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	require.Len(t, req, 2)
	assert.Equal(t, RoleSystem, req[0].Role)
	assert.Contains(t, req[0].Content, "answers questions based on provided documents")

	prompt := req[1].Content
	assert.Contains(t, prompt, "What is the capital of France?")
	assert.Contains(t, prompt, "- Paris is the capital of France.")
	assert.Contains(t, prompt, "- France is in Europe.")
	assert.Contains(t, prompt, "using only the information from these documents")
	// 切片按检索顺序出现
	assert.Less(t,
		strings.Index(prompt, "Paris is the capital"),
		strings.Index(prompt, "France is in Europe"))
}

func TestSynthesizeFailureCarriesSources(t *testing.T) {
	chat := &fakeChatClient{err: errors.New("llm down")}
	s := NewSynthesizer(chat)

	matches := []SearchMatch{
		{ChunkID: 1, Content: "retrieved content"},
	}
	answer, sources, err := s.Synthesize(context.Background(), "question?", matches)
	require.Error(t, err)
	assert.Empty(t, answer)
	require.Len(t, sources, 1)

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGenerationFailed))
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr.Details)

	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	carried, ok := details["sources"].([]Source)
	require.True(t, ok)
	require.Len(t, carried, 1)
	assert.Equal(t, "retrieved content", carried[0].Content)
}

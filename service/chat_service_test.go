package service

import (
	"context"
	"testing"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAI struct {
	lastPayload *types.PromptPayload
	reply       string
}

func (f *fakeAI) Chat(ctx context.Context, payload *types.PromptPayload) (*types.Message, error) {
	f.lastPayload = payload
	return &types.Message{Role: "assistant", Content: f.reply}, nil
}

func (f *fakeAI) ChatStream(ctx context.Context, payload *types.PromptPayload, handler types.StreamHandler) error {
	f.lastPayload = payload
	handler(f.reply)
	return nil
}

func newChatFixture(t *testing.T) (*retrievalFixture, *fakeAI, *ChatService) {
	f := newRetrievalFixture(t)
	ai := &fakeAI{reply: "an answer"}
	chat := NewChatService(f.svc, NewContextAssembler(8000), ai, 5)
	return f, ai, chat
}

func TestChat_GroundedWithCitations(t *testing.T) {
	f, ai, chat := newChatFixture(t)
	ctx := context.Background()
	f.addDocument(t, "doc1", "Moby Dick", "the whale took the harpoon")
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))

	res, err := chat.Chat(ctx, []types.Message{{Role: "user", Content: "what about the whale?"}}, true, 5)
	require.NoError(t, err)

	assert.Equal(t, "an answer", res.Message)
	require.NotEmpty(t, res.Citations)
	assert.Equal(t, "doc1", res.Citations[0].DocumentID)
	require.NotNil(t, ai.lastPayload)
	assert.True(t, ai.lastPayload.Grounded)
	assert.Contains(t, ai.lastPayload.Context, "Moby Dick")
}

func TestChat_FallsBackWhenNoKnowledgeBase(t *testing.T) {
	f, ai, chat := newChatFixture(t)
	ctx := context.Background()
	f.addDocument(t, "doc1", "Moby Dick", "the whale took the harpoon")
	// Nothing included: the chat answers ungrounded instead of failing.

	res, err := chat.Chat(ctx, []types.Message{{Role: "user", Content: "what about the whale?"}}, true, 5)
	require.NoError(t, err)

	assert.Equal(t, "an answer", res.Message)
	assert.Empty(t, res.Citations)
	require.NotNil(t, ai.lastPayload)
	assert.False(t, ai.lastPayload.Grounded)
	assert.Empty(t, ai.lastPayload.Context)
}

func TestChat_UngroundedSkipsRetrieval(t *testing.T) {
	_, ai, chat := newChatFixture(t)

	res, err := chat.Chat(context.Background(), []types.Message{{Role: "user", Content: "hello"}}, false, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Citations)
	assert.False(t, ai.lastPayload.Grounded)
}

func TestChat_RejectsEmptyConversation(t *testing.T) {
	_, _, chat := newChatFixture(t)

	_, err := chat.Chat(context.Background(), nil, true, 5)
	assert.Error(t, err)
}

func TestChat_StreamReturnsPassages(t *testing.T) {
	f, _, chat := newChatFixture(t)
	ctx := context.Background()
	f.addDocument(t, "doc1", "Moby Dick", "the whale took the harpoon")
	require.NoError(t, f.inclusions.SetIncluded(ctx, "doc1", true))

	var streamed string
	passages, err := chat.ChatStream(ctx, []types.Message{{Role: "user", Content: "whale?"}}, true, 5, func(s string) {
		streamed += s
	})
	require.NoError(t, err)
	assert.Equal(t, "an answer", streamed)
	assert.NotEmpty(t, passages)
}

func TestBuildSystemPrompt(t *testing.T) {
	grounded := &types.PromptPayload{Grounded: true, Context: "[Moby Dick, p.1]\nCall me Ishmael."}
	prompt := buildSystemPrompt(grounded)
	assert.Contains(t, prompt, "Call me Ishmael.")
	assert.Contains(t, prompt, "excerpts")

	ungrounded := &types.PromptPayload{Grounded: false}
	assert.Equal(t, baseSystemPrompt, buildSystemPrompt(ungrounded))
}

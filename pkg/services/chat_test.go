package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio-cms/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu    sync.Mutex
	turns [][]Turn
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, turns []Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turns)
	return f.reply, f.err
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	last := f.turns[len(f.turns)-1]
	return last[len(last)-1].Content
}

func newTestChat(t *testing.T, completer Completer, history int) *ChatService {
	t.Helper()
	kb := newTestKnowledgeBase(t, nil)
	s := NewChatService(kb, completer, ChatOptions{SystemPrompt: "You are a test assistant.", History: history})
	t.Cleanup(s.Close)
	return s
}

func TestChatService_ReplyUsesKnowledge(t *testing.T) {
	llm := &fakeCompleter{reply: "I grew ARR at Cognism."}
	s := newTestChat(t, llm, 10)

	reply, err := s.Reply(context.Background(), "", "What did you achieve at Cognism?")
	require.NoError(t, err)
	assert.Equal(t, "I grew ARR at Cognism.", reply.Response)
	assert.True(t, strings.HasPrefix(reply.ConversationID, "conv-"))

	require.Len(t, llm.turns, 1)
	assert.Equal(t, "system", llm.turns[0][0].Role)
	assert.Equal(t, "You are a test assistant.", llm.turns[0][0].Content)

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "## Relevant Context from Knowledge Base\n---\nBuilt the first design team at Cognism")
	assert.NotContains(t, prompt, "Spanish cinema")
	assert.True(t, strings.HasSuffix(prompt, "## Current User Message\nuser: What did you achieve at Cognism?\n\n## Response\nassistant:"))
}

func TestChatService_KeepsRecentHistory(t *testing.T) {
	llm := &fakeCompleter{reply: "ok"}
	s := newTestChat(t, llm, 3)
	ctx := context.Background()

	first, err := s.Reply(ctx, "", "one")
	require.NoError(t, err)
	id := first.ConversationID
	for _, msg := range []string{"two", "three"} {
		_, err := s.Reply(ctx, id, msg)
		require.NoError(t, err)
	}

	prompt := llm.lastPrompt()
	assert.NotContains(t, prompt, "user: one\n")
	assert.Contains(t, prompt, "## Conversation History\nassistant: ok\nuser: two\nassistant: ok\n")
	assert.Equal(t, 1, s.Len())

	// a different conversation starts empty
	_, err = s.Reply(ctx, "other-conv", "hello")
	require.NoError(t, err)
	assert.Contains(t, llm.lastPrompt(), "## Conversation History\n\n## Current User Message")
	assert.Equal(t, 2, s.Len())
}

func TestChatService_CompletionFailureFallsBack(t *testing.T) {
	s := newTestChat(t, &fakeCompleter{err: errors.New("upstream 500")}, 10)

	reply, err := s.Reply(context.Background(), "c1", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply.Response, "technical difficulties")
	assert.Equal(t, "c1", reply.ConversationID)
}

func TestChatService_Validation(t *testing.T) {
	s := newTestChat(t, &fakeCompleter{}, 10)
	ctx := context.Background()

	_, err := s.Reply(ctx, "", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = s.Reply(ctx, "", strings.Repeat("a", maxChatMessage+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)
	_, err = s.Reply(ctx, "../etc", "hi")
	assert.ErrorIs(t, err, ErrInvalidConversation)

	disabled := newTestChat(t, nil, 10)
	assert.False(t, disabled.Enabled())
	_, err = disabled.Reply(ctx, "", "hi")
	assert.ErrorIs(t, err, ErrChatUnavailable)
}

func TestChatService_ForgetAndExpire(t *testing.T) {
	s := newTestChat(t, &fakeCompleter{reply: "ok"}, 10)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	_, err := s.Reply(ctx, "a", "hi")
	require.NoError(t, err)
	_, err = s.Reply(ctx, "b", "hi")
	require.NoError(t, err)

	assert.True(t, s.Forget("a"))
	assert.False(t, s.Forget("a"))

	clock = clock.Add(2 * time.Hour)
	s.removeIdle()
	assert.Equal(t, 0, s.Len())
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("SYS",
		[]models.KnowledgeChunk{{Content: "A"}, {Content: "B"}},
		[]models.ChatMessage{{Role: "user", Content: "q1"}, {Role: "assistant", Content: "a1"}},
		"q2")
	want := "SYS\n\n## Relevant Context from Knowledge Base\n---\nA\n\nB\n---\n\n" +
		"## Conversation History\nuser: q1\nassistant: a1\n\n" +
		"## Current User Message\nuser: q2\n\n## Response\nassistant:"
	assert.Equal(t, want, got)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"portfolio-cms/pkg/models"

	"github.com/google/uuid"
)

const maxChatMessage = 4000

var (
	ErrEmptyMessage        = errors.New("message is required")
	ErrMessageTooLong      = errors.New("message is too long")
	ErrInvalidConversation = errors.New("invalid conversation id")
)

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DefaultSystemPrompt is used when no prompt is configured.
func DefaultSystemPrompt(author string) string {
	return fmt.Sprintf(`You are %[1]s's digital assistant, speaking with recruiters and hiring managers on %[1]s's portfolio site.
Answer in the first person singular on %[1]s's behalf, using only the context provided. Be professional and concise: one or two sentences for simple questions, two or three for complex ones.
Focus on leadership, measurable business impact and results. If the context does not cover a question, say so and suggest booking a call.`, author)
}

// ChatOptions configures a ChatService.
type ChatOptions struct {
	SystemPrompt string
	// History is how many earlier messages are sent with each request.
	History int
	// TopK is how many knowledge chunks are retrieved per message.
	TopK int
	// TTL drops conversations idle for longer than this.
	TTL      time.Duration
	Fallback string
}

type conversation struct {
	messages []models.ChatMessage
	updated  time.Time
}

// ChatService answers visitor questions with a completion endpoint, grounded
// on chunks retrieved from the knowledge base. Conversations live in memory
// and are dropped once idle.
type ChatService struct {
	mu            sync.Mutex
	conversations map[string]*conversation

	kb        *KnowledgeBase
	completer Completer
	opts      ChatOptions
	now       func() time.Time
	stop      chan struct{}
	once      sync.Once
}

// NewChatService returns a chat service. completer may be nil, in which case
// Reply returns ErrChatUnavailable.
func NewChatService(kb *KnowledgeBase, completer Completer, opts ChatOptions) *ChatService {
	if opts.History <= 0 {
		opts.History = 10
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Fallback == "" {
		opts.Fallback = "I apologise, but I'm experiencing some technical difficulties. Please try again shortly."
	}
	s := &ChatService{
		conversations: make(map[string]*conversation),
		kb:            kb,
		completer:     completer,
		opts:          opts,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *ChatService) Enabled() bool { return s.completer != nil }

// Reply records message in the conversation, creating it when id is empty
// or unknown, and returns the assistant's answer. A failed completion is
// logged and answered with the fallback text.
func (s *ChatService) Reply(ctx context.Context, id, message string) (*models.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if len(message) > maxChatMessage {
		return nil, ErrMessageTooLong
	}
	if s.completer == nil {
		return nil, ErrChatUnavailable
	}
	if id == "" {
		id = "conv-" + uuid.NewString()
	} else if !conversationIDPattern.MatchString(id) {
		return nil, ErrInvalidConversation
	}

	history := s.record(id, models.ChatMessage{Role: "user", Content: message, Timestamp: s.now()})

	var chunks []models.KnowledgeChunk
	if s.kb != nil {
		var err error
		if chunks, err = s.kb.Retrieve(ctx, message, s.opts.TopK); err != nil {
			slog.WarnContext(ctx, "knowledge retrieval failed", "error", err)
		}
	}

	reply, err := s.completer.Complete(ctx, []Turn{
		{Role: "system", Content: s.opts.SystemPrompt},
		{Role: "user", Content: BuildPrompt(s.opts.SystemPrompt, chunks, history, message)},
	})
	if err != nil {
		slog.ErrorContext(ctx, "chat completion failed", "conversation", id, "error", err)
		reply = s.opts.Fallback
	}
	s.record(id, models.ChatMessage{Role: "assistant", Content: reply, Timestamp: s.now()})

	return &models.ChatReply{Response: reply, ConversationID: id}, nil
}

// record appends msg and returns the messages that preceded it, at most
// History of them.
func (s *ChatService) record(id string, msg models.ChatMessage) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		conv = &conversation{}
		s.conversations[id] = conv
	}
	history := make([]models.ChatMessage, len(conv.messages))
	copy(history, conv.messages)

	conv.messages = append(conv.messages, msg)
	if n := len(conv.messages); n > s.opts.History {
		conv.messages = append([]models.ChatMessage(nil), conv.messages[n-s.opts.History:]...)
	}
	conv.updated = s.now()
	return history
}

// BuildPrompt lays out the system prompt, retrieved context, earlier turns
// and the new message as a single user prompt.
func BuildPrompt(system string, chunks []models.KnowledgeChunk, history []models.ChatMessage, message string) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\n## Relevant Context from Knowledge Base\n---\n")
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Content)
	}
	b.WriteString("\n---\n\n## Conversation History\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\n## Current User Message\nuser: %s\n\n## Response\nassistant:", message)
	return b.String()
}

// Forget drops a conversation and reports whether it existed.
func (s *ChatService) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[id]
	delete(s.conversations, id)
	return ok
}

// Len reports the number of live conversations.
func (s *ChatService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *ChatService) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeIdle()
		}
	}
}

func (s *ChatService) removeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.opts.TTL)
	for id, c := range s.conversations {
		if c.updated.Before(cutoff) {
			delete(s.conversations, id)
		}
	}
}

func (s *ChatService) Close() {
	s.once.Do(func() { close(s.stop) })
}

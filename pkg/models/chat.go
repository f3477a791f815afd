package models

import "time"

// Knowledge categories used to boost retrieval scores.
const (
	CategoryBio         = "bio"
	CategoryAchievement = "achievement"
	CategoryMethodology = "methodology"
	CategoryCaseStudy   = "case_study"
	CategoryPhilosophy  = "philosophy"
	CategoryTechnical   = "technical"
)

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// KnowledgeChunk is a piece of background text the chat assistant may cite.
type KnowledgeChunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// ChatReply is returned by the chat endpoint.
type ChatReply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
}

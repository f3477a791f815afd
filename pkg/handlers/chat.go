package handlers

import (
	"net/http"
	"strings"

	"portfolio-cms/pkg/models"

	"github.com/gin-gonic/gin"
)

// Chat answers a visitor message, continuing conversationId when given.
func (h *Handler) Chat(c *gin.Context) {
	var req struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversationId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, "Message is required")
		return
	}
	reply, err := h.Chat.Reply(c.Request.Context(), req.ConversationID, req.Message)
	if err != nil {
		h.Metrics.chatMessages.WithLabelValues("rejected").Inc()
		failErr(c, err, "")
		return
	}
	h.Metrics.chatMessages.WithLabelValues("answered").Inc()
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	h.Chat.Forget(c.Param("conversationId"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ListKnowledge(c *gin.Context) {
	chunks, err := h.Knowledge.List(c.Request.Context())
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

func (h *Handler) PutKnowledge(c *gin.Context) {
	var req models.KnowledgeChunk
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Content is required")
		return
	}
	req.ID = c.Param("id")
	chunk, err := h.Knowledge.Put(c.Request.Context(), req)
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chunk": chunk})
}

func (h *Handler) DeleteKnowledge(c *gin.Context) {
	if err := h.Knowledge.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, "Chunk not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

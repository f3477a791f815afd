// Package handlers exposes the CMS over HTTP with gin.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"portfolio-cms/pkg/services"
	"portfolio-cms/pkg/storage"

	"github.com/gin-gonic/gin"
)

// Options carries the settings handlers need beyond their services.
type Options struct {
	SessionSecret  string
	SessionTTL     time.Duration
	ImportToken    string
	MaxUploadBytes int64
	CORSOrigins    []string

	// Forwarded client IP headers are honoured only from these proxies, or
	// from the named platform ("cloudflare", "google", "flyio").
	TrustedProxies  []string
	TrustedPlatform string

	// Github is nil when GitHub login is not configured.
	Github      *services.GithubAuth
	GithubLogin string
}

// Handler holds the services behind every route.
type Handler struct {
	Articles  *services.ArticleStore
	CV        *services.CVStore
	Media     *services.MediaStore
	Sessions  *services.SessionManager
	Gate      *services.CaseStudyGate
	Converter *services.Converter
	Knowledge *services.KnowledgeBase
	Chat      *services.ChatService
	Scraper   *services.JobScraper
	Jobs      *services.JobBoard
	Limiter   *RateLimiter
	Throttle  *RequestLimiter
	Metrics   *Metrics
	Storage   storage.Store
	Options   Options
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// failErr maps service errors to a status code. notFound is the message for
// missing resources; server errors are logged and reported generically.
func failErr(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, services.ErrInvalidSlug):
		fail(c, http.StatusBadRequest, "Invalid slug")
	case errors.Is(err, services.ErrInvalidFilename):
		fail(c, http.StatusBadRequest, "Invalid filename")
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, "Valid status is required")
	case errors.Is(err, services.ErrEmptyContent):
		fail(c, http.StatusBadRequest, "Content is required")
	case errors.Is(err, services.ErrMissingFrontMatter):
		fail(c, http.StatusBadRequest, "Invalid markdown format - missing frontmatter")
	case errors.Is(err, services.ErrEmptyDocument):
		fail(c, http.StatusBadRequest, "No article content found")
	case errors.Is(err, services.ErrUnsupportedMedia):
		fail(c, http.StatusBadRequest, "Only image uploads are allowed")
	case errors.Is(err, services.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, services.ErrInvalidCategory):
		fail(c, http.StatusBadRequest, "Invalid category")
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, "Message is required")
	case errors.Is(err, services.ErrMessageTooLong):
		fail(c, http.StatusRequestEntityTooLarge, "Message is too long")
	case errors.Is(err, services.ErrInvalidConversation):
		fail(c, http.StatusBadRequest, "Invalid conversation id")
	case errors.Is(err, services.ErrChatUnavailable):
		fail(c, http.StatusServiceUnavailable, "Chat assistant is not configured")
	case errors.Is(err, services.ErrInvalidURL):
		fail(c, http.StatusBadRequest, "URL is required")
	case errors.Is(err, services.ErrNoJobFound):
		fail(c, http.StatusUnprocessableEntity, "Could not extract job data from URL")
	case errors.Is(err, services.ErrFetchFailed):
		slog.WarnContext(c.Request.Context(), "job fetch failed", "error", err)
		fail(c, http.StatusBadGateway, "Could not fetch URL")
	case errors.Is(err, services.ErrMissingJobUser):
		fail(c, http.StatusBadRequest, "user_id and job are required")
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"route", c.FullPath(), "request_id", c.GetString(requestIDKey), "error", err)
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

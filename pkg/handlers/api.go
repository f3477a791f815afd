package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"storage":   h.Storage.Name(),
		"chat":      h.Chat != nil && h.Chat.Enabled(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.Options.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Options.MaxUploadBytes)
	}
}

// ImportArticle stores an uploaded Markdown file as a draft. The form carries
// the file and a JSON "metadata" field.
func (h *Handler) ImportArticle(c *gin.Context) {
	h.limitBody(c)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}

	var meta models.DraftMetadata
	if err := json.Unmarshal([]byte(c.PostForm("metadata")), &meta); err != nil {
		fail(c, http.StatusBadRequest, "Invalid metadata format")
		return
	}

	f, err := header.Open()
	if err != nil {
		failErr(c, err, "")
		return
	}
	defer f.Close()
	markdown, err := io.ReadAll(f)
	if err != nil {
		failErr(c, err, "")
		return
	}

	result, err := h.Articles.Import(c.Request.Context(), meta, markdown)
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Metrics.imports.Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "article": result})
}

// ConvertArticle converts captured page HTML to Markdown. With ?import=true
// the result is also stored as a draft.
func (h *Handler) ConvertArticle(c *gin.Context) {
	h.limitBody(c)

	var in services.ConvertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.HTML == "" {
		fail(c, http.StatusBadRequest, "html is required")
		return
	}

	result, err := h.Converter.Convert(c.Request.Context(), in)
	if err != nil {
		h.Metrics.conversions.WithLabelValues("error").Inc()
		failErr(c, err, "")
		return
	}
	if !result.Validation.Valid {
		h.Metrics.conversions.WithLabelValues("invalid").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error":      "Article failed validation",
			"validation": result.Validation,
		})
		return
	}
	h.Metrics.conversions.WithLabelValues("ok").Inc()

	resp := gin.H{
		"success":    true,
		"markdown":   result.Markdown,
		"article":    result.Article,
		"validation": result.Validation,
	}

	if c.Query("import") == "true" {
		a := result.Article
		meta := models.DraftMetadata{
			Title:            a.Title,
			Slug:             a.Slug,
			Excerpt:          services.SmartExcerpt(a.Body, 200),
			Tags:             a.Tags,
			Author:           a.Author,
			AuthorProfileURL: a.AuthorProfileURL,
			OriginalURL:      a.OriginalURL,
			PublishDate:      a.PublishDate,
			ReadingTime:      models.ReadingTime(models.ParseMinutes(a.ReadingTime)),
		}
		imported, err := h.Articles.Import(c.Request.Context(), meta, []byte(result.Markdown))
		if err != nil {
			failErr(c, err, "")
			return
		}
		h.Metrics.imports.Inc()
		resp["draft"] = imported
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListDrafts(c *gin.Context) {
	drafts, err := h.Articles.ListDrafts(c.Request.Context())
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

func (h *Handler) GetDraft(c *gin.Context) {
	draft, err := h.Articles.GetDraft(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err, "Draft not found")
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *Handler) UpdateDraftStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Valid status is required")
		return
	}
	if err := h.Articles.UpdateDraftStatus(c.Request.Context(), c.Param("slug"), req.Status); err != nil {
		failErr(c, err, "Draft not found")
		return
	}

	msg := fmt.Sprintf("Draft status updated to %s", req.Status)
	if req.Status == models.StatusPublished {
		h.Metrics.published.Inc()
		msg = "Article published successfully"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) DeleteDraft(c *gin.Context) {
	if err := h.Articles.DeleteDraft(c.Request.Context(), c.Param("slug")); err != nil {
		failErr(c, err, "Draft not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Draft deleted successfully"})
}

func (h *Handler) SaveArticle(c *gin.Context) {
	var req models.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Content and filename are required")
		return
	}
	result, err := h.Articles.Save(c.Request.Context(), req)
	if err != nil {
		failErr(c, err, "")
		return
	}

	verb := "saved"
	if req.IsEdit {
		verb = "updated"
	}
	kind := "Draft"
	if result.Published {
		kind = "Article"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s %s successfully", kind, verb),
		"slug":    result.Slug,
	})
}

func (h *Handler) ListPublished(c *gin.Context) {
	articles, err := h.Articles.ListPublished(c.Request.Context())
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *Handler) GetPublished(c *gin.Context) {
	get := h.Articles.GetPublished
	if c.Query("format") == "html" {
		get = h.Articles.RenderPublished
	}
	article, err := get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err, "Article not found")
		return
	}
	c.JSON(http.StatusOK, article)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListMedia(c *gin.Context) {
	files, err := h.Media.List(c.Request.Context())
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *Handler) UploadMedia(c *gin.Context) {
	h.limitBody(c)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}

	info, err := h.Media.SaveMediaFile(c.Request.Context(), file)
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Metrics.uploadBytes.Add(float64(info.Size))
	c.JSON(http.StatusOK, gin.H{"success": true, "file": info})
}

func (h *Handler) DeleteMedia(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		fail(c, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.Media.DeleteMediaFile(c.Request.Context(), req.Name); err != nil {
		failErr(c, err, "File not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ServeMediaRaw(c *gin.Context) {
	data, contentType, err := h.Media.Open(c.Request.Context(), c.Param("name"))
	if err != nil {
		failErr(c, err, "File not found")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, data)
}

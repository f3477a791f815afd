package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCV(c *gin.Context) {
	doc, err := h.CV.Get(c.Request.Context())
	if err != nil {
		failErr(c, err, "CV not found")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) SaveCV(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Content is required")
		return
	}
	result, err := h.CV.Save(c.Request.Context(), req.Content)
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Metrics.cvSaves.Inc()
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListCVVersions(c *gin.Context) {
	versions, err := h.CV.ListVersions(c.Request.Context())
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *Handler) GetCVVersion(c *gin.Context) {
	filename := c.Param("filename")
	content, err := h.CV.GetVersion(c.Request.Context(), filename)
	if err != nil {
		failErr(c, err, "Version not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "filename": filename})
}

func (h *Handler) DiffCVVersion(c *gin.Context) {
	filename := c.Param("filename")
	diff, err := h.CV.DiffVersion(c.Request.Context(), filename)
	if err != nil {
		failErr(c, err, "Version not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": filename, "diff": diff, "changed": diff != ""})
}

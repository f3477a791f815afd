package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"portfolio-cms/pkg/models"

	"github.com/gin-gonic/gin"
)

// ScrapeJob fetches a job listing URL and returns what it found without
// saving it.
func (h *Handler) ScrapeJob(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, "URL is required")
		return
	}
	job, err := h.Scraper.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.Jobs.List(c.Request.Context())
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) SaveJob(c *gin.Context) {
	var req struct {
		UserID string      `json:"user_id"`
		Job    *models.Job `json:"job"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Job == nil {
		fail(c, http.StatusBadRequest, "user_id and job are required")
		return
	}
	job, err := h.Jobs.Save(c.Request.Context(), req.UserID, *req.Job)
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Metrics.jobsSaved.Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "job_id": job.ID, "job": job, "message": "Job saved successfully"})
}

func (h *Handler) SaveJobs(c *gin.Context) {
	var req struct {
		UserID string       `json:"user_id"`
		Jobs   []models.Job `json:"jobs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Jobs == nil {
		fail(c, http.StatusBadRequest, "user_id and jobs array are required")
		return
	}
	jobs, err := h.Jobs.SaveBatch(c.Request.Context(), req.UserID, req.Jobs)
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Metrics.jobsSaved.Add(float64(len(jobs)))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    jobs,
		"message": fmt.Sprintf("%d jobs saved successfully", len(jobs)),
	})
}

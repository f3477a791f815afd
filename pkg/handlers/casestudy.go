package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CaseStudyStatus(c *gin.Context) {
	slug := c.Param("slug")
	c.JSON(http.StatusOK, gin.H{"slug": slug, "protected": h.Gate.IsProtected(slug)})
}

// UnlockCaseStudy checks a case-study password. Wrong passwords count
// towards the same per-IP limit as admin logins.
func (h *Handler) UnlockCaseStudy(c *gin.Context) {
	ip := GetRealIP(c)
	if h.Limiter.IsBlocked(ip) {
		LogFailedAuth(c, ip, "ip temporarily blocked", true)
		fail(c, http.StatusTooManyRequests, "Too many failed attempts, try again later")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "password is required")
		return
	}

	slug := c.Param("slug")
	if !h.Gate.VerifyPassword(slug, req.Password) {
		LogFailedAuth(c, ip, "wrong case study password", h.Limiter.RecordFailure(ip))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "unlocked": false, "error": "Incorrect password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unlocked": true})
}

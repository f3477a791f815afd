package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

var platforms = map[string]string{
	"cloudflare": gin.PlatformCloudflare,
	"google":     gin.PlatformGoogleAppEngine,
	"flyio":      gin.PlatformFlyIO,
}

// configureProxyTrust makes c.ClientIP honour forwarding headers only from
// the given proxies or platform. gin trusts every peer by default.
func configureProxyTrust(r *gin.Engine, proxies []string, platform string) error {
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		_ = r.SetTrustedProxies(nil)
		return fmt.Errorf("trusted proxies: %w", err)
	}
	if platform == "" {
		return nil
	}
	header, ok := platforms[strings.ToLower(platform)]
	if !ok {
		return fmt.Errorf("unknown trusted platform %q", platform)
	}
	r.TrustedPlatform = header
	return nil
}

// NewRouter wires every route onto a new gin engine.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	if err := configureProxyTrust(r, h.Options.TrustedProxies, h.Options.TrustedPlatform); err != nil {
		logger.Warn("forwarded client IP headers will be ignored", "error", err)
	}
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger), h.Metrics.Middleware(), CORS(h.Options.CORSOrigins))

	store := cookie.NewStore([]byte(h.Options.SessionSecret))
	store.Options(h.cookieOptions())
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/api/health", h.Health)
	r.GET("/media/:name", h.ServeMediaRaw)

	articles := r.Group("/api/articles")
	{
		articles.POST("/import", h.ImportAuth, h.ImportArticle)
		articles.POST("/convert", h.ImportAuth, h.ConvertArticle)
		articles.GET("/drafts", h.ListDrafts)
		articles.GET("/drafts/:slug", h.GetDraft)
		articles.GET("/published", h.ListPublished)
		articles.GET("/published/:slug", h.GetPublished)

		authorized := articles.Group("")
		authorized.Use(h.AuthRequired)
		authorized.PATCH("/drafts/:slug/status", h.UpdateDraftStatus)
		authorized.DELETE("/drafts/:slug", h.DeleteDraft)
		authorized.POST("/save", h.SaveArticle)
	}

	admin := r.Group("/api/admin")
	{
		admin.POST("/login", h.Login)
		admin.GET("/github/login", h.GithubLogin)
		admin.GET("/github/callback", h.AuthCallback)

		authorized := admin.Group("")
		authorized.Use(h.AuthRequired)
		authorized.POST("/logout", h.Logout)
		authorized.GET("/session", h.Session)

		authorized.GET("/cv", h.GetCV)
		authorized.POST("/cv", h.SaveCV)
		authorized.GET("/cv/versions", h.ListCVVersions)
		authorized.GET("/cv/versions/:filename", h.GetCVVersion)
		authorized.GET("/cv/versions/:filename/diff", h.DiffCVVersion)

		authorized.GET("/media", h.ListMedia)
		authorized.POST("/media", h.UploadMedia)
		authorized.DELETE("/media", h.DeleteMedia)

		authorized.GET("/knowledge", h.ListKnowledge)
		authorized.PUT("/knowledge/:id", h.PutKnowledge)
		authorized.DELETE("/knowledge/:id", h.DeleteKnowledge)
	}

	cases := r.Group("/api/case-studies")
	{
		cases.GET("/:slug", h.CaseStudyStatus)
		cases.POST("/:slug/unlock", h.UnlockCaseStudy)
	}

	chat := r.Group("/api/chat")
	{
		chat.POST("", h.Throttle.Middleware(), h.Chat)
		chat.DELETE("/:conversationId", h.DeleteConversation)
	}

	jobs := r.Group("/api")
	jobs.Use(h.AuthRequired)
	{
		jobs.POST("/scrape", h.ScrapeJob)
		jobs.GET("/jobs", h.ListJobs)
		jobs.POST("/jobs/save", h.SaveJob)
		jobs.POST("/jobs/batch", h.SaveJobs)
	}

	return r
}

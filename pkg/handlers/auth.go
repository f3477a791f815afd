package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionName     = "portfolio_session"
	sessionTokenKey = "token"
	oauthStateKey   = "oauth_state"
	userKey         = "admin_user"
)

// requestToken returns the bearer token, falling back to the cookie session.
// fromCookie reports which one it used.
func requestToken(c *gin.Context) (token string, fromCookie bool) {
	if token := services.BearerToken(c.GetHeader("Authorization")); token != "" {
		return token, false
	}
	if v, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// checkCookieWrite guards state-changing requests authenticated only by the
// session cookie. The request must come from this host or a configured
// origin, and a body must be JSON or multipart. It aborts and returns false
// otherwise.
func (h *Handler) checkCookieWrite(c *gin.Context) bool {
	if safeMethod(c.Request.Method) {
		return true
	}
	if origin := c.GetHeader("Origin"); origin != "" {
		if !h.allowedOrigin(c, origin) {
			LogFailedAuth(c, GetRealIP(c), "cross-site request from "+origin, false)
			fail(c, http.StatusForbidden, "Cross-site request rejected")
			return false
		}
	} else if c.GetHeader("Sec-Fetch-Site") == "cross-site" {
		LogFailedAuth(c, GetRealIP(c), "cross-site request", false)
		fail(c, http.StatusForbidden, "Cross-site request rejected")
		return false
	}
	if c.Request.ContentLength != 0 {
		switch c.ContentType() {
		case gin.MIMEJSON, gin.MIMEMultipartPOSTForm:
		default:
			fail(c, http.StatusUnsupportedMediaType, "Content-Type must be application/json or multipart/form-data")
			return false
		}
	}
	return true
}

func (h *Handler) allowedOrigin(c *gin.Context, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, c.Request.Host) {
		return true
	}
	origin = strings.TrimSuffix(origin, "/")
	for _, o := range h.Options.CORSOrigins {
		if o != "*" && strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
			return true
		}
	}
	return false
}

// AuthRequired rejects requests without a live admin session.
func (h *Handler) AuthRequired(c *gin.Context) {
	ip := GetRealIP(c)
	token, fromCookie := requestToken(c)
	if token == "" {
		LogFailedAuth(c, ip, "no token provided", false)
		fail(c, http.StatusUnauthorized, "No token provided")
		return
	}
	if fromCookie && !h.checkCookieWrite(c) {
		return
	}
	sess, ok := h.Sessions.Validate(token)
	if !ok {
		LogFailedAuth(c, ip, "invalid or expired token", false)
		fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	c.Set(userKey, sess)
	c.Next()
}

// ImportAuth guards imports when an import token is configured. An admin
// session is accepted too.
func (h *Handler) ImportAuth(c *gin.Context) {
	if h.Options.ImportToken == "" {
		c.Next()
		return
	}
	if c.FullPath() == "/api/articles/convert" && c.Query("import") != "true" {
		c.Next()
		return
	}
	token, fromCookie := requestToken(c)
	if token != "" && !fromCookie && subtle.ConstantTimeCompare([]byte(token), []byte(h.Options.ImportToken)) == 1 {
		c.Next()
		return
	}
	if _, ok := h.Sessions.Validate(token); ok {
		if fromCookie && !h.checkCookieWrite(c) {
			return
		}
		c.Next()
		return
	}
	LogFailedAuth(c, GetRealIP(c), "invalid import token", false)
	fail(c, http.StatusUnauthorized, "Invalid or expired token")
}

func currentSession(c *gin.Context) models.Session {
	sess, _ := c.MustGet(userKey).(models.Session)
	return sess
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	ip := GetRealIP(c)
	if h.Limiter.IsBlocked(ip) {
		LogFailedAuth(c, ip, "ip temporarily blocked", true)
		h.Metrics.logins.WithLabelValues("blocked").Inc()
		fail(c, http.StatusTooManyRequests, "Too many failed attempts, try again later")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	sess, err := h.Sessions.Login(req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		blocked := h.Limiter.RecordFailure(ip)
		LogFailedAuth(c, ip, "invalid credentials", blocked)
		h.Metrics.logins.WithLabelValues("failure").Inc()
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Limiter.Reset(ip)
	h.Metrics.logins.WithLabelValues("success").Inc()
	h.startCookieSession(c, sess)

	slog.InfoContext(c.Request.Context(), "admin login", "user", sess.Username, "ip", ip)
	c.JSON(http.StatusOK, gin.H{
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
		"user":      gin.H{"username": sess.Username},
	})
}

func (h *Handler) startCookieSession(c *gin.Context, sess models.Session) {
	cookie := sessions.Default(c)
	cookie.Set(sessionTokenKey, sess.Token)
	if err := cookie.Save(); err != nil {
		slog.WarnContext(c.Request.Context(), "could not save session cookie", "error", err)
	}
}

func (h *Handler) Logout(c *gin.Context) {
	h.Sessions.Logout(currentSession(c).Token)

	cookie := sessions.Default(c)
	cookie.Clear()
	opts := h.cookieOptions()
	opts.MaxAge = -1
	cookie.Options(opts)
	_ = cookie.Save()

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Session(c *gin.Context) {
	sess := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"user":      gin.H{"username": sess.Username},
		"expiresAt": sess.ExpiresAt,
	})
}

// cookieOptions is Strict unless GitHub login is on. The OAuth callback is a
// cross-site navigation and needs the Lax cookie to carry its state.
func (h *Handler) cookieOptions() sessions.Options {
	ttl := h.Options.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	sameSite := http.SameSiteStrictMode
	if h.githubEnabled() {
		sameSite = http.SameSiteLaxMode
	}
	return sessions.Options{Path: "/", MaxAge: int(ttl.Seconds()), HttpOnly: true, SameSite: sameSite}
}

func (h *Handler) githubEnabled() bool {
	return h.Options.Github != nil && h.Options.GithubLogin != ""
}

func (h *Handler) GithubLogin(c *gin.Context) {
	if !h.githubEnabled() {
		fail(c, http.StatusNotFound, "GitHub login is not configured")
		return
	}
	state, err := randomState()
	if err != nil {
		failErr(c, err, "")
		return
	}
	cookie := sessions.Default(c)
	cookie.Set(oauthStateKey, state)
	if err := cookie.Save(); err != nil {
		failErr(c, err, "")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.Options.Github.AuthCodeURL(state))
}

func (h *Handler) AuthCallback(c *gin.Context) {
	if !h.githubEnabled() {
		fail(c, http.StatusNotFound, "GitHub login is not configured")
		return
	}
	ip := GetRealIP(c)
	if h.Limiter.IsBlocked(ip) {
		LogFailedAuth(c, ip, "ip temporarily blocked", true)
		fail(c, http.StatusTooManyRequests, "Too many failed attempts, try again later")
		return
	}

	cookie := sessions.Default(c)
	want, _ := cookie.Get(oauthStateKey).(string)
	cookie.Delete(oauthStateKey)
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(c.Query("state"))) != 1 {
		LogFailedAuth(c, ip, "oauth state mismatch", h.Limiter.RecordFailure(ip))
		_ = cookie.Save()
		fail(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	login, err := h.Options.Github.Login(c.Request.Context(), c.Query("code"))
	if err != nil {
		slog.WarnContext(c.Request.Context(), "github login failed", "error", err)
		_ = cookie.Save()
		fail(c, http.StatusUnauthorized, "OAuth exchange failed")
		return
	}
	if login != h.Options.GithubLogin {
		LogFailedAuth(c, ip, "github user not allowed: "+login, h.Limiter.RecordFailure(ip))
		h.Metrics.logins.WithLabelValues("failure").Inc()
		_ = cookie.Save()
		fail(c, http.StatusForbidden, "GitHub account is not an admin")
		return
	}

	sess, err := h.Sessions.Open(login)
	if err != nil {
		failErr(c, err, "")
		return
	}
	h.Limiter.Reset(ip)
	h.Metrics.logins.WithLabelValues("success").Inc()
	h.startCookieSession(c, sess)
	slog.InfoContext(c.Request.Context(), "admin login via github", "user", login, "ip", ip)
	c.Redirect(http.StatusFound, "/admin")
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const DefaultAdminPassword = "change-this-password"

var (
	ListenAddr  = ":3001"
	MetricsPort = 0
	CORSOrigins = []string{"*"}

	// Proxy trust. Forwarded client IP headers are ignored unless the peer
	// is in TrustedProxies or TrustedPlatform names a known CDN.
	TrustedProxies  = []string{}
	TrustedPlatform = ""

	// Storage settings
	ContentRoot    = "./content"
	StorageBackend = "fs"
	S3Bucket       = ""
	S3Region       = "us-east-1"
	S3Endpoint     = ""
	S3AccessKey    = ""
	S3SecretKey    = ""
	S3Prefix       = ""

	// Admin settings
	AdminUsername     = "admin"
	AdminPassword     = DefaultAdminPassword
	AdminPasswordHash = ""
	AdminGithubLogin  = ""
	SessionSecret     = ""
	SessionTTLHours   = 24
	LoginMaxFailures  = 5
	LoginBlockSeconds = 60
	ImportToken       = ""

	// Content settings
	DefaultAuthor  = "David Phillip"
	CVMaxVersions  = 0
	MaxUploadBytes = int64(10 << 20)

	// Cache settings
	CacheConcurrency = 20

	// Chat assistant
	LLMBaseURL       = ""
	LLMAPIKey        = ""
	LLMModel         = "llama-3.3-70b-versatile"
	LLMTemperature   = 0.7
	EmbeddingBaseURL = ""
	EmbeddingModel   = "nomic-embed-text"
	ChatHistory      = 10
	ChatTTLMinutes   = 60
	ChatPerMinute    = 20
	ChatBurst        = 5

	// Case study gate
	CaseStudyGlobalPassword = ""
	CaseStudyProtected      = []string{}
	CaseStudyPasswords      = map[string]string{}
)

var OauthConf *oauth2.Config

// LoadDotEnv merges a .env file into the environment. It runs before the
// logger is configured so LOG_LEVEL may come from the file.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
}

func Init() {
	// Helper to get env with default
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	getInt := func(key string, fallback int) int {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			slog.Warn("ignoring non-numeric setting", "key", key, "value", v)
		}
		return fallback
	}

	ListenAddr = ":" + getEnv("PORT", "3001")
	MetricsPort = getInt("METRICS_PORT", 0)
	CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))
	TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))
	TrustedPlatform = strings.ToLower(getEnv("TRUSTED_PLATFORM", ""))

	ContentRoot = getEnv("CONTENT_ROOT", "./content")
	StorageBackend = getEnv("STORAGE_BACKEND", "fs")
	S3Bucket = getEnv("S3_BUCKET", "")
	S3Region = getEnv("S3_REGION", "us-east-1")
	S3Endpoint = getEnv("S3_ENDPOINT", "")
	S3AccessKey = getEnv("S3_ACCESS_KEY", "")
	S3SecretKey = getEnv("S3_SECRET_KEY", "")
	S3Prefix = getEnv("S3_PREFIX", "")

	AdminUsername = getEnv("ADMIN_USERNAME", "admin")
	AdminPassword = getEnv("ADMIN_PASSWORD", DefaultAdminPassword)
	AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", "")
	AdminGithubLogin = getEnv("ADMIN_GITHUB_LOGIN", "")
	SessionTTLHours = getInt("SESSION_TTL_HOURS", 24)
	LoginMaxFailures = getInt("LOGIN_MAX_FAILURES", 5)
	LoginBlockSeconds = getInt("LOGIN_BLOCK_SECONDS", 60)
	ImportToken = getEnv("IMPORT_TOKEN", "")

	SessionSecret = os.Getenv("SESSION_SECRET")
	if SessionSecret == "" {
		SessionSecret = randomSecret()
		slog.Warn("SESSION_SECRET not set, cookie sessions will not survive a restart")
	}

	DefaultAuthor = getEnv("DEFAULT_AUTHOR", "David Phillip")
	CVMaxVersions = getInt("CV_MAX_VERSIONS", 0)
	MaxUploadBytes = int64(getInt("MAX_UPLOAD_BYTES", 10<<20))
	CacheConcurrency = getInt("CACHE_CONCURRENCY", 20)

	LLMBaseURL = strings.TrimSuffix(getEnv("LLM_BASE_URL", ""), "/")
	LLMAPIKey = getEnv("LLM_API_KEY", "")
	LLMModel = getEnv("LLM_MODEL", "llama-3.3-70b-versatile")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			LLMTemperature = f
		} else {
			slog.Warn("ignoring non-numeric setting", "key", "LLM_TEMPERATURE", "value", v)
		}
	}
	EmbeddingBaseURL = strings.TrimSuffix(getEnv("EMBEDDING_BASE_URL", LLMBaseURL), "/")
	EmbeddingModel = getEnv("EMBEDDING_MODEL", "nomic-embed-text")
	ChatHistory = getInt("CHAT_HISTORY", 10)
	ChatTTLMinutes = getInt("CHAT_TTL_MINUTES", 60)
	ChatPerMinute = getInt("CHAT_RATE_PER_MINUTE", 20)
	ChatBurst = getInt("CHAT_BURST", 5)

	CaseStudyGlobalPassword = getEnv("CASE_STUDY_GLOBAL_PASSWORD", "")
	CaseStudyProtected = splitList(os.Getenv("CASE_STUDY_PROTECTED"))
	CaseStudyPasswords = parsePasswords(os.Getenv("CASE_STUDY_PASSWORDS"))

	OauthConf = nil
	if id := os.Getenv("GITHUB_CLIENT_ID"); id != "" {
		OauthConf = &oauth2.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL(),
		}
	}
}

// SetListenAddr overrides the listen address after Init and keeps the
// derived OAuth redirect URL in step with it.
func SetListenAddr(addr string) {
	ListenAddr = addr
	if OauthConf != nil {
		OauthConf.RedirectURL = redirectURL()
	}
}

func redirectURL() string {
	if v := os.Getenv("GITHUB_REDIRECT_URL"); v != "" {
		return v
	}
	return GetAppURL() + "/api/admin/github/callback"
}

func GetAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost" + ListenAddr
	}
	return strings.TrimSuffix(appURL, "/")
}

// UsingDefaultPassword reports whether the admin account still has the
// shipped password.
func UsingDefaultPassword() bool {
	return AdminPasswordHash == "" && AdminPassword == DefaultAdminPassword
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePasswords reads "slug:password,slug2:password2".
func parsePasswords(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitList(raw) {
		slug, pw, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(slug) == "" {
			continue
		}
		out[strings.TrimSpace(slug)] = pw
	}
	return out
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "insecure-fallback-secret"
	}
	return hex.EncodeToString(b)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"portfolio-cms/pkg/config"
	"portfolio-cms/pkg/handlers"
	"portfolio-cms/pkg/services"
	"portfolio-cms/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var (
	serveListenAddr  string
	serveMetricsPort int
	serveContentRoot string
)

func init() {
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Listen address (default from PORT or :3001)")
	serveCmd.Flags().IntVar(&serveMetricsPort, "metrics-port", 0, "Port for Prometheus metrics (disabled if 0)")
	serveCmd.Flags().StringVar(&serveContentRoot, "content-root", "", "Directory for the fs storage backend")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListenAddr != "" {
		config.SetListenAddr(serveListenAddr)
	}
	if serveMetricsPort != 0 {
		config.MetricsPort = serveMetricsPort
	}
	if serveContentRoot != "" {
		config.ContentRoot = serveContentRoot
	}
	if config.UsingDefaultPassword() {
		slog.Warn("admin password is the default, set ADMIN_PASSWORD_HASH or ADMIN_PASSWORD")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}

	h := newHandler(store)
	defer h.Sessions.Close()
	defer h.Limiter.Close()
	defer h.Throttle.Close()
	defer h.Chat.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           handlers.NewRouter(h, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h.Metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", config.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("metrics listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "storage", store.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.New(ctx, storage.Config{
		Backend:     config.StorageBackend,
		Root:        config.ContentRoot,
		S3Bucket:    config.S3Bucket,
		S3Region:    config.S3Region,
		S3Endpoint:  config.S3Endpoint,
		S3AccessKey: config.S3AccessKey,
		S3SecretKey: config.S3SecretKey,
		S3Prefix:    config.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func newHandler(store storage.Store) *handlers.Handler {
	sanitizer := services.NewSanitizer()
	sessionTTL := time.Duration(config.SessionTTLHours) * time.Hour

	// A nil *LLMClient must not end up inside the interfaces.
	var (
		completer services.Completer
		embedder  services.Embedder
	)
	if llm := services.NewLLMClient(services.LLMConfig{
		BaseURL:        config.LLMBaseURL,
		APIKey:         config.LLMAPIKey,
		Model:          config.LLMModel,
		Temperature:    config.LLMTemperature,
		EmbeddingURL:   config.EmbeddingBaseURL,
		EmbeddingModel: config.EmbeddingModel,
	}); llm != nil {
		completer, embedder = llm, llm
	} else {
		slog.Info("chat assistant disabled, LLM_BASE_URL is not set")
	}
	knowledge := services.NewKnowledgeBase(store, embedder)

	h := &handlers.Handler{
		Articles: services.NewArticleStore(store, services.ArticleOptions{
			DefaultAuthor: config.DefaultAuthor,
			Concurrency:   config.CacheConcurrency,
		}),
		CV:    services.NewCVStore(store, config.CVMaxVersions),
		Media: services.NewMediaStore(store, config.MaxUploadBytes),
		Sessions: services.NewSessionManager(services.Credentials{
			Username:     config.AdminUsername,
			Password:     config.AdminPassword,
			PasswordHash: config.AdminPasswordHash,
		}, sessionTTL),
		Gate:      services.NewCaseStudyGate(config.CaseStudyGlobalPassword, config.CaseStudyProtected, config.CaseStudyPasswords),
		Converter: services.NewConverter(sanitizer),
		Knowledge: knowledge,
		Chat: services.NewChatService(knowledge, completer, services.ChatOptions{
			SystemPrompt: services.DefaultSystemPrompt(config.DefaultAuthor),
			History:      config.ChatHistory,
			TTL:          time.Duration(config.ChatTTLMinutes) * time.Minute,
		}),
		Scraper:  services.NewJobScraper(15*time.Second, false),
		Jobs:     services.NewJobBoard(store),
		Limiter:  handlers.NewRateLimiter(config.LoginMaxFailures, time.Duration(config.LoginBlockSeconds)*time.Second),
		Throttle: handlers.NewRequestLimiter(config.ChatPerMinute, config.ChatBurst),
		Metrics:  handlers.NewMetrics(),
		Storage:  store,
		Options: handlers.Options{
			SessionSecret:   config.SessionSecret,
			SessionTTL:      sessionTTL,
			ImportToken:     config.ImportToken,
			MaxUploadBytes:  config.MaxUploadBytes,
			CORSOrigins:     config.CORSOrigins,
			TrustedProxies:  config.TrustedProxies,
			TrustedPlatform: config.TrustedPlatform,
			Github:          services.NewGithubAuth(config.OauthConf),
			GithubLogin:     config.AdminGithubLogin,
		},
	}
	h.Metrics.WatchSessions(h.Sessions.Len, h.Chat.Len)
	return h
}

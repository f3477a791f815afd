package main

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portfolio-cms/pkg/config"
	"portfolio-cms/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "", "hash-password", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	out, err = execute(t, "from-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = execute(t, "\n", "hash-password")
	assert.Error(t, err)
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	html := `<html><head><title>Notes on Testing</title></head><body><article>
<h1>Notes on Testing</h1>
<p>Tests that read like the behaviour they check are the ones people keep. Name them after what happens, not after the function they call.</p>
<p>Small fixtures beat shared ones. When a fixture grows a flag for every test that uses it, split it before it turns into a second program.</p>
</article></body></html>`
	require.NoError(t, os.WriteFile(page, []byte(html), 0644))
	target := filepath.Join(dir, "out.md")

	_, err := execute(t, "", "convert", page, "--url", "https://example.com/testing", "--author", "Sam", "-o", target)
	require.NoError(t, err)

	md, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(md), "title: Notes on Testing")
	assert.Contains(t, string(md), "author: Sam")
	assert.Contains(t, string(md), "Small fixtures beat shared ones.")
}

func TestNewHandler_ChatDisabledWithoutLLM(t *testing.T) {
	prevURL, prevSecret, prevOAuth := config.LLMBaseURL, config.SessionSecret, config.OauthConf
	t.Cleanup(func() { config.LLMBaseURL, config.SessionSecret, config.OauthConf = prevURL, prevSecret, prevOAuth })
	config.LLMBaseURL = ""
	config.OauthConf = nil
	config.SessionSecret = "test-secret-test-secret-test-secret"

	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	h := newHandler(store)
	t.Cleanup(h.Sessions.Close)
	t.Cleanup(h.Limiter.Close)
	t.Cleanup(h.Throttle.Close)
	t.Cleanup(h.Chat.Close)

	assert.False(t, h.Chat.Enabled())
	assert.Nil(t, h.Options.Github)

	w := httptest.NewRecorder()
	h.Metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, w.Body.String(), "cms_admin_sessions 0")
	assert.Contains(t, w.Body.String(), "cms_chat_conversations 0")
}

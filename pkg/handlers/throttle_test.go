package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRequestLimiter(1, 2)
	t.Cleanup(rl.Close)

	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:1").Code)
	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:2").Code)
	w := call("192.0.2.1:3")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, call("198.51.100.9:1").Code)
}

func TestRequestLimiter_Unlimited(t *testing.T) {
	rl := NewRequestLimiter(0, 0)
	t.Cleanup(rl.Close)
	for i := 0; i < 50; i++ {
		assert.True(t, rl.get("192.0.2.1").Allow())
	}
}

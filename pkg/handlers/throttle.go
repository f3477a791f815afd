package handlers

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RequestLimiter applies a token bucket per client IP. It guards endpoints
// that cost money per call, such as chat completions.
type RequestLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	retry    int
	idle     time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewRequestLimiter allows perMinute requests per IP with the given burst.
// perMinute <= 0 disables the limit.
func NewRequestLimiter(perMinute, burst int) *RequestLimiter {
	limit, retry := rate.Inf, 1
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
		retry = max(int(math.Ceil(60/float64(perMinute))), 1)
	}
	if burst <= 0 {
		burst = 1
	}
	rl := &RequestLimiter{
		visitors: make(map[string]*visitor),
		rate:     limit,
		burst:    burst,
		retry:    retry,
		idle:     5 * time.Minute,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RequestLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.visitors[ip]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	rl.visitors[ip] = &visitor{limiter: l, lastSeen: time.Now()}
	return l
}

func (rl *RequestLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.idle {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RequestLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (rl *RequestLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.get(GetRealIP(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(rl.retry))
		fail(c, http.StatusTooManyRequests, "Too many requests, slow down")
	}
}

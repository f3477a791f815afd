package handlers

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type attempts struct {
	failures     int
	blockedUntil time.Time
	lastFailure  time.Time
}

// RateLimiter counts failed logins per IP and blocks an IP once it reaches
// the failure limit.
type RateLimiter struct {
	mu          sync.RWMutex
	ips         map[string]*attempts
	maxFailures int
	blockPeriod time.Duration
	now         func() time.Time
	stop        chan struct{}
	once        sync.Once
}

func NewRateLimiter(maxFailures int, blockPeriod time.Duration) *RateLimiter {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	rl := &RateLimiter{
		ips:         make(map[string]*attempts),
		maxFailures: maxFailures,
		blockPeriod: blockPeriod,
		now:         time.Now,
		stop:        make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// IsBlocked checks if an IP is currently blocked
func (rl *RateLimiter) IsBlocked(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	a, exists := rl.ips[ip]
	if !exists {
		return false
	}
	return rl.now().Before(a.blockedUntil)
}

// RecordFailure counts a failed attempt and reports whether the IP is now
// blocked.
func (rl *RateLimiter) RecordFailure(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	a, exists := rl.ips[ip]
	if !exists || (!a.blockedUntil.IsZero() && now.After(a.blockedUntil)) {
		a = &attempts{}
		rl.ips[ip] = a
	}
	a.failures++
	a.lastFailure = now
	if a.failures >= rl.maxFailures {
		a.blockedUntil = now.Add(rl.blockPeriod)
		return true
	}
	return false
}

// Reset forgets an IP after a successful login.
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.ips, ip)
}

// cleanup periodically removes expired blocks and stale counters
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, a := range rl.ips {
		blockOver := !a.blockedUntil.IsZero() && now.After(a.blockedUntil)
		stale := a.blockedUntil.IsZero() && now.Sub(a.lastFailure) > rl.blockPeriod
		if blockOver || stale {
			delete(rl.ips, ip)
		}
	}
}

func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// GetRealIP returns the client IP as gin resolves it. Forwarding headers
// only count when the engine trusts the peer (SetTrustedProxies) or a
// platform header is configured (TrustedPlatform).
func GetRealIP(c *gin.Context) string {
	if ip := parseIP(c.ClientIP()); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// parseIP validates an IP address, stripping a port if present
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(ipStr); err == nil {
		ipStr = host
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// LogFailedAuth logs a failed authentication attempt
func LogFailedAuth(c *gin.Context, ip, reason string, blocked bool) {
	status := "failed"
	if blocked {
		status = "blocked"
	}
	slog.WarnContext(c.Request.Context(), "auth "+status,
		"ip", ip, "reason", reason, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
}

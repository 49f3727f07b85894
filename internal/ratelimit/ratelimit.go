// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	WindowSize    time.Duration // length of one counting window
	MaxRequests   int           // requests allowed per window
	CleanupPeriod time.Duration // how often idle entries are dropped
	// BanDuration blocks a client after it exceeds the limit. Zero means the
	// client is only held back until its window ends.
	BanDuration time.Duration
}

// WriteConfig limits entity-creating requests per client.
func WriteConfig(maxRequests int, window time.Duration) *Config {
	return &Config{
		WindowSize:    window,
		MaxRequests:   maxRequests,
		CleanupPeriod: 2 * window,
	}
}

type record struct {
	count     int
	firstSeen time.Time
	bannedAt  *time.Time
}

// MemoryRateLimiter is a fixed-window limiter keyed by client identifier.
type MemoryRateLimiter struct {
	config  *Config
	now     func() time.Time
	records map[string]*record
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryRateLimiter starts a limiter and its cleanup loop. Call Close to stop it.
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	limiter := &MemoryRateLimiter{
		config:  config,
		now:     time.Now,
		records: make(map[string]*record),
		stopCh:  make(chan struct{}),
	}
	if config.CleanupPeriod > 0 {
		go limiter.cleanupLoop()
	}
	return limiter
}

// Info describes the limiter state for one client after a request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
	Banned     bool
}

// Allow counts one request for identifier.
func (rl *MemoryRateLimiter) Allow(identifier string) Info {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit := rl.config.MaxRequests
	rec, exists := rl.records[identifier]

	if exists && rec.bannedAt != nil {
		if until := rec.bannedAt.Add(rl.config.BanDuration); now.Before(until) {
			return Info{Limit: limit, ResetTime: until, RetryAfter: until.Sub(now), Banned: true}
		}
		exists = false
	}
	if !exists || now.Sub(rec.firstSeen) >= rl.config.WindowSize {
		rec = &record{firstSeen: now}
		rl.records[identifier] = rec
	}

	rec.count++
	reset := rec.firstSeen.Add(rl.config.WindowSize)
	if rec.count > limit {
		if rl.config.BanDuration > 0 {
			rec.bannedAt = &now
			return Info{Limit: limit, ResetTime: now.Add(rl.config.BanDuration), RetryAfter: rl.config.BanDuration, Banned: true}
		}
		return Info{Limit: limit, ResetTime: reset, RetryAfter: reset.Sub(now)}
	}
	return Info{Allowed: true, Limit: limit, Remaining: limit - rec.count, ResetTime: reset}
}

func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops entries whose window and ban have both run out.
func (rl *MemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for identifier, rec := range rl.records {
		windowExpired := now.Sub(rec.firstSeen) >= rl.config.WindowSize
		banExpired := rec.bannedAt == nil || now.Sub(*rec.bannedAt) >= rl.config.BanDuration
		if windowExpired && banExpired {
			delete(rl.records, identifier)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *MemoryRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	// Behind a proxy the first forwarded address is the client.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func parseFirstIP(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}

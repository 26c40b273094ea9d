// Package ratelimit keeps one token bucket per key (usually a remote IP).
package ratelimit

import (
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the number of requests allowed in the window
	RequestsPerWindow int
	Window            time.Duration
	// Burst allows for temporary bursts above the steady rate
	Burst int
}

// AuthLimit guards credential commands: 20 attempts a minute per address.
var AuthLimit = Config{
	RequestsPerWindow: 20,
	Window:            time.Minute,
	Burst:             20,
}

// HandshakeLimit guards WebSocket upgrades and the health endpoints.
var HandshakeLimit = Config{
	RequestsPerWindow: 60,
	Window:            time.Minute,
	Burst:             30,
}

// ParseFromEnv overrides defaults from RATELIMIT_{prefix}_REQUESTS,
// RATELIMIT_{prefix}_WINDOW_SEC and RATELIMIT_{prefix}_BURST. Invalid or
// non-positive values are ignored.
func ParseFromEnv(prefix string, defaults Config) Config {
	cfg := defaults

	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}

	return cfg
}

func positiveEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Limiter hands out a rate.Limiter per key. A nil *Limiter allows everything.
type Limiter struct {
	cfg      Config
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit

	mu          sync.Mutex
	lastCleanup time.Time
}

func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:         cfg,
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		lastCleanup: time.Now(),
	}
}

func (l *Limiter) Config() Config { return l.cfg }

// Allow reports whether one more event for key fits in its bucket. An empty
// key is always allowed.
func (l *Limiter) Allow(key string) bool {
	if l == nil || key == "" {
		return true
	}
	return l.get(key).Allow()
}

// RetryAfter estimates how long key must wait for its next token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	if l == nil || key == "" {
		return 0
	}
	r := l.get(key).Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}

func (l *Limiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.cfg.Burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled completely, at most once
// every five minutes.
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.cfg.Burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/spacesedan/sentibot/internal/models"
	"golang.org/x/time/rate"
)

const LIMIT_EXCEEDED_DETAIL = "Превышен лимит запросов. Попробуйте позже."

type Limiter interface {
	// Allow reports whether one more request from key fits in the current window.
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps one fixed-window counter per key in process memory.
type MemoryLimiter struct {
	mu          sync.Mutex
	windows     map[string]*windowEntry
	maxRequests int
	window      time.Duration
	clock       clockwork.Clock
	cleanupAt   time.Time
}

type windowEntry struct {
	start time.Time
	count int
}

// NewMemoryLimiter allows maxRequests per key in each window. A key's window
// opens on its first request and resets once the window has elapsed.
func NewMemoryLimiter(maxRequests int, window time.Duration, clock clockwork.Clock) *MemoryLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLimiter{
		windows:     make(map[string]*windowEntry),
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
		cleanupAt:   clock.Now().Add(window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if !now.Before(l.cleanupAt) {
		l.sweep(now)
		l.cleanupAt = now.Add(l.window)
	}

	entry, ok := l.windows[key]
	if !ok || !now.Before(entry.start.Add(l.window)) {
		entry = &windowEntry{start: now}
		l.windows[key] = entry
	}
	if entry.count >= l.maxRequests {
		return false, nil
	}
	entry.count++
	return true, nil
}

// sweep drops keys whose window has already closed. Must be called with mu held.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, entry := range l.windows {
		if !now.Before(entry.start.Add(l.window)) {
			delete(l.windows, key)
		}
	}
}

func (l *MemoryLimiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Middleware rejects requests over the limit with 429. Limiter errors let the
// request through. Rejection logs are sampled.
func Middleware(l Limiter, onLimited func()) gin.HandlerFunc {
	rejectLog := &rate.Sometimes{First: 10, Interval: 10 * time.Second}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			slog.Warn("[RateLimit] Limiter unavailable, allowing request",
				slog.String("client_ip", ip),
				slog.String("error", err.Error()))
			c.Next()
			return
		}
		if !allowed {
			rejectLog.Do(func() {
				slog.Warn("[RateLimit] Request rejected",
					slog.String("client_ip", ip),
					slog.String("path", c.FullPath()))
			})
			if onLimited != nil {
				onLimited()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{Detail: LIMIT_EXCEEDED_DETAIL})
			return
		}
		c.Next()
	}
}

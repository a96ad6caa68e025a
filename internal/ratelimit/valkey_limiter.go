package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ValkeyLimiter is a fixed-window counter shared by every API replica.
type ValkeyLimiter struct {
	counter     WindowCounter
	maxRequests int64
	window      time.Duration
}

func NewValkeyLimiter(counter WindowCounter, maxRequests int, window time.Duration) *ValkeyLimiter {
	return &ValkeyLimiter{
		counter:     counter,
		maxRequests: int64(maxRequests),
		window:      window,
	}
}

func (v *ValkeyLimiter) Key(clientKey string) string {
	return fmt.Sprintf("ratelimit:%d:%s", int64(v.window/time.Second), clientKey)
}

func (v *ValkeyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := v.counter.IncrWindow(ctx, v.Key(key), v.window)
	if err != nil {
		return true, fmt.Errorf("rate limit counter: %w", err)
	}
	return count <= v.maxRequests, nil
}

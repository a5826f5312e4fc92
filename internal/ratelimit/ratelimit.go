// Package ratelimit guards outbound calls to quota-limited upstream APIs with
// a sliding-window counter keyed by (API identity, caller identity).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter decides whether one more call to api on behalf of caller fits in
// the current window. Implementations are safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, api, caller string) (bool, error)
}

type callerKey struct{}

// AnonymousCaller is used when no caller identity is attached to the context.
const AnonymousCaller = "anonymous"

// WithCaller attaches the caller identity (profile name) to ctx.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller attached by WithCaller, or AnonymousCaller.
func CallerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok && v != "" {
		return v
	}
	return AnonymousCaller
}

func bucketKey(api, caller string) string {
	return fmt.Sprintf("ratelimit:%s:%s", api, caller)
}

// MemoryLimiter keeps the call log of each key in process memory.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	logs map[string][]time.Time
	now  func() time.Time
}

// NewMemoryLimiter allows limit calls per window and key.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		logs:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, api, caller string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey(api, caller)
	now := l.now()
	cutoff := now.Add(-l.window)

	calls := l.logs[key]
	i := 0
	for i < len(calls) && !calls[i].After(cutoff) {
		i++
	}
	calls = calls[i:]

	if len(calls) >= l.limit {
		l.logs[key] = calls
		return false, nil
	}
	l.logs[key] = append(calls, now)
	return true, nil
}

// Unlimited allows every call. Used when no quota applies.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, string) (bool, error) { return true, nil }

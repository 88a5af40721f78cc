package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted is returned by Wait when the limiter never refills.
var ErrExhausted = errors.New("rate limit exhausted")

// Limiter keeps one token bucket per key. Every key shares the same burst and refill rate.
type Limiter struct {
	burst int
	limit rate.Limit
	now   func() time.Time

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func New(capacity int, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSec < 0 {
		refillPerSec = 0
	}
	return &Limiter{
		burst: capacity,
		limit: rate.Limit(refillPerSec),
		now:   time.Now,
		m:     make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = b
	}
	return b
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).AllowN(l.now(), 1)
}

// Wait blocks until a token for key is available or ctx is done, returning ctx.Err() in the latter case.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	now := l.now()
	r := l.bucket(key).ReserveN(now, 1)
	if !r.OK() {
		return ErrExhausted
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.CancelAt(l.now())
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

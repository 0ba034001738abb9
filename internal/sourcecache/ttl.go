package sourcecache

import (
	"context"
	"sync"
	"time"
)

// TTL memoizes one value for a fixed window. The loader runs under the lock,
// so concurrent callers wait for a single load instead of repeating it.
// Failed loads are not cached.
type TTL[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	value     T
	loadedAt  time.Time
	populated bool
}

func NewTTL[T any](ttl time.Duration, now func() time.Time) *TTL[T] {
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{ttl: ttl, now: now}
}

func (c *TTL[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.populated && c.now().Sub(c.loadedAt) < c.ttl {
		return c.value, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.loadedAt = c.now()
	c.populated = true
	return v, nil
}

func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.populated = false
}

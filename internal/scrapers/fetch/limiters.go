package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"pastpapers-backend/internal/components/assert"

	"golang.org/x/time/rate"
)

// Limiters hands out one token bucket per origin host, so crawling one site
// never slows down another.
type Limiters struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLimiters panics on a burst below one, such a bucket never hands out a
// token.
func NewLimiters(limit rate.Limit, burst int) *Limiters {
	assert.Positive(burst)
	return &Limiters{
		limit:   limit,
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *Limiters) For(host string) *rate.Limiter {
	host = strings.ToLower(host)

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.buckets[host] = limiter
	}
	return limiter
}

// Wait blocks until the origin of `link` may be requested again or ctx is done.
func (l *Limiters) Wait(ctx context.Context, link string) error {
	parsed, err := url.Parse(link)
	if err != nil {
		return err
	}
	return l.For(parsed.Host).Wait(ctx)
}

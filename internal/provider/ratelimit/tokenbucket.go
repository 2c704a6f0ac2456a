package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"quoteproxy/internal/provider"
)

// TokenBucket is a stdlib-only token bucket limiter: rate tokens per
// second, up to capacity (burst) held.
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// take consumes one token if available, otherwise reports how long until
// one accrues. Zero means a token was taken.
func (tb *TokenBucket) take() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if d := now.Sub(tb.last); d > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+d.Seconds()*tb.rate)
		tb.last = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	return time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
}

// wait blocks until one token is available or context is canceled.
func (tb *TokenBucket) wait(ctx context.Context) error {
	for {
		d := tb.take()
		if d == 0 {
			return nil
		}
		if d < time.Millisecond {
			d = time.Millisecond
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucketSource wraps a Source and gates calls using a token bucket.
type TokenBucketSource struct {
	S  provider.Source
	TB *TokenBucket
}

func (t *TokenBucketSource) Name() string { return t.S.Name() }

func (t *TokenBucketSource) FetchOne(ctx context.Context, providerSymbol string) (provider.Quote, error) {
	if t.TB != nil {
		if err := t.TB.wait(ctx); err != nil {
			return provider.Quote{}, err
		}
	}
	return t.S.FetchOne(ctx, providerSymbol)
}

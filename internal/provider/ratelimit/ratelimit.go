package ratelimit

import (
	"context"
	"sync"
	"time"

	"quoteproxy/internal/provider"
)

// MinInterval wraps a source and enforces a minimum time between calls
// in aggregate, across all callers. Concurrent calls queue until the
// interval has elapsed since the previous call, or return early if the
// context is canceled.
type MinInterval struct {
	S        provider.Source
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) FetchOne(ctx context.Context, providerSymbol string) (provider.Quote, error) {
	if m.Interval > 0 {
		// Claim a slot up front so concurrent callers space out instead
		// of racing through together once the first wait elapses.
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return provider.Quote{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	return m.S.FetchOne(ctx, providerSymbol)
}

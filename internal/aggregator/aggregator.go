// Package aggregator orchestrates quote resolution: cache reads, routing
// of misses to the right upstream, bounded parallel fan-out, and the
// rate-limited full-refresh cycle.
package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"quoteproxy/internal/instruments"
	"quoteproxy/internal/metrics"
	"quoteproxy/internal/pricecache"
	"quoteproxy/internal/provider"
)

// Options tune the aggregator. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	// BatchTTL is the freshness window for the batch fast path (default 2s).
	BatchTTL time.Duration
	// RefreshTTL is the freshness window consulted by the full-refresh
	// cycle; symbols fresher than this are not re-fetched (default 30s).
	RefreshTTL time.Duration
	// RefreshGap is the mandatory pause between consecutive forex/metals
	// calls in a refresh cycle (default 1s, upstream rate limit).
	RefreshGap time.Duration
	// BatchConcurrency caps parallel forex/metals fetches in a batch
	// (default 4).
	BatchConcurrency int
	// FetchTimeout bounds each outbound fetch (default 10s).
	FetchTimeout time.Duration
}

func (o *Options) fill() {
	if o.BatchTTL <= 0 {
		o.BatchTTL = 2 * time.Second
	}
	if o.RefreshTTL <= 0 {
		o.RefreshTTL = 30 * time.Second
	}
	if o.RefreshGap <= 0 {
		o.RefreshGap = time.Second
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = 4
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
}

type Aggregator struct {
	cache  *pricecache.Cache
	forex  provider.Source
	crypto provider.BulkSource
	log    *zap.Logger
	opts   Options

	// refreshing guards the full-refresh cycle; a CAS failure means a
	// cycle is already in flight and the new invocation is a no-op.
	refreshing atomic.Bool

	// bulk coalesces concurrent crypto bulk fetches across overlapping
	// batch requests.
	bulk singleflight.Group
}

func New(cache *pricecache.Cache, forex provider.Source, crypto provider.BulkSource, log *zap.Logger, opts Options) *Aggregator {
	opts.fill()
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{cache: cache, forex: forex, crypto: crypto, log: log, opts: opts}
}

// ResolvePrice resolves one symbol directly against its upstream, without
// consulting the cache. It reports false when the symbol is unsupported
// or the fetch fails.
func (a *Aggregator) ResolvePrice(ctx context.Context, symbol string) (provider.Quote, bool) {
	asg := instruments.Classify(symbol)

	var src provider.Source
	switch asg.Provider {
	case instruments.MetaAPI:
		src = a.forex
	case instruments.Binance:
		src = a.crypto
	default:
		return provider.Quote{}, false
	}

	q, err := a.fetchOne(ctx, src, asg.ProviderSymbol)
	if err != nil {
		a.log.Warn("single fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return provider.Quote{}, false
	}
	return q, true
}

// ResolveBatch resolves a set of symbols, serving what it can from the
// cache (batch TTL) and fetching the rest: one coalesced bulk call for
// crypto misses, bounded parallel per-symbol calls for forex/metals.
// Symbols that cannot be resolved are simply absent from the result;
// the batch as a whole never fails.
func (a *Aggregator) ResolveBatch(ctx context.Context, symbols []string) map[string]provider.Quote {
	metrics.BatchRequests.Inc()

	out := make(map[string]provider.Quote, len(symbols))
	now := time.Now()

	var missFx []string
	missCrypto := make(map[string]string) // canonical -> provider symbol
	seen := make(map[string]struct{}, len(symbols))

	for _, sym := range symbols {
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}

		if e, ok := a.cache.Get(sym); ok && e.FreshAt(now, a.opts.BatchTTL) {
			metrics.CacheHits.Inc()
			out[sym] = e.Quote
			continue
		}

		asg := instruments.Classify(sym)
		switch asg.Provider {
		case instruments.MetaAPI:
			metrics.CacheMisses.Inc()
			missFx = append(missFx, sym)
		case instruments.Binance:
			metrics.CacheMisses.Inc()
			missCrypto[sym] = asg.ProviderSymbol
		}
	}

	var mu sync.Mutex

	var wg sync.WaitGroup
	if len(missCrypto) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			all, err := a.fetchAllCrypto(ctx)
			if err != nil {
				a.log.Warn("crypto bulk fetch failed", zap.Error(err))
				return
			}
			ts := time.Now()
			mu.Lock()
			defer mu.Unlock()
			for sym, psym := range missCrypto {
				q, ok := all[psym]
				if !ok {
					continue // absent from the bulk response, not an error
				}
				a.cache.Put(sym, q, ts)
				out[sym] = q
			}
		}()
	}

	fx := new(errgroup.Group)
	fx.SetLimit(a.opts.BatchConcurrency)
	for _, sym := range missFx {
		fx.Go(func() error {
			q, err := a.fetchOne(ctx, a.forex, sym)
			if err != nil {
				// Isolated: one symbol's failure never fails its siblings.
				a.log.Warn("batch fetch failed", zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			a.cache.Put(sym, q, time.Now())
			mu.Lock()
			out[sym] = q
			mu.Unlock()
			return nil
		})
	}

	_ = fx.Wait()
	wg.Wait()
	return out
}

// RefreshAll runs one full-refresh cycle: a bulk crypto overwrite, then a
// strictly sequential walk over the forex/metals universe with the
// mandatory inter-call gap. At most one cycle runs at a time; an
// invocation while one is in flight is a silent no-op returning false.
// Individual fetch failures are logged and swallowed.
func (a *Aggregator) RefreshAll(ctx context.Context) bool {
	if !a.refreshing.CompareAndSwap(false, true) {
		metrics.RefreshSkipped.Inc()
		return false
	}
	defer a.refreshing.Store(false)

	a.runRefresh(ctx)
	return true
}

// StartRefresh launches a refresh cycle in the background, reporting
// immediately whether a new cycle was started. Same no-op semantics as
// RefreshAll when one is already in flight.
func (a *Aggregator) StartRefresh(ctx context.Context) bool {
	if !a.refreshing.CompareAndSwap(false, true) {
		metrics.RefreshSkipped.Inc()
		return false
	}
	go func() {
		defer a.refreshing.Store(false)
		a.runRefresh(ctx)
	}()
	return true
}

func (a *Aggregator) runRefresh(ctx context.Context) {
	start := time.Now()

	if all, err := a.fetchAllCrypto(ctx); err != nil {
		a.log.Warn("refresh: crypto bulk failed", zap.Error(err))
	} else {
		ts := time.Now()
		for _, sym := range instruments.CryptoSymbols() {
			if q, ok := all[instruments.Classify(sym).ProviderSymbol]; ok {
				a.cache.Put(sym, q, ts)
			}
		}
	}

	called := false
	for _, sym := range instruments.ForexMetalsSymbols() {
		if ctx.Err() != nil {
			break
		}
		if e, ok := a.cache.Get(sym); ok && e.FreshAt(time.Now(), a.opts.RefreshTTL) {
			continue
		}
		if called && a.opts.RefreshGap > 0 {
			if err := sleep(ctx, a.opts.RefreshGap); err != nil {
				break
			}
		}
		called = true

		q, err := a.fetchOne(ctx, a.forex, sym)
		if err != nil {
			a.log.Warn("refresh: fetch failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		a.cache.Put(sym, q, time.Now())
	}

	metrics.RefreshCycles.Inc()
	a.log.Info("refresh cycle done",
		zap.Duration("took", time.Since(start)),
		zap.Int("cached", a.cache.Len()))
}

// fetchAllCrypto coalesces concurrent bulk calls: overlapping callers
// share one upstream request and its result. The shared call is detached
// from the leading caller's context so that one caller disconnecting does
// not fail the joiners; the fetch timeout still bounds it.
func (a *Aggregator) fetchAllCrypto(ctx context.Context) (map[string]provider.Quote, error) {
	v, err, _ := a.bulk.Do("bulk", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.FetchTimeout)
		defer cancel()

		start := time.Now()
		all, err := a.crypto.FetchAll(fetchCtx)
		metrics.FetchLatency.WithLabelValues(a.crypto.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.FetchErrors.WithLabelValues(a.crypto.Name()).Inc()
			return nil, err
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]provider.Quote), nil
}

func (a *Aggregator) fetchOne(ctx context.Context, src provider.Source, providerSymbol string) (provider.Quote, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	q, err := src.FetchOne(fetchCtx, providerSymbol)
	metrics.FetchLatency.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues(src.Name()).Inc()
	}
	return q, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

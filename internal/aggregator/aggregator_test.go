package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteproxy/internal/pricecache"
	"quoteproxy/internal/provider"
)

type fakeForex struct {
	mu     sync.Mutex
	calls  []string
	quotes map[string]provider.Quote
	fail   map[string]bool
}

func (f *fakeForex) Name() string { return "fake-forex" }

func (f *fakeForex) FetchOne(_ context.Context, psym string) (provider.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, psym)
	f.mu.Unlock()
	if f.fail[psym] {
		return provider.Quote{}, &provider.FetchError{Source: f.Name(), Symbol: psym, Err: errors.New("boom")}
	}
	q, ok := f.quotes[psym]
	if !ok {
		return provider.Quote{}, &provider.FetchError{Source: f.Name(), Symbol: psym, Err: errors.New("no quote")}
	}
	return q, nil
}

func (f *fakeForex) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeForex) called(psym string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == psym {
			return true
		}
	}
	return false
}

type fakeCrypto struct {
	mu        sync.Mutex
	bulkCalls int
	oneCalls  []string
	bulk      map[string]provider.Quote
	bulkErr   error

	// entered is closed-signaled once per FetchAll start; release, when
	// non-nil, blocks FetchAll until closed.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCrypto) Name() string { return "fake-crypto" }

func (f *fakeCrypto) FetchOne(_ context.Context, psym string) (provider.Quote, error) {
	f.mu.Lock()
	f.oneCalls = append(f.oneCalls, psym)
	f.mu.Unlock()
	q, ok := f.bulk[psym]
	if !ok {
		return provider.Quote{}, &provider.FetchError{Source: f.Name(), Symbol: psym, Err: errors.New("no quote")}
	}
	return q, nil
}

func (f *fakeCrypto) FetchAll(ctx context.Context) (map[string]provider.Quote, error) {
	f.mu.Lock()
	f.bulkCalls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	return f.bulk, nil
}

func (f *fakeCrypto) bulkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bulkCalls
}

func testOptions() Options {
	return Options{
		BatchTTL:         2 * time.Second,
		RefreshTTL:       30 * time.Second,
		RefreshGap:       time.Millisecond,
		BatchConcurrency: 4,
		FetchTimeout:     time.Second,
	}
}

func newTestAggregator(fx *fakeForex, cr *fakeCrypto) (*Aggregator, *pricecache.Cache) {
	cache := pricecache.New()
	return New(cache, fx, cr, nil, testOptions()), cache
}

func TestResolvePrice_UnsupportedNeverCallsAdapters(t *testing.T) {
	fx := &fakeForex{}
	cr := &fakeCrypto{}
	a, _ := newTestAggregator(fx, cr)

	_, ok := a.ResolvePrice(t.Context(), "FAKEXYZ")
	assert.False(t, ok)
	assert.Zero(t, fx.callCount())
	assert.Zero(t, cr.bulkCount())
	assert.Empty(t, cr.oneCalls)
}

func TestResolvePrice_ForexDirectFetch(t *testing.T) {
	fx := &fakeForex{quotes: map[string]provider.Quote{"EURUSD": {Bid: 1.0842, Ask: 1.0844}}}
	a, cache := newTestAggregator(fx, &fakeCrypto{})

	// Even a fresh cache entry is ignored on the single-symbol path.
	cache.Put("EURUSD", provider.Quote{Bid: 9, Ask: 9}, time.Now())

	q, ok := a.ResolvePrice(t.Context(), "EURUSD")
	require.True(t, ok)
	assert.Equal(t, provider.Quote{Bid: 1.0842, Ask: 1.0844}, q)
	assert.Equal(t, 1, fx.callCount())
}

func TestResolvePrice_CryptoUsesPerSymbolCall(t *testing.T) {
	cr := &fakeCrypto{bulk: map[string]provider.Quote{"BTCUSDT": {Bid: 60000, Ask: 60010}}}
	a, _ := newTestAggregator(&fakeForex{}, cr)

	q, ok := a.ResolvePrice(t.Context(), "BTCUSD")
	require.True(t, ok)
	assert.Equal(t, provider.Quote{Bid: 60000, Ask: 60010}, q)
	assert.Equal(t, []string{"BTCUSDT"}, cr.oneCalls)
	assert.Zero(t, cr.bulkCount())
}

func TestResolvePrice_FetchFailureIsNotFound(t *testing.T) {
	fx := &fakeForex{fail: map[string]bool{"EURUSD": true}}
	a, _ := newTestAggregator(fx, &fakeCrypto{})

	_, ok := a.ResolvePrice(t.Context(), "EURUSD")
	assert.False(t, ok)
}

func TestResolveBatch_EmptyInput(t *testing.T) {
	fx := &fakeForex{}
	cr := &fakeCrypto{}
	a, _ := newTestAggregator(fx, cr)

	out := a.ResolveBatch(t.Context(), nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, fx.callCount())
	assert.Zero(t, cr.bulkCount())
}

func TestResolveBatch_FreshCacheHitSkipsAdapters(t *testing.T) {
	fx := &fakeForex{}
	cr := &fakeCrypto{}
	a, cache := newTestAggregator(fx, cr)

	q := provider.Quote{Bid: 60000, Ask: 60010}
	cache.Put("BTCUSD", q, time.Now().Add(-time.Second))

	out := a.ResolveBatch(t.Context(), []string{"BTCUSD"})
	require.Len(t, out, 1)
	assert.Equal(t, q, out["BTCUSD"])
	assert.Zero(t, cr.bulkCount())
	assert.Empty(t, cr.oneCalls)
}

func TestResolveBatch_UnknownSymbolOmitted(t *testing.T) {
	fx := &fakeForex{quotes: map[string]provider.Quote{"EURUSD": {Bid: 1.0842, Ask: 1.0844}}}
	a, _ := newTestAggregator(fx, &fakeCrypto{})

	out := a.ResolveBatch(t.Context(), []string{"EURUSD", "FAKEXYZ"})
	require.Len(t, out, 1)
	assert.Contains(t, out, "EURUSD")
}

func TestResolveBatch_CryptoMissesUseOneBulkCall(t *testing.T) {
	cr := &fakeCrypto{bulk: map[string]provider.Quote{
		"BTCUSDT": {Bid: 60000, Ask: 60010},
		// ETHUSDT deliberately absent from the bulk response.
	}}
	a, cache := newTestAggregator(&fakeForex{}, cr)

	out := a.ResolveBatch(t.Context(), []string{"BTCUSD", "ETHUSD"})
	assert.Equal(t, 1, cr.bulkCount())
	assert.Empty(t, cr.oneCalls)
	require.Len(t, out, 1)
	assert.Equal(t, provider.Quote{Bid: 60000, Ask: 60010}, out["BTCUSD"])

	// The bulk result lands in the cache with a fresh timestamp.
	e, ok := cache.Get("BTCUSD")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), e.ObservedAt, time.Second)
	_, ok = cache.Get("ETHUSD")
	assert.False(t, ok)
}

func TestResolveBatch_ForexFailureIsIsolated(t *testing.T) {
	fx := &fakeForex{
		quotes: map[string]provider.Quote{
			"EURUSD": {Bid: 1.0842, Ask: 1.0844},
			"GBPUSD": {Bid: 1.2650, Ask: 1.2652},
		},
		fail: map[string]bool{"USDJPY": true},
	}
	a, _ := newTestAggregator(fx, &fakeCrypto{})

	out := a.ResolveBatch(t.Context(), []string{"EURUSD", "USDJPY", "GBPUSD"})
	assert.Equal(t, 3, fx.callCount())
	require.Len(t, out, 2)
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "GBPUSD")
	assert.NotContains(t, out, "USDJPY")
}

func TestResolveBatch_SecondCallWithinTTLServedFromCache(t *testing.T) {
	fx := &fakeForex{quotes: map[string]provider.Quote{"EURUSD": {Bid: 1.0842, Ask: 1.0844}}}
	a, _ := newTestAggregator(fx, &fakeCrypto{})

	first := a.ResolveBatch(t.Context(), []string{"EURUSD"})
	require.Len(t, first, 1)
	second := a.ResolveBatch(t.Context(), []string{"EURUSD"})
	require.Len(t, second, 1)
	assert.Equal(t, 1, fx.callCount(), "second lookup within the batch TTL must not re-fetch")
}

func TestResolveBatch_ConcurrentBulkCallsCoalesce(t *testing.T) {
	cr := &fakeCrypto{
		bulk:    map[string]provider.Quote{"BTCUSDT": {Bid: 60000, Ask: 60010}},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	a, _ := newTestAggregator(&fakeForex{}, cr)

	var wg sync.WaitGroup
	results := make([]map[string]provider.Quote, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.ResolveBatch(t.Context(), []string{"BTCUSD"})
		}()
	}

	// Wait for the first bulk call to be in flight, give the second
	// request time to join it, then let the upstream respond.
	<-cr.entered
	time.Sleep(100 * time.Millisecond)
	close(cr.release)
	wg.Wait()

	assert.Equal(t, 1, cr.bulkCount(), "overlapping bulk fetches must coalesce")
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, provider.Quote{Bid: 60000, Ask: 60010}, r["BTCUSD"])
	}
}

func TestResolveBatch_LeaderCancelDoesNotFailCoalescedJoiners(t *testing.T) {
	cr := &fakeCrypto{
		bulk:    map[string]provider.Quote{"BTCUSDT": {Bid: 60000, Ask: 60010}},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	a, _ := newTestAggregator(&fakeForex{}, cr)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var joiner map[string]provider.Quote
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.ResolveBatch(leaderCtx, []string{"BTCUSD"})
	}()
	<-cr.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		joiner = a.ResolveBatch(context.Background(), []string{"BTCUSD"})
	}()
	time.Sleep(100 * time.Millisecond)

	// The leading request disconnects while the shared bulk call is in
	// flight; the joiner must still get its quote.
	cancelLeader()
	close(cr.release)
	wg.Wait()

	assert.Equal(t, 1, cr.bulkCount())
	require.Len(t, joiner, 1)
	assert.Equal(t, provider.Quote{Bid: 60000, Ask: 60010}, joiner["BTCUSD"])
}

func TestRefreshAll_SecondConcurrentCallIsNoOp(t *testing.T) {
	cr := &fakeCrypto{
		bulk:    map[string]provider.Quote{"BTCUSDT": {Bid: 60000, Ask: 60010}},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	fx := &fakeForex{quotes: map[string]provider.Quote{}}
	a, cache := newTestAggregator(fx, cr)

	// Every forex symbol is fresh so the cycle ends right after the bulk step.
	for _, e := range []string{"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY", "XAUUSD", "XAGUSD"} {
		cache.Put(e, provider.Quote{Bid: 1, Ask: 1}, time.Now())
	}

	done := make(chan bool, 1)
	go func() { done <- a.RefreshAll(context.Background()) }()
	<-cr.entered

	assert.False(t, a.RefreshAll(t.Context()), "overlapping refresh must be a no-op")

	close(cr.release)
	assert.True(t, <-done)
	assert.Equal(t, 1, cr.bulkCount())
	assert.Zero(t, fx.callCount())
}

func TestStartRefresh_ReportsImmediatelyAndRunsInBackground(t *testing.T) {
	cr := &fakeCrypto{
		bulk:    map[string]provider.Quote{"BTCUSDT": {Bid: 60000, Ask: 60010}},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	fx := &fakeForex{}
	a, cache := newTestAggregator(fx, cr)
	for _, sym := range []string{"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY", "XAUUSD", "XAGUSD"} {
		cache.Put(sym, provider.Quote{Bid: 1, Ask: 1}, time.Now())
	}

	assert.True(t, a.StartRefresh(context.Background()))
	<-cr.entered
	assert.False(t, a.StartRefresh(context.Background()), "guard held while the background cycle runs")
	close(cr.release)

	// The background cycle eventually writes the bulk result.
	require.Eventually(t, func() bool {
		_, ok := cache.Get("BTCUSD")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestRefreshAll_CryptoBulkFailureDoesNotBlockForex(t *testing.T) {
	cr := &fakeCrypto{bulkErr: errors.New("upstream 500")}
	fx := &fakeForex{quotes: map[string]provider.Quote{
		"EURUSD": {Bid: 1.0842, Ask: 1.0844},
		"XAUUSD": {Bid: 2321.5, Ask: 2321.9},
	}}
	a, cache := newTestAggregator(fx, cr)

	assert.True(t, a.RefreshAll(t.Context()))
	assert.Equal(t, 1, cr.bulkCount())
	assert.True(t, fx.called("EURUSD"))
	assert.True(t, fx.called("XAUUSD"))

	e, ok := cache.Get("EURUSD")
	require.True(t, ok)
	assert.Equal(t, 1.0842, e.Quote.Bid)
}

func TestRefreshAll_OverwritesKnownCryptoSymbols(t *testing.T) {
	cr := &fakeCrypto{bulk: map[string]provider.Quote{
		"BTCUSDT": {Bid: 60000, Ask: 60010},
		"ETHUSDT": {Bid: 3000.5, Ask: 3000.9},
		"NOTOURS": {Bid: 1, Ask: 1},
	}}
	fx := &fakeForex{}
	a, cache := newTestAggregator(fx, cr)

	// Stale crypto entry gets overwritten by the cycle.
	cache.Put("BTCUSD", provider.Quote{Bid: 1, Ask: 1}, time.Now().Add(-time.Hour))

	a.RefreshAll(t.Context())

	e, ok := cache.Get("BTCUSD")
	require.True(t, ok)
	assert.Equal(t, 60000.0, e.Quote.Bid)
	_, ok = cache.Get("ETHUSD")
	assert.True(t, ok)
	_, ok = cache.Get("NOTOURS")
	assert.False(t, ok, "symbols outside the static universe are ignored")
}

func TestRefreshAll_SkipsEntriesFreshWithinRefreshTTL(t *testing.T) {
	fx := &fakeForex{quotes: map[string]provider.Quote{
		"GBPUSD": {Bid: 1.2650, Ask: 1.2652},
	}}
	a, cache := newTestAggregator(fx, &fakeCrypto{bulkErr: errors.New("down")})

	for _, sym := range []string{"EURUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY", "XAUUSD", "XAGUSD"} {
		cache.Put(sym, provider.Quote{Bid: 1, Ask: 1}, time.Now())
	}

	a.RefreshAll(t.Context())

	assert.Equal(t, 1, fx.callCount())
	assert.True(t, fx.called("GBPUSD"))
}

func TestRefreshAll_FetchFailuresAreSwallowed(t *testing.T) {
	fx := &fakeForex{
		quotes: map[string]provider.Quote{"EURUSD": {Bid: 1.0842, Ask: 1.0844}},
		fail:   map[string]bool{"GBPUSD": true},
	}
	a, cache := newTestAggregator(fx, &fakeCrypto{bulkErr: errors.New("down")})

	assert.True(t, a.RefreshAll(t.Context()), "cycle completes despite individual failures")
	_, ok := cache.Get("EURUSD")
	assert.True(t, ok)
	_, ok = cache.Get("GBPUSD")
	assert.False(t, ok)

	// Guard is cleared: a later cycle can run again.
	assert.True(t, a.RefreshAll(t.Context()))
}

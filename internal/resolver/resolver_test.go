package resolver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/cache"
	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/KeerthivasanKvm/novaresolver/internal/strategy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher serves canned bodies keyed by URL and counts fetches.
type countingFetcher struct {
	mu        sync.Mutex
	responses map[string]string
	delay     time.Duration
	fetches   atomic.Int64
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{responses: make(map[string]string)}
}

func (f *countingFetcher) Fetch(ctx context.Context, opts httpclient.FetchOptions) (*httpclient.FetchResult, error) {
	f.fetches.Add(1)
	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, httpclient.NewFetchError(httpclient.KindTimeout, opts.URL, ctx.Err())
		case <-timer.C:
		}
	}
	f.mu.Lock()
	body, ok := f.responses[opts.URL]
	f.mu.Unlock()
	if !ok {
		return nil, httpclient.NewFetchError(httpclient.KindConnectionFailed, opts.URL, nil)
	}
	return &httpclient.FetchResult{
		FinalURL:   opts.URL,
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte(body),
	}, nil
}

// slowStrategy blocks for its latency (bounded by ctx) and declines.
type slowStrategy struct {
	name    string
	latency time.Duration
}

func (s *slowStrategy) Name() string        { return s.name }
func (s *slowStrategy) Cost() time.Duration { return 0 }

func (s *slowStrategy) Attempt(ctx context.Context, _ *strategy.Page) strategy.Outcome {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return strategy.Failed(ctx.Err())
	case <-timer.C:
		return strategy.Declined()
	}
}

func newTestResolver(t *testing.T, fetcher strategy.Fetcher, chain []strategy.Strategy) (*Resolver, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(zerolog.Nop())
	r := NewResolver(store, fetcher, chain, time.Hour, 45*time.Second, 10, zerolog.Nop())
	return r, store
}

func TestResolveSecondCallServedFromCache(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.responses["http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM="] = "<html></html>"

	chain := []strategy.Strategy{strategy.NewBase64Strategy(zerolog.Nop())}
	r, _ := newTestResolver(t, fetcher, chain)

	ctx := context.Background()
	url := "http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM="

	first, err := r.Resolve(ctx, Request{URL: url})
	require.NoError(t, err)
	assert.Equal(t, "http://real.example/abc", first.Destination)
	assert.Equal(t, "Base64 Decode", first.Strategy)
	assert.False(t, first.FromCache)

	second, err := r.Resolve(ctx, Request{URL: url})
	require.NoError(t, err)
	assert.Equal(t, first.Destination, second.Destination)
	assert.True(t, second.FromCache, "second call must be served from cache")
	assert.Equal(t, int64(1), fetcher.fetches.Load(), "no strategy may run again within TTL")
}

func TestResolveCoalescesConcurrentCalls(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.delay = 100 * time.Millisecond
	url := "http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM="
	fetcher.responses[url] = "<html></html>"

	chain := []strategy.Strategy{strategy.NewBase64Strategy(zerolog.Nop())}
	r, _ := newTestResolver(t, fetcher, chain)

	const callers = 8
	var wg sync.WaitGroup
	var coalesced atomic.Int64
	results := make([]*Result, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = r.Resolve(context.Background(), Request{URL: url})
			if results[n] != nil && results[n].Coalesced {
				coalesced.Add(1)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "http://real.example/abc", results[i].Destination)
	}
	assert.Equal(t, int64(1), fetcher.fetches.Load(), "chain must run at most once per fingerprint")
	assert.GreaterOrEqual(t, coalesced.Load(), int64(1), "waiters must carry the coalesced flag")
}

func TestResolveBudgetEnforced(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.responses["http://slow.example/x"] = "<html></html>"

	// Cumulative chain latency far exceeds the 2 second budget.
	chain := []strategy.Strategy{
		&slowStrategy{name: "slow-a", latency: 3 * time.Second},
		&slowStrategy{name: "slow-b", latency: 3 * time.Second},
	}
	r, _ := newTestResolver(t, fetcher, chain)

	start := time.Now()
	_, err := r.Resolve(context.Background(), Request{
		URL:    "http://slow.example/x",
		Budget: 2 * time.Second,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Less(t, elapsed, 3*time.Second, "resolution must stop at the budget, not run the chain out")
}

func TestResolveSkipsStrategiesCostingMoreThanBudget(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.responses["http://gate.example/x"] = "<html></html>"

	driverCalled := false
	chain := []strategy.Strategy{
		strategy.NewBrowserAutomationStrategy(locationFunc(func(ctx context.Context, url string) (string, error) {
			driverCalled = true
			return "", errors.New("should not run")
		}), zerolog.Nop()),
	}
	r, _ := newTestResolver(t, fetcher, chain)

	// Budget below the browser strategy's cost: it is skipped, never started.
	_, err := r.Resolve(context.Background(), Request{
		URL:    "http://gate.example/x",
		Budget: 2 * time.Second,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllStrategiesDeclined)
	assert.False(t, driverCalled)
}

type locationFunc func(ctx context.Context, url string) (string, error)

func (f locationFunc) ResolveLocation(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

func TestResolveEndToEndBase64Gate(t *testing.T) {
	fetcher := newCountingFetcher()
	url := "http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM="
	fetcher.responses[url] = "<html><body>please wait</body></html>"

	r, _ := newTestResolver(t, fetcher, strategy.NewDefaultChain(fetcher, nil, 10, zerolog.Nop()))

	result, err := r.Resolve(context.Background(), Request{URL: url})
	require.NoError(t, err)

	assert.Equal(t, "http://real.example/abc", result.Destination)
	assert.Equal(t, "Base64 Decode", result.Strategy)
}

func TestResolveEndToEndCSSHiddenGate(t *testing.T) {
	fetcher := newCountingFetcher()
	url := "http://gate.example/hidden"
	fetcher.responses[url] = `<html><body>
		<a href="http://ads.example/promo">decoy</a>
		<a style="display:none" href="http://decoy.example/download/fake.zip">decoy</a>
		<a href="http://files.example/download/real.zip">Download</a>
	</body></html>`

	r, _ := newTestResolver(t, fetcher, strategy.NewDefaultChain(fetcher, nil, 10, zerolog.Nop()))

	result, err := r.Resolve(context.Background(), Request{URL: url})
	require.NoError(t, err)

	assert.Equal(t, "http://files.example/download/real.zip", result.Destination)
	assert.Equal(t, "CSS Hidden Element", result.Strategy)
}

func TestResolveStrategyPriorityBase64BeforeURLDecode(t *testing.T) {
	fetcher := newCountingFetcher()
	// Satisfies both the Base64 and URL-decode patterns; the earlier
	// strategy in the fixed order must win.
	url := "http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM=&url=http%3A%2F%2Fother.example%2Fz"
	fetcher.responses[url] = "<html></html>"

	chain := []strategy.Strategy{
		strategy.NewBase64Strategy(zerolog.Nop()),
		strategy.NewURLDecodeStrategy(zerolog.Nop()),
	}
	r, _ := newTestResolver(t, fetcher, chain)

	result, err := r.Resolve(context.Background(), Request{URL: url})
	require.NoError(t, err)

	assert.Equal(t, "Base64 Decode", result.Strategy)
	assert.Equal(t, "http://real.example/abc", result.Destination)
}

func TestResolveAllowlistRestrictsChain(t *testing.T) {
	fetcher := newCountingFetcher()
	url := "http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM="
	fetcher.responses[url] = "<html></html>"

	r, _ := newTestResolver(t, fetcher, strategy.NewDefaultChain(fetcher, nil, 10, zerolog.Nop()))

	// The only strategy that could resolve this gate is not allowed.
	_, err := r.Resolve(context.Background(), Request{
		URL:               url,
		AllowedStrategies: []string{"HTML Form"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllStrategiesDeclined)

	result, err := r.Resolve(context.Background(), Request{
		URL:               url,
		AllowedStrategies: []string{"Base64 Decode"},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://real.example/abc", result.Destination)
}

func TestResolveNeverCachesFailures(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.responses["http://gate.example/opaque"] = "<html><body>opaque</body></html>"

	r, store := newTestResolver(t, fetcher, []strategy.Strategy{strategy.NewHTMLFormStrategy(zerolog.Nop())})

	_, err := r.Resolve(context.Background(), Request{URL: "http://gate.example/opaque"})
	require.Error(t, err)

	assert.Equal(t, 0, store.Len(), "declined resolutions must never be cached")
}

func TestResolveInvalidURL(t *testing.T) {
	r, _ := newTestResolver(t, newCountingFetcher(), nil)

	_, err := r.Resolve(context.Background(), Request{URL: "://not a url"})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestResolveInitialFetchFailureStillResolvesFromURL(t *testing.T) {
	// No canned response: the initial fetch fails, but the base64
	// parameter on the source URL is enough.
	fetcher := newCountingFetcher()
	r, _ := newTestResolver(t, fetcher, []strategy.Strategy{strategy.NewBase64Strategy(zerolog.Nop())})

	result, err := r.Resolve(context.Background(), Request{
		URL: "http://down.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM=",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://real.example/abc", result.Destination)
}

func TestInvalidateDropsCacheEntry(t *testing.T) {
	fetcher := newCountingFetcher()
	url := "http://gate.example/x?redirect=aHR0cDovL3JlYWwuZXhhbXBsZS9hYmM="
	fetcher.responses[url] = "<html></html>"

	r, store := newTestResolver(t, fetcher, []strategy.Strategy{strategy.NewBase64Strategy(zerolog.Nop())})

	_, err := r.Resolve(context.Background(), Request{URL: url})
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	require.NoError(t, r.Invalidate(context.Background(), url))
	assert.Equal(t, 0, store.Len())

	result, err := r.Resolve(context.Background(), Request{URL: url})
	require.NoError(t, err)
	assert.False(t, result.FromCache, "resolution after invalidation must run the pipeline again")
}

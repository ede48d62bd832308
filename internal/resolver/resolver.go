package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/cache"
	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/KeerthivasanKvm/novaresolver/internal/strategy"
	"github.com/KeerthivasanKvm/novaresolver/internal/urlhandler"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBudget  = 45 * time.Second
	defaultMaxHops = 10
)

// Request describes one resolution. Immutable once created.
type Request struct {
	URL string
	// Budget caps the total resolution time; 0 uses the engine default.
	Budget time.Duration
	// MaxHops caps multi-stage gate walking; 0 uses the engine default.
	MaxHops int
	// AllowedStrategies restricts the chain to the named strategies for
	// this domain; empty enables all of them.
	AllowedStrategies []string
}

// Result is the engine's verdict, immutable once returned.
type Result struct {
	SourceURL   string        `json:"source_url"`
	Destination string        `json:"destination"`
	Strategy    string        `json:"strategy"`
	Hops        int           `json:"hops"`
	Elapsed     time.Duration `json:"elapsed"`
	// FromCache marks a destination served from the link cache without
	// running any strategy.
	FromCache bool `json:"from_cache"`
	// Coalesced marks a caller that waited on another caller's in-flight
	// resolution of the same fingerprint.
	Coalesced bool `json:"coalesced"`
}

// HistoryRecorder receives completed resolutions for durable history.
type HistoryRecorder interface {
	Record(result Result, resolutionErr error)
}

// Resolver is the pipeline orchestrator: cache-first lookup, request
// coalescing per fingerprint, ordered strategy execution under a time
// budget, and cache population on success.
type Resolver struct {
	store   cache.Store
	fetcher strategy.Fetcher
	chain   []strategy.Strategy
	ttl     time.Duration
	budget  time.Duration
	maxHops int
	history HistoryRecorder
	logger  zerolog.Logger
	flight  singleflight.Group
}

// NewResolver creates a resolver over the given cache store, fetcher and
// strategy chain. ttl governs cache entry lifetime; budget and maxHops
// are defaults for requests that do not set their own.
func NewResolver(
	store cache.Store,
	fetcher strategy.Fetcher,
	chain []strategy.Strategy,
	ttl time.Duration,
	budget time.Duration,
	maxHops int,
	logger zerolog.Logger,
) *Resolver {
	if budget <= 0 {
		budget = defaultBudget
	}
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	return &Resolver{
		store:   store,
		fetcher: fetcher,
		chain:   chain,
		ttl:     ttl,
		budget:  budget,
		maxHops: maxHops,
		logger:  logger.With().Str("component", "Resolver").Logger(),
	}
}

// WithHistory attaches a recorder for completed resolutions.
func (r *Resolver) WithHistory(history HistoryRecorder) *Resolver {
	r.history = history
	return r
}

// Resolve runs the full cache-first resolution flow for one source URL.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	normalized, err := urlhandler.NormalizeURL(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	fingerprint, err := urlhandler.Fingerprint(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if result := r.lookupCache(ctx, fingerprint, normalized, start); result != nil {
		return result, nil
	}

	// Coalesce concurrent resolutions of the same fingerprint: the first
	// caller runs the pipeline, the rest wait on its result. A failure
	// is broadcast to every waiter.
	owner := false
	value, err, shared := r.flight.Do(fingerprint, func() (interface{}, error) {
		owner = true
		return r.runPipeline(ctx, fingerprint, normalized, req)
	})
	if r.history != nil {
		defer func() {
			if owner {
				res, _ := value.(*Result)
				if res != nil {
					r.history.Record(*res, err)
				} else {
					r.history.Record(Result{SourceURL: normalized, Elapsed: time.Since(start)}, err)
				}
			}
		}()
	}
	if err != nil {
		return nil, err
	}

	result := *value.(*Result)
	result.Elapsed = time.Since(start)
	result.Coalesced = shared && !owner
	return &result, nil
}

// Invalidate drops the cache entry for a source URL, typically after the
// cached destination was reported broken.
func (r *Resolver) Invalidate(ctx context.Context, rawURL string) error {
	fingerprint, err := urlhandler.Fingerprint(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return r.store.Invalidate(ctx, fingerprint)
}

// lookupCache returns a cache-provenance result on a hit. Backend
// failures degrade to a miss.
func (r *Resolver) lookupCache(ctx context.Context, fingerprint, normalized string, start time.Time) *Result {
	entry, err := r.store.Get(ctx, fingerprint)
	if err != nil {
		r.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache read failed, treating as miss")
		return nil
	}
	if entry == nil {
		return nil
	}
	r.logger.Debug().
		Str("fingerprint", fingerprint).
		Str("destination", entry.Destination).
		Int64("hit_count", entry.HitCount).
		Msg("Cache hit")
	return &Result{
		SourceURL:   normalized,
		Destination: entry.Destination,
		Strategy:    entry.Strategy,
		Elapsed:     time.Since(start),
		FromCache:   true,
	}
}

// runPipeline executes the ordered strategy chain under the request's
// time budget and caches a successful outcome.
func (r *Resolver) runPipeline(ctx context.Context, fingerprint, normalized string, req Request) (*Result, error) {
	budget := req.Budget
	if budget <= 0 {
		budget = r.budget
	}
	maxHops := req.MaxHops
	if maxHops <= 0 {
		maxHops = r.maxHops
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()

	// The initial fetch is shared by every document-inspecting strategy.
	// Its failure is tolerated: URL-level strategies and the browser can
	// still attempt.
	fetchResult, fetchErr := r.fetcher.Fetch(ctx, httpclient.FetchOptions{URL: normalized})
	if fetchErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: initial fetch: %v", ErrBudgetExhausted, fetchErr)
		}
		r.logger.Debug().Err(fetchErr).Str("url", normalized).Msg("Initial fetch failed, continuing with URL-level strategies")
	}

	page, err := strategy.NewPage(normalized, fetchResult)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	page.MaxHops = maxHops

	chain := strategy.Filter(r.chain, req.AllowedStrategies)

	var failures []string
	for _, st := range chain {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w after %s", ErrBudgetExhausted, time.Since(start).Round(time.Millisecond))
		}
		if deadline, ok := ctx.Deadline(); ok && st.Cost() > time.Until(deadline) {
			r.logger.Debug().Str("strategy", st.Name()).Msg("Skipped, cost exceeds remaining budget")
			failures = append(failures, st.Name()+": skipped (budget)")
			continue
		}

		outcome := st.Attempt(ctx, page)
		switch outcome.Status {
		case strategy.StatusResolved:
			r.cacheResult(ctx, fingerprint, st.Name(), outcome)
			r.logger.Info().
				Str("url", normalized).
				Str("strategy", st.Name()).
				Str("destination", outcome.Destination).
				Dur("elapsed", time.Since(start)).
				Msg("Resolved")
			return &Result{
				SourceURL:   normalized,
				Destination: outcome.Destination,
				Strategy:    st.Name(),
				Hops:        outcome.Hops,
				Elapsed:     time.Since(start),
			}, nil

		case strategy.StatusDeclined:
			if outcome.Reason != "" {
				r.logger.Debug().Str("strategy", st.Name()).Str("reason", outcome.Reason).Msg("Strategy declined")
			}
			continue

		case strategy.StatusFailed:
			if isBudgetFailure(outcome.Err) {
				return nil, fmt.Errorf("%w during %s", ErrBudgetExhausted, st.Name())
			}
			// A transient failure in one strategy must not abort the
			// strategies that do not depend on it.
			r.logger.Debug().Err(outcome.Err).Str("strategy", st.Name()).Msg("Strategy failed, continuing")
			failures = append(failures, st.Name()+": "+outcome.Err.Error())
		}
	}

	if len(failures) > 0 {
		return nil, fmt.Errorf("%w (%s)", ErrAllStrategiesDeclined, strings.Join(failures, "; "))
	}
	return nil, ErrAllStrategiesDeclined
}

// cacheResult stores a genuine resolved destination. Write failures are
// logged but never fail the resolution.
func (r *Resolver) cacheResult(ctx context.Context, fingerprint, strategyName string, outcome strategy.Outcome) {
	now := time.Now()
	err := r.store.Put(ctx, cache.Entry{
		Fingerprint: fingerprint,
		Destination: outcome.Destination,
		Strategy:    strategyName,
		ResolvedAt:  now,
		ExpiresAt:   now.Add(r.ttl),
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache write failed")
	}
}

func isBudgetFailure(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, strategy.ErrBudgetExceeded)
}

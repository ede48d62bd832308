package strategy

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/rs/zerolog"
)

const defaultMaxHops = 10

// Meta refresh of the form content="0; url=https://next.example/".
var metaRefreshTarget = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']?refresh["']?[^>]+content\s*=\s*["'][^"']*url\s*=\s*([^"'\s>]+)`)

// RedirectChainStrategy walks a sequence of interstitial hops one fetch
// at a time, following HTTP 3xx Location headers and meta-refresh tags
// until a stable URL is reached or the hop ceiling is hit.
type RedirectChainStrategy struct {
	fetcher Fetcher
	logger  zerolog.Logger
	maxHops int
}

func NewRedirectChainStrategy(fetcher Fetcher, maxHops int, logger zerolog.Logger) *RedirectChainStrategy {
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	return &RedirectChainStrategy{
		fetcher: fetcher,
		logger:  logger.With().Str("strategy", "redirect_chain").Logger(),
		maxHops: maxHops,
	}
}

func (s *RedirectChainStrategy) Name() string { return "Redirect Chain" }

func (s *RedirectChainStrategy) Cost() time.Duration { return time.Second }

func (s *RedirectChainStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	current := page.URL
	maxHops := s.maxHops
	if page.MaxHops > 0 {
		maxHops = page.MaxHops
	}

	hops := 0
	for hop := 0; hop < maxHops; hop++ {
		result, err := s.fetcher.Fetch(ctx, httpclient.FetchOptions{
			URL:               current,
			NoFollowRedirects: true,
		})
		if err != nil && result == nil {
			if ctx.Err() != nil {
				return Failed(ctx.Err())
			}
			// Partial progress through the chain still names the gate's
			// next stage; no progress means nothing to report.
			if current != page.URL {
				return ResolvedHops(current, hops)
			}
			return Failed(err)
		}

		next, ok := s.nextHop(result, current)
		if !ok {
			break
		}
		s.logger.Debug().Int("hop", hop+1).Str("next", next).Msg("Following gate hop")
		current = next
		hops++
	}

	if current != page.URL {
		return ResolvedHops(current, hops)
	}
	return Declined()
}

// nextHop extracts the following hop from a response: the Location
// header on a 3xx, or a meta-refresh target otherwise.
func (s *RedirectChainStrategy) nextHop(result *httpclient.FetchResult, currentURL string) (string, bool) {
	base, err := url.Parse(currentURL)
	if err != nil {
		return "", false
	}

	switch result.StatusCode {
	case 301, 302, 303, 307, 308:
		location := result.Headers.Get("Location")
		if location == "" {
			return "", false
		}
		resolved, err := urlJoin(location, base)
		if err != nil {
			return "", false
		}
		return resolved, true
	}

	if match := metaRefreshTarget.FindSubmatch(result.Body); match != nil {
		resolved, err := urlJoin(string(match[1]), base)
		if err != nil {
			return "", false
		}
		return resolved, true
	}
	return "", false
}

func urlJoin(href string, base *url.URL) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

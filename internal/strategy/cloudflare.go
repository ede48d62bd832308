package strategy

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Body markers of a Cloudflare challenge page.
var challengeBodyMarkers = []string{
	"checking your browser",
	"cf-browser-verification",
	"cf_chl_",
	"/cdn-cgi/challenge-platform/",
}

var (
	challengeAnchorHref = regexp.MustCompile(`(?i)download|get|file`)
	bareScriptURL       = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// Headers that mimic a real browser fingerprint for the retry fetch.
// Challenge pages frequently clear once the client looks like Chrome.
var browserMimicHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Sec-Ch-Ua":                 `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
}

// CloudflareStrategy detects a challenge page and retries with a short
// backoff and browser-mimicking headers. A page that stays challenged
// after the retries fails with ErrChallengeUnsolved.
type CloudflareStrategy struct {
	fetcher    Fetcher
	logger     zerolog.Logger
	maxRetries int
	backoff    time.Duration
}

func NewCloudflareStrategy(fetcher Fetcher, logger zerolog.Logger) *CloudflareStrategy {
	return &CloudflareStrategy{
		fetcher:    fetcher,
		logger:     logger.With().Str("strategy", "cloudflare").Logger(),
		maxRetries: 2,
		backoff:    1500 * time.Millisecond,
	}
}

func (s *CloudflareStrategy) Name() string { return "Cloudflare Bypass" }

func (s *CloudflareStrategy) Cost() time.Duration { return 3 * time.Second }

func (s *CloudflareStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	if page.Fetch == nil || !IsChallengePage(page.Fetch) {
		return Declined()
	}

	result := page.Fetch
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := sleepBounded(ctx, time.Duration(attempt)*s.backoff); err != nil {
			return Failed(err)
		}

		retried, err := s.fetcher.Fetch(ctx, httpclient.FetchOptions{
			URL:     page.URL,
			Headers: browserMimicHeaders,
		})
		if err != nil && retried == nil {
			if ctx.Err() != nil {
				return Failed(ctx.Err())
			}
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Challenge retry fetch failed")
			continue
		}
		result = retried
		if !IsChallengePage(retried) {
			break
		}
	}

	if IsChallengePage(result) {
		return Failed(ErrChallengeUnsolved)
	}

	if dest, ok := s.extractDestination(result, page); ok {
		return Resolved(dest)
	}
	// Challenge cleared but the page holds no recognizable link; later
	// strategies see the original page, so hand them nothing extra.
	return DeclinedBecause("challenge cleared but no destination found")
}

// IsChallengePage reports whether a fetch result looks like a Cloudflare
// challenge rather than real content: a cloudflare Server header with a
// 403/503 status, or any of the challenge body markers.
func IsChallengePage(result *httpclient.FetchResult) bool {
	if result == nil {
		return false
	}
	server := strings.ToLower(result.Headers.Get("Server"))
	if strings.Contains(server, "cloudflare") &&
		(result.StatusCode == 403 || result.StatusCode == 503) {
		return true
	}
	body := strings.ToLower(string(result.Body))
	for _, marker := range challengeBodyMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func (s *CloudflareStrategy) extractDestination(result *httpclient.FetchResult, page *Page) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
	if err != nil {
		return "", false
	}

	var dest string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !challengeAnchorHref.MatchString(href) {
			return true
		}
		if resolved, ok := absolutize(href, page); ok {
			dest = resolved
			return false
		}
		return true
	})
	if dest != "" {
		return dest, true
	}

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, match := range bareScriptURL.FindAllString(sel.Text(), -1) {
			if isLikelyDestination(match) {
				dest = match
				return false
			}
		}
		return true
	})
	return dest, dest != ""
}

// sleepBounded waits for d or until ctx expires.
func sleepBounded(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

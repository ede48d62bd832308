package strategy

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/rs/zerolog"
)

// In-page request sites whose response carries the real destination.
var ajaxEndpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`fetch\(["']([^"']+)["']`),
	regexp.MustCompile(`(?s)ajax\(\{[^}]*url:\s*["']([^"']+)["']`),
	regexp.MustCompile(`\.get\(["']([^"']+)["']`),
}

// JSON keys the gate APIs use for the destination.
var dynamicResponseKeys = []string{"url", "link", "download", "file"}

const dynamicFetchTimeout = 10 * time.Second

// DynamicStrategy handles gates that load the destination via a
// secondary in-page request. It finds the endpoint in the script text
// and issues that request directly through the fetcher.
type DynamicStrategy struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewDynamicStrategy(fetcher Fetcher, logger zerolog.Logger) *DynamicStrategy {
	return &DynamicStrategy{
		fetcher: fetcher,
		logger:  logger.With().Str("strategy", "dynamic").Logger(),
	}
}

func (s *DynamicStrategy) Name() string { return "Dynamic Content" }

func (s *DynamicStrategy) Cost() time.Duration { return time.Second }

func (s *DynamicStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	body := page.Body()
	if body == "" {
		return Declined()
	}

	for _, pattern := range ajaxEndpointPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			endpoint := match[1]
			if !strings.Contains(endpoint, "/api/") && !strings.Contains(endpoint, "/get") {
				continue
			}
			full, ok := absolutize(endpoint, page)
			if !ok {
				continue
			}
			if dest, ok := s.queryEndpoint(ctx, full); ok {
				return Resolved(dest)
			}
			if ctx.Err() != nil {
				return Failed(ctx.Err())
			}
		}
	}
	return Declined()
}

// queryEndpoint fetches one candidate API endpoint and scans its JSON
// response for a destination value.
func (s *DynamicStrategy) queryEndpoint(ctx context.Context, endpoint string) (string, bool) {
	result, err := s.fetcher.Fetch(ctx, httpclient.FetchOptions{
		URL:     endpoint,
		Timeout: dynamicFetchTimeout,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil || result == nil {
		s.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("API endpoint fetch failed")
		return "", false
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		return "", false
	}
	for _, key := range dynamicResponseKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if strings.HasPrefix(value, "http") {
			s.logger.Debug().Str("endpoint", endpoint).Str("key", key).Msg("Destination from API response")
			return value, true
		}
	}
	return "", false
}

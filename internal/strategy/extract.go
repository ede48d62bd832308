package strategy

import (
	"net/url"
	"strings"

	"github.com/KeerthivasanKvm/novaresolver/internal/urlhandler"
)

// Domains that show up in social/share widgets on gate pages and are
// never the gated destination.
var excludedDomains = []string{
	"facebook.com",
	"twitter.com",
	"google.com",
	"youtube.com",
}

// Substrings that mark a URL as a plausible gated destination.
var destinationIndicators = []string{
	"download", "file", "get",
	".pdf", ".zip", ".rar", ".mp4", ".mkv",
}

// isLikelyDestination reports whether the URL looks like a gated
// destination rather than a widget or navigation link.
func isLikelyDestination(rawURL string) bool {
	if !urlhandler.IsHTTPURL(rawURL) {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	for _, domain := range excludedDomains {
		if strings.Contains(host, domain) {
			return false
		}
	}
	lower := strings.ToLower(rawURL)
	for _, indicator := range destinationIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// absolutize resolves a possibly relative href against the page URL and
// requires the result to be an http(s) URL.
func absolutize(href string, page *Page) (string, bool) {
	resolved, err := urlhandler.ResolveURL(href, page.Parsed)
	if err != nil {
		return "", false
	}
	if !urlhandler.IsHTTPURL(resolved) {
		return "", false
	}
	return resolved, true
}

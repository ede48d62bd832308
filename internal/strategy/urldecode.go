package strategy

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/urlhandler"
	"github.com/rs/zerolog"
)

// Query parameters that conventionally carry the gated destination.
var redirectParamNames = []string{"url", "link", "redirect"}

// Percent-encoded values embedded in the markup.
var urlEncodedBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`url=([^&\s"'<>]+)`),
	regexp.MustCompile(`link=([^&\s"'<>]+)`),
	regexp.MustCompile(`redirect=([^&\s"'<>]+)`),
}

// URLDecodeStrategy recovers a destination hidden behind percent
// encoding, in the source URL's redirect-style parameters or in the
// markup.
type URLDecodeStrategy struct {
	logger zerolog.Logger
}

func NewURLDecodeStrategy(logger zerolog.Logger) *URLDecodeStrategy {
	return &URLDecodeStrategy{logger: logger.With().Str("strategy", "urldecode").Logger()}
}

func (s *URLDecodeStrategy) Name() string { return "URL Decode" }

func (s *URLDecodeStrategy) Cost() time.Duration { return 0 }

func (s *URLDecodeStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	if page.Parsed != nil {
		query := page.Parsed.Query()
		for _, name := range redirectParamNames {
			// url.Values has already percent-decoded the value once.
			if value := query.Get(name); urlhandler.IsHTTPURL(value) {
				s.logger.Debug().Str("param", name).Str("destination", value).Msg("Destination from redirect parameter")
				return Resolved(value)
			}
		}
	}

	body := page.Body()
	if body == "" {
		return Declined()
	}
	for _, pattern := range urlEncodedBodyPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			encoded := match[1]
			decoded, err := url.QueryUnescape(encoded)
			if err != nil || decoded == encoded {
				continue
			}
			if urlhandler.IsHTTPURL(decoded) {
				return Resolved(decoded)
			}
		}
	}
	return Declined()
}

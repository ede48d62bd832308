package strategy

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Base64 values embedded in the markup.
var base64BodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-url="([A-Za-z0-9+/_=-]+)"`),
	regexp.MustCompile(`data-link="([A-Za-z0-9+/_=-]+)"`),
	regexp.MustCompile(`atob\(["']([A-Za-z0-9+/_=-]+)["']`),
}

// Base64Strategy recovers a destination hidden as a base64 value: in a
// query parameter or fragment of the source URL itself, or in data
// attributes and atob() calls in the markup. It needs no fetch for the
// URL-side checks, so it still works when the initial fetch failed.
type Base64Strategy struct {
	logger zerolog.Logger
}

func NewBase64Strategy(logger zerolog.Logger) *Base64Strategy {
	return &Base64Strategy{logger: logger.With().Str("strategy", "base64").Logger()}
}

func (s *Base64Strategy) Name() string { return "Base64 Decode" }

func (s *Base64Strategy) Cost() time.Duration { return 0 }

func (s *Base64Strategy) Attempt(ctx context.Context, page *Page) Outcome {
	// Source URL first: query parameter values, then the fragment.
	if page.Parsed != nil {
		for _, values := range page.Parsed.Query() {
			for _, value := range values {
				if decoded, ok := decodeBase64URL(value); ok {
					s.logger.Debug().Str("destination", decoded).Msg("Decoded destination from query parameter")
					return Resolved(decoded)
				}
			}
		}
		if decoded, ok := decodeBase64URL(page.Parsed.Fragment); ok {
			return Resolved(decoded)
		}
	}

	body := page.Body()
	if body == "" {
		return Declined()
	}
	for _, pattern := range base64BodyPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			if decoded, ok := decodeBase64URL(match[1]); ok {
				return Resolved(decoded)
			}
		}
	}
	return Declined()
}

// decodeBase64URL decodes s as base64 (standard or URL-safe alphabet,
// padding optional) and accepts the result only when it is an http(s)
// URL.
func decodeBase64URL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return "", false
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		decoded, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		text := string(decoded)
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			return text, true
		}
	}
	return "", false
}

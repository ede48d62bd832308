package strategy

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/BishopFox/jsluice"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Literal destination assignments found in inline gate scripts. No JS
// engine runs; this is pure text extraction.
var scriptLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`var\s+link\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`url\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`href\s*=\s*["'](https?://[^"']+)["']`),
}

// JavaScriptStrategy extracts a destination assigned in embedded script
// text: first via assignment patterns, then via jsluice's AST-based URL
// extraction over each script body.
type JavaScriptStrategy struct {
	logger zerolog.Logger
}

func NewJavaScriptStrategy(logger zerolog.Logger) *JavaScriptStrategy {
	return &JavaScriptStrategy{logger: logger.With().Str("strategy", "javascript").Logger()}
}

func (s *JavaScriptStrategy) Name() string { return "JavaScript Static" }

func (s *JavaScriptStrategy) Cost() time.Duration { return 0 }

func (s *JavaScriptStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	scripts := inlineScripts(page)
	if len(scripts) == 0 {
		return Declined()
	}

	for _, script := range scripts {
		for _, pattern := range scriptLinkPatterns {
			for _, match := range pattern.FindAllStringSubmatch(script, -1) {
				candidate := match[1]
				if resolved, ok := absolutize(candidate, page); ok && isLikelyDestination(resolved) {
					return Resolved(resolved)
				}
			}
		}
	}

	for _, script := range scripts {
		analyzer := jsluice.NewAnalyzer([]byte(script))
		for _, res := range analyzer.GetURLs() {
			if resolved, ok := absolutize(res.URL, page); ok && isLikelyDestination(resolved) {
				s.logger.Debug().Str("destination", resolved).Str("type", res.Type).Msg("Destination from script AST")
				return Resolved(resolved)
			}
		}
	}

	return Declined()
}

// inlineScripts returns the text of each inline <script> on the page,
// falling back to the raw body when it does not parse as HTML.
func inlineScripts(page *Page) []string {
	doc, err := page.Document()
	if err != nil {
		body := page.Body()
		if strings.Contains(body, "<script") || strings.Contains(body, "window.location") {
			return []string{body}
		}
		return nil
	}
	var scripts []string
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			return
		}
		text := sel.Text()
		if strings.TrimSpace(text) != "" {
			scripts = append(scripts, text)
		}
	})
	return scripts
}

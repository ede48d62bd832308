package strategy

import (
	"context"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var (
	countdownIDAttr = regexp.MustCompile(`(?i)countdown|timer|wait`)

	// A timer callback that navigates somewhere when it fires. The link
	// the timer would eventually expose is computed statically; the wait
	// itself is skipped.
	timerTarget = regexp.MustCompile(`(?is)set(?:Timeout|Interval)\s*\(\s*(?:function\s*\(\s*\)\s*)?(?:\(\s*\)\s*=>\s*)?\{?[^}]*?(?:window\.)?location(?:\.href)?\s*=\s*["']([^"']+)["']`)
)

// CountdownStrategy handles pages that gate the destination behind a
// client-side timer. It never waits: either the markup already carries
// the link the timer would reveal, or the strategy declines and leaves
// the page to the later strategies.
type CountdownStrategy struct {
	logger zerolog.Logger
}

func NewCountdownStrategy(logger zerolog.Logger) *CountdownStrategy {
	return &CountdownStrategy{logger: logger.With().Str("strategy", "countdown").Logger()}
}

func (s *CountdownStrategy) Name() string { return "Countdown Timer" }

func (s *CountdownStrategy) Cost() time.Duration { return 0 }

func (s *CountdownStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	doc, err := page.Document()
	if err != nil {
		return Declined()
	}

	if !hasCountdown(doc) {
		return Declined()
	}

	// Timer callback that assigns a navigation target.
	for _, script := range inlineScripts(page) {
		if match := timerTarget.FindStringSubmatch(script); match != nil {
			if resolved, ok := absolutize(match[1], page); ok {
				s.logger.Debug().Str("destination", resolved).Msg("Extracted timer navigation target")
				return Resolved(resolved)
			}
		}
	}

	// The reveal target is often already in the markup, hidden until the
	// timer flips it visible.
	if dest, ok := countdownRevealTarget(doc, page); ok {
		return Resolved(dest)
	}

	// Timer present but the target is built at runtime; let the browser
	// strategy handle it.
	return DeclinedBecause("timer target not statically recoverable")
}

func hasCountdown(doc *goquery.Document) bool {
	found := false
	doc.Find("[id]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		id, _ := sel.Attr("id")
		if countdownIDAttr.MatchString(id) {
			found = true
			return false
		}
		return true
	})
	return found
}

func countdownRevealTarget(doc *goquery.Document, page *Page) (string, bool) {
	var dest string
	doc.Find("a, button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		if !downloadAnchorAttr.MatchString(class) && !downloadAnchorAttr.MatchString(id) {
			return true
		}
		for _, attr := range []string{"href", "data-href", "data-url"} {
			value, exists := sel.Attr(attr)
			if !exists || value == "" || value == "#" {
				continue
			}
			if resolved, ok := absolutize(value, page); ok {
				dest = resolved
				return false
			}
		}
		return true
	})
	return dest, dest != ""
}

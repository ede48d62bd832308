package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BrowserAutomationStrategy is the last-resort fallback: it renders the
// page in a pooled headless-browser session, lets scripts and timers
// run, performs the minimal reveal interaction, and reads the location
// the page ends up at.
type BrowserAutomationStrategy struct {
	driver LocationResolver
	logger zerolog.Logger
}

// NewBrowserAutomationStrategy creates the strategy. A nil driver means
// browser automation is disabled and the strategy always declines.
func NewBrowserAutomationStrategy(driver LocationResolver, logger zerolog.Logger) *BrowserAutomationStrategy {
	return &BrowserAutomationStrategy{
		driver: driver,
		logger: logger.With().Str("strategy", "browser_auto").Logger(),
	}
}

func (s *BrowserAutomationStrategy) Name() string { return "Browser Automation" }

func (s *BrowserAutomationStrategy) Cost() time.Duration { return 10 * time.Second }

func (s *BrowserAutomationStrategy) Attempt(ctx context.Context, page *Page) Outcome {
	if s.driver == nil {
		return DeclinedBecause("browser automation disabled")
	}

	location, err := s.driver.ResolveLocation(ctx, page.URL)
	if err != nil {
		if ctx.Err() != nil {
			return Failed(ctx.Err())
		}
		// Driver crashes and disconnects surface here; the session has
		// already been discarded from the pool.
		s.logger.Warn().Err(err).Str("url", page.URL).Msg("Browser resolution failed")
		return Failed(err)
	}

	if location == "" || location == page.URL {
		return Declined()
	}
	return Resolved(location)
}

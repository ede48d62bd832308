package strategy

import (
	"github.com/rs/zerolog"
)

// NewDefaultChain builds the full pipeline in fixed priority order,
// cheapest and most specific first, most expensive and most general
// last. browserDriver may be nil, which disables the final strategy.
func NewDefaultChain(fetcher Fetcher, browserDriver LocationResolver, maxHops int, logger zerolog.Logger) []Strategy {
	return []Strategy{
		NewHTMLFormStrategy(logger),
		NewCSSHiddenStrategy(logger),
		NewJavaScriptStrategy(logger),
		NewCountdownStrategy(logger),
		NewDynamicStrategy(fetcher, logger),
		NewCloudflareStrategy(fetcher, logger),
		NewRedirectChainStrategy(fetcher, maxHops, logger),
		NewBase64Strategy(logger),
		NewURLDecodeStrategy(logger),
		NewBrowserAutomationStrategy(browserDriver, logger),
	}
}

// Filter returns the chain restricted to the named strategies, keeping
// the original order. An empty allowlist keeps the whole chain.
func Filter(chain []Strategy, allowed []string) []Strategy {
	if len(allowed) == 0 {
		return chain
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}
	var filtered []Strategy
	for _, s := range chain {
		if _, ok := allowedSet[s.Name()]; ok {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

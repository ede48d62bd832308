package strategy

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/PuerkitoBio/goquery"
)

// Status is the outcome class of a single strategy attempt.
type Status int

const (
	// StatusDeclined means the strategy found nothing it recognizes;
	// the chain advances to the next strategy.
	StatusDeclined Status = iota
	// StatusResolved means the strategy recovered the destination;
	// the chain stops.
	StatusResolved
	// StatusFailed means the strategy recognized its pattern but hit an
	// error trying to exploit it. The orchestrator treats it as declined
	// unless the error is budget exhaustion.
	StatusFailed
)

// Outcome is the result of one strategy attempt. Hops counts the
// intermediate URLs traversed to reach the destination.
type Outcome struct {
	Status      Status
	Destination string
	Reason      string // set on some declines, names what was missing
	Hops        int
	Err         error
}

func Resolved(destination string) Outcome {
	return Outcome{Status: StatusResolved, Destination: destination, Hops: 1}
}

// ResolvedHops is Resolved with an explicit hop count, for strategies
// that walk multi-stage gates.
func ResolvedHops(destination string, hops int) Outcome {
	return Outcome{Status: StatusResolved, Destination: destination, Hops: hops}
}

func Declined() Outcome {
	return Outcome{Status: StatusDeclined}
}

// DeclinedBecause is Declined with a human-readable reason.
func DeclinedBecause(reason string) Outcome {
	return Outcome{Status: StatusDeclined, Reason: reason}
}

func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// Fetcher is the HTTP capability strategies use for secondary requests.
// *httpclient.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, opts httpclient.FetchOptions) (*httpclient.FetchResult, error)
}

// LocationResolver is the headless-browser capability used by the
// automation strategy. *browser.Driver satisfies it.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, url string) (string, error)
}

// Page is the shared input handed to each strategy in turn. Fetch may be
// nil when the initial fetch failed; strategies that need the body must
// decline in that case, strategies working off the source URL alone can
// still attempt.
type Page struct {
	URL    string
	Parsed *url.URL
	Fetch  *httpclient.FetchResult

	// MaxHops caps multi-stage gate walking for this request; 0 means
	// the strategy's own default.
	MaxHops int

	docOnce sync.Once
	doc     *goquery.Document
	docErr  error
}

// NewPage builds a Page for the given source URL and its initial fetch
// result (which may be nil).
func NewPage(rawURL string, fetch *httpclient.FetchResult) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source URL '%s': %w", rawURL, err)
	}
	return &Page{URL: rawURL, Parsed: parsed, Fetch: fetch}, nil
}

// Body returns the fetched document text, or "" when no fetch succeeded.
func (p *Page) Body() string {
	if p.Fetch == nil {
		return ""
	}
	return string(p.Fetch.Body)
}

// Document lazily parses the fetched body as HTML. The parse runs once
// and is shared by every strategy that needs the DOM.
func (p *Page) Document() (*goquery.Document, error) {
	p.docOnce.Do(func() {
		if p.Fetch == nil || len(p.Fetch.Body) == 0 {
			p.docErr = fmt.Errorf("no document body available for %s", p.URL)
			return
		}
		p.doc, p.docErr = goquery.NewDocumentFromReader(bytes.NewReader(p.Fetch.Body))
	})
	return p.doc, p.docErr
}

// Strategy is one bypass technique in the ordered pipeline. Cost is a
// lower-bound latency hint: the orchestrator skips a strategy whose Cost
// exceeds the remaining time budget instead of starting it.
type Strategy interface {
	Name() string
	Cost() time.Duration
	Attempt(ctx context.Context, page *Page) Outcome
}

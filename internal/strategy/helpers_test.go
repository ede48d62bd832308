package strategy

import (
	"context"
	"net/http"
	"testing"

	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned responses keyed by URL and records calls.
type fakeFetcher struct {
	responses map[string]*httpclient.FetchResult
	errs      map[string]error
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*httpclient.FetchResult),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, opts httpclient.FetchOptions) (*httpclient.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, opts.URL)
	if err, ok := f.errs[opts.URL]; ok {
		return f.responses[opts.URL], err
	}
	if res, ok := f.responses[opts.URL]; ok {
		return res, nil
	}
	return nil, httpclient.NewFetchError(httpclient.KindConnectionFailed, opts.URL, nil)
}

func (f *fakeFetcher) addPage(url, body string) {
	f.responses[url] = &httpclient.FetchResult{
		FinalURL:   url,
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
	}
}

func newTestPage(t *testing.T, url, body string) *Page {
	t.Helper()
	var fetch *httpclient.FetchResult
	if body != "" {
		fetch = &httpclient.FetchResult{
			FinalURL:   url,
			StatusCode: 200,
			Headers:    http.Header{},
			Body:       []byte(body),
		}
	}
	page, err := NewPage(url, fetch)
	require.NoError(t, err)
	return page
}

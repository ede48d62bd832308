package strategy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/httpclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func challengeResult(url string) *httpclient.FetchResult {
	return &httpclient.FetchResult{
		FinalURL:   url,
		StatusCode: 503,
		Headers:    http.Header{"Server": []string{"cloudflare"}},
		Body:       []byte(`<html><body>Checking your browser before accessing gate.example</body></html>`),
	}
}

func TestIsChallengePage(t *testing.T) {
	tests := []struct {
		name      string
		result    *httpclient.FetchResult
		challenge bool
	}{
		{
			name:      "nil result",
			result:    nil,
			challenge: false,
		},
		{
			name: "cloudflare server header with 503",
			result: &httpclient.FetchResult{
				StatusCode: 503,
				Headers:    http.Header{"Server": []string{"cloudflare"}},
			},
			challenge: true,
		},
		{
			name: "cloudflare server header with 403",
			result: &httpclient.FetchResult{
				StatusCode: 403,
				Headers:    http.Header{"Server": []string{"cloudflare"}},
			},
			challenge: true,
		},
		{
			name: "cloudflare server header with 200 is not a challenge",
			result: &httpclient.FetchResult{
				StatusCode: 200,
				Headers:    http.Header{"Server": []string{"cloudflare"}},
				Body:       []byte("<html>real content</html>"),
			},
			challenge: false,
		},
		{
			name: "challenge body marker without header",
			result: &httpclient.FetchResult{
				StatusCode: 200,
				Headers:    http.Header{},
				Body:       []byte(`<script src="/cdn-cgi/challenge-platform/h/b/orchestrate"></script>`),
			},
			challenge: true,
		},
		{
			name: "cf_chl token in body",
			result: &httpclient.FetchResult{
				StatusCode: 403,
				Headers:    http.Header{},
				Body:       []byte(`window._cf_chl_opt = {};`),
			},
			challenge: true,
		},
		{
			name: "plain page",
			result: &httpclient.FetchResult{
				StatusCode: 200,
				Headers:    http.Header{"Server": []string{"nginx"}},
				Body:       []byte("<html>hello</html>"),
			},
			challenge: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.challenge, IsChallengePage(tt.result))
		})
	}
}

func TestCloudflareStrategyDeclinesOnPlainPage(t *testing.T) {
	s := NewCloudflareStrategy(newFakeFetcher(), zerolog.Nop())
	page := newTestPage(t, "http://gate.example/x", "<html>plain</html>")

	outcome := s.Attempt(context.Background(), page)
	assert.Equal(t, StatusDeclined, outcome.Status)
}

func TestCloudflareStrategyRetrySucceeds(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.addPage("http://gate.example/x",
		`<html><body><a href="http://files.example/download/real.zip">download</a></body></html>`)

	s := NewCloudflareStrategy(fetcher, zerolog.Nop())
	s.backoff = time.Millisecond

	page, err := NewPage("http://gate.example/x", challengeResult("http://gate.example/x"))
	assert.NoError(t, err)

	outcome := s.Attempt(context.Background(), page)

	assert.Equal(t, StatusResolved, outcome.Status)
	assert.Equal(t, "http://files.example/download/real.zip", outcome.Destination)
}

func TestCloudflareStrategyStillChallengedFails(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.responses["http://gate.example/x"] = challengeResult("http://gate.example/x")

	s := NewCloudflareStrategy(fetcher, zerolog.Nop())
	s.backoff = time.Millisecond

	page, err := NewPage("http://gate.example/x", challengeResult("http://gate.example/x"))
	assert.NoError(t, err)

	outcome := s.Attempt(context.Background(), page)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrChallengeUnsolved)
	assert.Len(t, fetcher.calls, 2, "should retry the configured number of times")
}

func TestCloudflareStrategyBudgetExpiryFails(t *testing.T) {
	s := NewCloudflareStrategy(newFakeFetcher(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	page, err := NewPage("http://gate.example/x", challengeResult("http://gate.example/x"))
	assert.NoError(t, err)

	outcome := s.Attempt(ctx, page)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
}

package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

var errRedirectLimit = errors.New("redirect hop limit reached")

// FetchOptions holds parameters for a single fetch.
type FetchOptions struct {
	URL     string
	Method  string            // GET when empty
	Headers map[string]string // per-call overrides, applied over config defaults
	Timeout time.Duration     // per-call cap; 0 uses the client default
	NoBody  bool              // HEAD-style probe, body is discarded

	// NoFollowRedirects disables redirect following for this call only,
	// so a caller can inspect each 3xx hop itself.
	NoFollowRedirects bool
}

// FetchResult is the outcome of a single fetch. It is owned by the caller
// and consumed read-only by strategies.
type FetchResult struct {
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration
}

// Client performs single HTTP fetches with a redirect hop cap, default
// headers, and per-call timeouts. It does no caching; destination-level
// caching belongs to the cache package.
type Client struct {
	client     *http.Client
	config     ClientConfig
	logger     zerolog.Logger
	bufferPool sync.Pool
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(config ClientConfig, logger zerolog.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
		}
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, NewFetchError(KindConnectionFailed, config.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		logger.Info().Str("proxy", config.Proxy).Msg("HTTP client configured with proxy")
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	if !config.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if config.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return errRedirectLimit
			}
			return nil
		}
	}

	logger.Debug().
		Dur("timeout", config.Timeout).
		Bool("follow_redirects", config.FollowRedirects).
		Int("max_redirects", config.MaxRedirects).
		Bool("http2_enabled", config.EnableHTTP2).
		Msg("HTTP client created")

	return &Client{
		client: client,
		config: config,
		logger: logger,
		bufferPool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, 32*1024)
				return &b
			},
		},
	}, nil
}

// Fetch performs a single request and reads the full body. Transport-level
// 3xx redirects are followed up to the configured hop cap. Non-2xx status
// codes return both the result and a FetchError of kind KindHTTPStatus so
// callers can still inspect the body (challenge pages respond 403/503).
func (c *Client) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if opts.NoBody && opts.Method == "" {
		method = http.MethodHead
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, opts.URL, nil)
	if err != nil {
		return nil, NewFetchError(KindConnectionFailed, opts.URL, err)
	}

	for key, value := range c.config.CustomHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range opts.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "*/*")
	}

	httpClient := c.client
	if opts.NoFollowRedirects {
		// Shallow copy shares the transport but stops at the first hop.
		clientCopy := *c.client
		clientCopy.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		httpClient = &clientCopy
	}

	start := time.Now()
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(ctx, opts.URL, err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, c.classifyTransportError(ctx, opts.URL, err)
	}

	result := &FetchResult{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}

	c.logger.Debug().
		Str("url", opts.URL).
		Str("final_url", result.FinalURL).
		Int("status", result.StatusCode).
		Int("body_size", len(result.Body)).
		Dur("elapsed", result.Elapsed).
		Msg("Fetch completed")

	if resp.StatusCode >= 400 {
		return result, &FetchError{Kind: KindHTTPStatus, URL: opts.URL, StatusCode: resp.StatusCode}
	}
	return result, nil
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	bufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufPtr)
	buf := bytes.NewBuffer((*bufPtr)[:0])

	limit := int64(c.config.MaxContentSize)
	if limit <= 0 {
		limit = 32 * 1024 * 1024
	}
	if _, err := io.Copy(buf, io.LimitReader(r, limit)); err != nil {
		return nil, err
	}

	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())
	return body, nil
}

func (c *Client) classifyTransportError(ctx context.Context, fetchURL string, err error) error {
	switch {
	case errors.Is(err, errRedirectLimit):
		return NewFetchError(KindTooManyRedirects, fetchURL, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewFetchError(KindTimeout, fetchURL, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewFetchError(KindTimeout, fetchURL, err)
	}
	return NewFetchError(KindConnectionFailed, fetchURL, err)
}

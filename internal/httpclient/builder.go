package httpclient

import (
	"time"

	"github.com/rs/zerolog"
)

// ClientBuilder builds HTTP clients with a fluent interface.
type ClientBuilder struct {
	config ClientConfig
	logger zerolog.Logger
}

// NewClientBuilder creates a new ClientBuilder with default configuration.
func NewClientBuilder(logger zerolog.Logger) *ClientBuilder {
	return &ClientBuilder{
		config: DefaultClientConfig(),
		logger: logger,
	}
}

// WithTimeout sets the request timeout.
func (b *ClientBuilder) WithTimeout(timeout time.Duration) *ClientBuilder {
	b.config.Timeout = timeout
	return b
}

// WithFollowRedirects sets whether to follow redirects.
func (b *ClientBuilder) WithFollowRedirects(follow bool) *ClientBuilder {
	b.config.FollowRedirects = follow
	return b
}

// WithMaxRedirects sets the maximum number of redirects to follow.
func (b *ClientBuilder) WithMaxRedirects(max int) *ClientBuilder {
	b.config.MaxRedirects = max
	return b
}

// WithUserAgent sets the default User-Agent header.
func (b *ClientBuilder) WithUserAgent(userAgent string) *ClientBuilder {
	b.config.UserAgent = userAgent
	return b
}

// WithMaxContentSize sets the maximum response body size in bytes.
func (b *ClientBuilder) WithMaxContentSize(size int) *ClientBuilder {
	b.config.MaxContentSize = size
	return b
}

// WithInsecureSkipVerify sets whether to skip TLS verification.
func (b *ClientBuilder) WithInsecureSkipVerify(skip bool) *ClientBuilder {
	b.config.InsecureSkipVerify = skip
	return b
}

// WithProxy sets the outbound proxy URL.
func (b *ClientBuilder) WithProxy(proxy string) *ClientBuilder {
	b.config.Proxy = proxy
	return b
}

// Build creates and returns a new Client.
func (b *ClientBuilder) Build() (*Client, error) {
	return NewClient(b.config, b.logger)
}

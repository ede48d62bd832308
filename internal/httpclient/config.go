package httpclient

import "time"

// DefaultUserAgent mimics a desktop browser; most gate pages serve a
// degraded or hostile variant to obvious bot user agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout               time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	MaxRedirects          int
	FollowRedirects       bool
	InsecureSkipVerify    bool
	EnableHTTP2           bool
	UserAgent             string
	MaxContentSize        int
	CustomHeaders         map[string]string
	Proxy                 string
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		DialTimeout:           10 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       20,
		MaxRedirects:          10,
		FollowRedirects:       true,
		EnableHTTP2:           true,
		UserAgent:             DefaultUserAgent,
		MaxContentSize:        5 * 1024 * 1024,
	}
}

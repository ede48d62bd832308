package httpclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	KindConnectionFailed ErrorKind = iota
	KindTimeout
	KindTooManyRedirects
	KindHTTPStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTooManyRedirects:
		return "too_many_redirects"
	case KindHTTPStatus:
		return "http_status"
	default:
		return "connection_failed"
	}
}

// FetchError is the typed error returned by Client.Fetch.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch '%s': http status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch '%s': %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a FetchError of the given kind.
func NewFetchError(kind ErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }

// IsTooManyRedirects reports whether err is a redirect hop limit error.
func IsTooManyRedirects(err error) bool { return IsKind(err, KindTooManyRedirects) }

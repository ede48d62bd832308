package urlhandler

import (
	"net/url"
	"sort"
	"strings"
)

// Tracking parameters that never influence the resolved destination.
// They are stripped before fingerprinting so the same gate link shared
// through different channels maps to one cache entry.
var trackingParams = map[string]struct{}{
	"fbclid":   {},
	"gclid":    {},
	"msclkid":  {},
	"igshid":   {},
	"mc_cid":   {},
	"mc_eid":   {},
	"ref":      {},
	"referrer": {},
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	_, ok := trackingParams[lower]
	return ok
}

// Fingerprint computes the canonical cache key for a source URL:
// lowercase scheme and host, default port stripped, fragment dropped,
// tracking parameters removed, and remaining query parameters sorted
// by key then value. Fingerprinting is idempotent: applying it to its
// own output yields the same string.
func Fingerprint(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", err
	}

	host := u.Host
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString("://")
	sb.WriteString(host)
	if u.Path == "" {
		sb.WriteString("/")
	} else {
		sb.WriteString(u.EscapedPath())
	}

	if query := canonicalQuery(u.Query()); query != "" {
		sb.WriteString("?")
		sb.WriteString(query)
	}

	return sb.String(), nil
}

func canonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if isTrackingParam(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

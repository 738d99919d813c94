// File: internal/router/url.go
package router

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize resolves raw against base and canonicalizes the result so that
// equal pages produce byte-equal strings: lowercase scheme and host, default
// ports stripped, empty path mapped to "/". The normalized URL is the cache
// and dedup key for the whole engine.
func Normalize(base *url.URL, raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("cannot resolve relative URL %q without a document location", raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	switch {
	case parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	case parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed, nil
}

// CacheKey is the normalized URL without its fragment; two URLs differing
// only in fragment are the same page.
func CacheKey(u *url.URL) string {
	key := *u
	key.Fragment = ""
	key.RawFragment = ""
	return key.String()
}

// SameOrigin reports whether two URLs share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Scheme == b.Scheme && a.Host == b.Host
}
